package redisx

import (
	"fmt"
	"time"
)

const (
	// order_status:{order_id} -> {"status": "...", "updatedAt": "..."}
	KeyOrderStatus = "order_status:%d"

	// dedup:{service}:{id}, id = gateway:order_no:event_id for payment callbacks
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

func OrderStatusKey(orderID int64) string { return fmt.Sprintf(KeyOrderStatus, orderID) }

func DedupKey(service, id string) string { return fmt.Sprintf(KeyDedup, service, id) }

package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"time"
)

type CachedStatus struct {
	OrderID      int64         `json:"orderId"`
	OrderNo      string        `json:"orderNo"`
	UserID       int64         `json:"userId"`
	StorefrontID int64         `json:"restaurantId"`
	Status       orders.Status `json:"status"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func CachedFrom(o *orders.Order) CachedStatus {
	return CachedStatus{
		OrderID:      o.ID,
		OrderNo:      o.OrderNo,
		UserID:       o.UserID,
		StorefrontID: o.StorefrontID,
		Status:       o.Status,
		UpdatedAt:    o.UpdatedAt,
	}
}

// StatusCache keeps the latest known status per order for cheap polling.
// The database stays authoritative.
type StatusCache struct {
	Client *redis.Client
	Log    *zap.Logger
}

var errStaleStatus = errors.New("cached status is newer")

// SetStatus writes the order's status unless the cache already holds a newer one.
// Writers race after their transactions commit, so the check and the write run
// under WATCH and are retried when another writer touches the key in between.
func (c *StatusCache) SetStatus(ctx context.Context, o *orders.Order) {
	next := CachedFrom(o)
	b, err := json.Marshal(next)
	if err != nil {
		c.Log.Warn("status cache encode failed", zap.Int64("order_id", o.ID), zap.Error(err))
		return
	}
	key := OrderStatusKey(o.ID)
	for attempt := 0; attempt < 5; attempt++ {
		err = c.Client.Watch(ctx, func(tx *redis.Tx) error {
			cur, ok, err := decodeStatus(tx.Get(ctx, key))
			if err != nil {
				return err
			}
			if ok && !supersedes(next, cur) {
				return errStaleStatus
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, b, TTLStatusCache)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, errStaleStatus):
		c.Log.Debug("status cache already newer", zap.Int64("order_id", o.ID), zap.String("status", string(o.Status)))
	default:
		c.Log.Warn("status cache write failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

// supersedes reports whether next may replace cur. Later updates win; on a
// timestamp tie the status further along the lifecycle wins.
func supersedes(next, cur CachedStatus) bool {
	if !next.UpdatedAt.Equal(cur.UpdatedAt) {
		return next.UpdatedAt.After(cur.UpdatedAt)
	}
	return rank(next.Status) > rank(cur.Status)
}

func rank(s orders.Status) int {
	for i, x := range orders.AllStatuses {
		if x == s {
			return i
		}
	}
	return -1
}

// GetStatus reports ok=false on a miss.
func (c *StatusCache) GetStatus(ctx context.Context, orderID int64) (CachedStatus, bool, error) {
	return decodeStatus(c.Client.Get(ctx, OrderStatusKey(orderID)))
}

// decodeStatus treats a garbled value as a miss so the next write repairs it.
func decodeStatus(cmd *redis.StringCmd) (CachedStatus, bool, error) {
	var out CachedStatus
	b, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return CachedStatus{}, false, nil
	}
	return out, true, nil
}

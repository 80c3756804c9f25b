package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderStatusUpdate = "ORDER_STATUS_UPDATE"
	EventNewOrder          = "NEW_ORDER"
	EventPaymentCallback   = "PaymentCallback"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g., "takeaway-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order number
	Payload       json.RawMessage `json:"payload"`
}

// PaymentCallbackPayload is what the webhook handler enqueues for the worker.
// Only the out-trade-number of the vendor body is trusted; the worker re-queries the gateway.
type PaymentCallbackPayload struct {
	Gateway       string    `json:"gateway"`
	OrderNo       string    `json:"order_no"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

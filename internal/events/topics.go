package events

const (
	TopicOrderStatusChanged = "order.status.changed"
	TopicOrderPaid          = "order.paid"
	TopicPaymentCallback    = "payment.callback"
)

// Partition key = order number, so every event of one order keeps its order.
func PartitionKey(orderNo string) []byte { return []byte(orderNo) }

// TopicFor routes an event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventNewOrder:
		return TopicOrderPaid
	case EventPaymentCallback:
		return TopicPaymentCallback
	default:
		return TopicOrderStatusChanged
	}
}

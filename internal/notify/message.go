package notify

import (
	"fmt"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/shopspring/decimal"
	"time"
)

const (
	MessageStatusUpdate = "ORDER_STATUS_UPDATE"
	MessageNewOrder     = "NEW_ORDER"
)

// Message is the realtime payload pushed to customer and merchant channels.
type Message struct {
	Type         string          `json:"type"`
	OrderID      int64           `json:"orderId"`
	OrderNo      string          `json:"orderNo"`
	UserID       int64           `json:"userId"`
	StorefrontID int64           `json:"restaurantId"`
	OldStatus    string          `json:"oldStatus,omitempty"`
	NewStatus    string          `json:"newStatus"`
	StatusLabel  string          `json:"statusLabel,omitempty"`
	PayAmount    decimal.Decimal `json:"payAmount"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Message      string          `json:"message"`
}

func StatusUpdateMessage(o *orders.Order, old orders.Status, now time.Time) Message {
	label := orders.Label(o.Status)
	return Message{
		Type:         MessageStatusUpdate,
		OrderID:      o.ID,
		OrderNo:      o.OrderNo,
		UserID:       o.UserID,
		StorefrontID: o.StorefrontID,
		OldStatus:    string(old),
		NewStatus:    string(o.Status),
		StatusLabel:  label,
		PayAmount:    o.PayAmount,
		UpdatedAt:    now,
		Message:      fmt.Sprintf("Your order %s is now %s", o.OrderNo, label),
	}
}

func NewOrderMessage(o *orders.Order, now time.Time) Message {
	return Message{
		Type:         MessageNewOrder,
		OrderID:      o.ID,
		OrderNo:      o.OrderNo,
		UserID:       o.UserID,
		StorefrontID: o.StorefrontID,
		NewStatus:    string(o.Status),
		StatusLabel:  orders.Label(o.Status),
		PayAmount:    o.PayAmount,
		UpdatedAt:    now,
		Message:      "You have a new order, please handle it promptly",
	}
}

func UserChannel(userID int64) string { return fmt.Sprintf("user/%d/orders", userID) }

func MerchantChannel(storefrontID int64) string {
	return fmt.Sprintf("merchant/%d/orders", storefrontID)
}

type template struct{ title, body string }

// customer-facing notification text per destination status; %s is the order number
var statusTemplates = map[orders.Status]template{
	orders.StatusPaid:       {"Payment received", "Your order %s has been paid and sent to the merchant"},
	orders.StatusConfirmed:  {"Order confirmed", "Your order %s was confirmed by the merchant and will be prepared shortly"},
	orders.StatusPreparing:  {"Order being prepared", "Your order %s is being prepared, please wait"},
	orders.StatusDelivering: {"Order out for delivery", "Your order %s is on its way"},
	orders.StatusCompleted:  {"Order completed", "Your order %s is complete, enjoy your meal"},
	orders.StatusCancelled:  {"Order cancelled", "Your order %s has been cancelled"},
}

func statusNotification(o *orders.Order) (title, content string) {
	if t, ok := statusTemplates[o.Status]; ok {
		return t.title, fmt.Sprintf(t.body, o.OrderNo)
	}
	return "Order update", fmt.Sprintf("Your order %s is now %s", o.OrderNo, orders.Label(o.Status))
}

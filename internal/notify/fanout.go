// Package notify records customer notifications and pushes order events to realtime channels.
package notify

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"go.uber.org/zap"
	"time"
)

type Type string

const (
	TypeSystem Type = "SYSTEM"
	TypeOrder  Type = "ORDER"
	TypePromo  Type = "PROMO"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      Type      `json:"type"`
	Read      bool      `json:"isRead"`
	RelatedID *int64    `json:"relatedId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store interface {
	InsertNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) error
	DeleteNotification(ctx context.Context, userID, id int64) error
	DeleteAllNotifications(ctx context.Context, userID int64) error
}

// Publisher is the realtime push transport. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// EventSink receives a copy of every fanned-out message for downstream consumers.
type EventSink interface {
	Emit(ctx context.Context, eventType, correlationID string, payload any) error
}

type Fanout struct {
	Store  Store
	Push   Publisher
	Events EventSink // optional
	Log    *zap.Logger
	Now    func() time.Time
}

func (f *Fanout) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// NotifyStatusChange persists an ORDER notification for the customer, then pushes the
// same payload to the customer and merchant channels. Errors are logged, never returned.
func (f *Fanout) NotifyStatusChange(ctx context.Context, o *orders.Order, old orders.Status) {
	now := f.now()
	title, content := statusNotification(o)
	related := o.ID
	n := &Notification{
		UserID:    o.UserID,
		Title:     title,
		Content:   content,
		Type:      TypeOrder,
		RelatedID: &related,
		CreatedAt: now,
	}
	if err := f.Store.InsertNotification(ctx, n); err != nil {
		f.Log.Error("persist notification failed", zap.String("order_no", o.OrderNo), zap.Error(err))
	}

	msg := StatusUpdateMessage(o, old, now)
	f.push(ctx, msg, UserChannel(o.UserID), MerchantChannel(o.StorefrontID))
	f.emit(ctx, msg)
}

// NotifyNewOrder alerts the merchant that a paid order is waiting.
func (f *Fanout) NotifyNewOrder(ctx context.Context, o *orders.Order) {
	msg := NewOrderMessage(o, f.now())
	f.push(ctx, msg, MerchantChannel(o.StorefrontID))
	f.emit(ctx, msg)
}

func (f *Fanout) push(ctx context.Context, msg Message, channels ...string) {
	b, err := json.Marshal(msg)
	if err != nil {
		f.Log.Error("encode realtime message", zap.Error(err))
		return
	}
	for _, ch := range channels {
		if err := f.Push.Publish(ctx, ch, b); err != nil {
			f.Log.Error("realtime push failed",
				zap.String("channel", ch),
				zap.String("order_no", msg.OrderNo),
				zap.Error(err))
			continue
		}
		f.Log.Debug("realtime push", zap.String("channel", ch), zap.String("type", msg.Type))
	}
}

func (f *Fanout) emit(ctx context.Context, msg Message) {
	if f.Events == nil {
		return
	}
	if err := f.Events.Emit(ctx, msg.Type, msg.OrderNo, msg); err != nil {
		f.Log.Warn("emit order event failed", zap.String("order_no", msg.OrderNo), zap.Error(err))
	}
}

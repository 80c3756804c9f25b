package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/takeaway-settlement/internal/events"
	kafkax "github.com/ariefcatur/takeaway-settlement/internal/kafka"
	"github.com/ariefcatur/takeaway-settlement/internal/ledger"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/settlement"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"time"
)

var ErrMissingOrderNo = errors.New("callback carries no order number")

// Enqueuer hands a callback to the asynchronous worker. events.Emitter satisfies it.
type Enqueuer interface {
	Emit(ctx context.Context, eventType, correlationID string, payload any) error
}

// Callbacks accepts vendor notifications. The body is never trusted for the
// outcome; it only names the order that should be reconciled.
type Callbacks struct {
	Payments *Service
	Queue    Enqueuer // nil reconciles inline
	Log      *zap.Logger
	Now      func() time.Time
}

// Accept returns queued=true when the callback was handed to the worker, otherwise
// the result of the inline reconciliation.
func (c *Callbacks) Accept(ctx context.Context, gateway, orderNo, transactionID string) (queued bool, res Result, err error) {
	if orderNo == "" {
		return false, Result{}, ErrMissingOrderNo
	}
	if _, err := c.Payments.reconciler(gateway); err != nil {
		return false, Result{}, err
	}
	if c.Queue == nil {
		res, err = c.Payments.QueryPayment(ctx, orderNo, gateway)
		return false, res, err
	}
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	err = c.Queue.Emit(ctx, events.EventPaymentCallback, orderNo, events.PaymentCallbackPayload{
		Gateway:       gateway,
		OrderNo:       orderNo,
		TransactionID: transactionID,
		ReceivedAt:    now.UTC(),
	})
	if err != nil {
		return false, Result{}, fmt.Errorf("enqueue callback: %w", err)
	}
	c.Log.Info("payment callback queued", zap.String("gateway", gateway), zap.String("order_no", orderNo))
	return true, Result{}, nil
}

// Deduper remembers which callbacks were already handled.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// CallbackWorker drains the payment.callback topic.
type CallbackWorker struct {
	Payments *Service
	Dedup    Deduper // optional
	Log      *zap.Logger
}

// Handle is a kafka handler. It returns an error only when the message should be retried;
// failures that no retry can fix are logged and acknowledged.
func (w *CallbackWorker) Handle(ctx context.Context, m kafkago.Message) error {
	if t, ok := kafkax.Header(m, events.HeaderEventType); ok && t != events.EventPaymentCallback {
		return nil
	}
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		w.Log.Warn("dropping undecodable callback", zap.Error(err))
		return nil
	}
	if env.EventType != events.EventPaymentCallback {
		return nil
	}
	if env.TraceID != "" {
		ctx = events.WithTraceID(ctx, env.TraceID)
	}
	p, err := kafkax.UnwrapPayload[events.PaymentCallbackPayload](env.Payload)
	if err != nil {
		w.Log.Warn("dropping callback with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	key := p.Gateway + ":" + p.OrderNo + ":" + env.EventID
	if w.Dedup != nil {
		ok, err := w.Dedup.Claim(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	res, err := w.Payments.QueryPayment(ctx, p.OrderNo, p.Gateway)
	if err != nil {
		if errors.Is(err, ErrUnknownGateway) {
			w.Log.Warn("callback for unknown gateway", zap.String("gateway", p.Gateway))
			return nil
		}
		if permanent(err) {
			// claim kept so a redelivery is skipped too
			w.Log.Warn("dropping callback that cannot be reconciled",
				zap.String("gateway", p.Gateway),
				zap.String("order_no", p.OrderNo),
				zap.String("event_id", env.EventID),
				zap.String("trace_id", env.TraceID),
				zap.Error(err))
			return nil
		}
		if w.Dedup != nil {
			_ = w.Dedup.Release(ctx, key)
		}
		return err
	}
	w.Log.Info("payment callback reconciled",
		zap.String("gateway", p.Gateway),
		zap.String("order_no", p.OrderNo),
		zap.String("status", res.Status))
	return nil
}

func permanent(err error) bool {
	return errors.Is(err, orders.ErrNotFound) ||
		errors.Is(err, orders.ErrInvalidInput) ||
		orders.IsInvalidState(err) ||
		orders.IsInvalidTransition(err) ||
		errors.Is(err, settlement.ErrInvalidRate) ||
		errors.Is(err, settlement.ErrNegativeMoney) ||
		errors.Is(err, ledger.ErrNegativeAmount)
}

package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/takeaway-settlement/internal/events"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/payment"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"sync"
	"testing"
	"time"
)

type queued struct {
	eventType, correlationID string
	payload                  any
}

type fakeQueue struct {
	got []queued
	err error
}

func (q *fakeQueue) Emit(_ context.Context, eventType, correlationID string, payload any) error {
	q.got = append(q.got, queued{eventType, correlationID, payload})
	return q.err
}

type memDedup struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memDedup) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memDedup) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func TestCallbacksInline(t *testing.T) {
	e := newEnv(t)
	o := e.pending("100.00")
	cb := &payment.Callbacks{Payments: payment.NewService(e.reconciler()), Log: zap.NewNop()}

	queuedFlag, res, err := cb.Accept(context.Background(), "alipay", o.OrderNo, "2024050122001")
	require.NoError(t, err)
	assert.False(t, queuedFlag)
	assert.True(t, res.Paid)

	_, _, err = cb.Accept(context.Background(), "alipay", "", "")
	assert.ErrorIs(t, err, payment.ErrMissingOrderNo)
	_, _, err = cb.Accept(context.Background(), "paypal", o.OrderNo, "")
	assert.ErrorIs(t, err, payment.ErrUnknownGateway)
}

func TestCallbacksQueued(t *testing.T) {
	e := newEnv(t)
	o := e.pending("100.00")
	q := &fakeQueue{}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cb := &payment.Callbacks{Payments: payment.NewService(e.reconciler()), Queue: q, Log: zap.NewNop(), Now: func() time.Time { return at }}

	queuedFlag, _, err := cb.Accept(context.Background(), "alipay", o.OrderNo, "tx-1")
	require.NoError(t, err)
	assert.True(t, queuedFlag)
	require.Len(t, q.got, 1)
	assert.Equal(t, events.EventPaymentCallback, q.got[0].eventType)
	assert.Equal(t, o.OrderNo, q.got[0].correlationID)
	assert.Equal(t, events.PaymentCallbackPayload{Gateway: "alipay", OrderNo: o.OrderNo, TransactionID: "tx-1", ReceivedAt: at}, q.got[0].payload)
	assert.Zero(t, e.gw.queries.Load(), "queued callbacks are reconciled by the worker")

	q.err = errors.New("queue full")
	_, _, err = cb.Accept(context.Background(), "alipay", o.OrderNo, "tx-1")
	assert.Error(t, err)
}

func callbackMessage(t *testing.T, eventID, gateway, orderNo string) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(events.PaymentCallbackPayload{Gateway: gateway, OrderNo: orderNo})
	require.NoError(t, err)
	value, err := json.Marshal(events.Envelope{
		EventID:      eventID,
		EventType:    events.EventPaymentCallback,
		EventVersion: 1,
		TraceID:      "trace-" + eventID,
		Payload:      payload,
	})
	require.NoError(t, err)
	return kafkago.Message{
		Value:   value,
		Headers: []kafkago.Header{{Key: events.HeaderEventType, Value: []byte(events.EventPaymentCallback)}},
	}
}

func TestCallbackWorker(t *testing.T) {
	e := newEnv(t)
	o := e.pending("100.00")
	w := &payment.CallbackWorker{
		Payments: payment.NewService(e.reconciler()),
		Dedup:    &memDedup{keys: map[string]bool{}},
		Log:      zap.NewNop(),
	}
	ctx := context.Background()

	require.NoError(t, w.Handle(ctx, callbackMessage(t, "ev-1", "alipay", o.OrderNo)))
	got, _ := e.store.OrderByID(ctx, o.ID)
	assert.Equal(t, orders.StatusPaid, got.Status)

	// redelivery of the same event is skipped
	require.NoError(t, w.Handle(ctx, callbackMessage(t, "ev-1", "alipay", o.OrderNo)))
	assert.Equal(t, int32(1), e.gw.queries.Load())

	// garbage and foreign events are acknowledged and dropped
	require.NoError(t, w.Handle(ctx, kafkago.Message{Value: []byte("{")}))
	require.NoError(t, w.Handle(ctx, callbackMessage(t, "ev-2", "paypal", o.OrderNo)))
}

func TestCallbackWorkerReleasesClaimOnFailure(t *testing.T) {
	e := newEnv(t)
	e.gw.err = errors.New("timeout")
	o := e.pending("100.00")
	dedup := &memDedup{keys: map[string]bool{}}
	w := &payment.CallbackWorker{Payments: payment.NewService(e.reconciler()), Dedup: dedup, Log: zap.NewNop()}
	ctx := context.Background()

	err := w.Handle(ctx, callbackMessage(t, "ev-9", "alipay", o.OrderNo))
	assert.True(t, payment.IsGatewayError(err))
	assert.Empty(t, dedup.keys)

	e.gw.err = nil
	require.NoError(t, w.Handle(ctx, callbackMessage(t, "ev-9", "alipay", o.OrderNo)))
	got, _ := e.store.OrderByID(ctx, o.ID)
	assert.Equal(t, orders.StatusPaid, got.Status)
}

func TestCallbackWorkerPropagatesTraceID(t *testing.T) {
	e := newEnv(t)
	o := e.pending("100.00")
	w := &payment.CallbackWorker{Payments: payment.NewService(e.reconciler()), Log: zap.NewNop()}

	require.NoError(t, w.Handle(context.Background(), callbackMessage(t, "ev-5", "alipay", o.OrderNo)))

	e.rec.mu.Lock()
	defer e.rec.mu.Unlock()
	require.NotEmpty(t, e.rec.traces)
	assert.Equal(t, "trace-ev-5", e.rec.traces[0])
}

func TestCallbackWorkerSkipsOtherEventTypesByHeader(t *testing.T) {
	e := newEnv(t)
	o := e.pending("100.00")
	w := &payment.CallbackWorker{Payments: payment.NewService(e.reconciler()), Log: zap.NewNop()}

	m := callbackMessage(t, "ev-6", "alipay", o.OrderNo)
	m.Headers = []kafkago.Header{{Key: events.HeaderEventType, Value: []byte(events.EventOrderStatusUpdate)}}
	require.NoError(t, w.Handle(context.Background(), m))
	assert.Zero(t, e.gw.queries.Load())
}

func TestCallbackWorkerAcknowledgesUnreconcilableOrders(t *testing.T) {
	e := newEnv(t)
	dedup := &memDedup{keys: map[string]bool{}}
	w := &payment.CallbackWorker{Payments: payment.NewService(e.reconciler()), Dedup: dedup, Log: zap.NewNop()}
	ctx := context.Background()

	// an order that never existed would otherwise block its partition forever
	require.NoError(t, w.Handle(ctx, callbackMessage(t, "ev-7", "alipay", "NO-SUCH-ORDER")))
	assert.Len(t, dedup.keys, 1, "claim is kept so redelivery is skipped")

	require.NoError(t, w.Handle(ctx, callbackMessage(t, "ev-7", "alipay", "NO-SUCH-ORDER")))
}

package payment_test

import (
	"context"
	"errors"
	"github.com/ariefcatur/takeaway-settlement/internal/events"
	"github.com/ariefcatur/takeaway-settlement/internal/ledger"
	"github.com/ariefcatur/takeaway-settlement/internal/memstore"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/payment"
	"github.com/ariefcatur/takeaway-settlement/internal/settlement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var d = decimal.RequireFromString

type fakeGateway struct {
	name     string
	status   payment.TradeStatus
	err      error
	artifact string
	queries  atomic.Int32
	intents  atomic.Int32

	// when set, QueryTradeStatus signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (payment.Artifact, error) {
	g.intents.Add(1)
	if g.err != nil {
		return payment.Artifact{}, g.err
	}
	return payment.Artifact{Kind: payment.ArtifactForm, Content: g.artifact}, nil
}

func (g *fakeGateway) QueryTradeStatus(context.Context, string) (payment.TradeStatus, error) {
	g.queries.Add(1)
	if g.release != nil {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		<-g.release
	}
	return g.status, g.err
}

type notification struct {
	kind    string
	orderNo string
	old     orders.Status
	status  orders.Status
}

type recorder struct {
	mu     sync.Mutex
	sent   []notification
	traces []string
}

func (r *recorder) NotifyStatusChange(ctx context.Context, o *orders.Order, old orders.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notification{"status", o.OrderNo, old, o.Status})
	r.traces = append(r.traces, events.TraceID(ctx))
}

func (r *recorder) NotifyNewOrder(_ context.Context, o *orders.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notification{kind: "new", orderNo: o.OrderNo, status: o.Status})
}

type env struct {
	store *memstore.Store
	gw    *fakeGateway
	rec   *recorder
	sf    orders.Storefront
	now   time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	m := memstore.New()
	return &env{
		store: m,
		gw:    &fakeGateway{name: "alipay", status: payment.TradeSuccess, artifact: "<form/>"},
		rec:   &recorder{},
		sf:    m.AddStorefront(orders.Storefront{OwnerID: 70, Name: "Noodle Bar"}),
		now:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (e *env) reconciler() *payment.Reconciler {
	return &payment.Reconciler{
		Gateway:     e.gw,
		Tx:          e.store,
		Orders:      e.store,
		Storefronts: e.store,
		Rates:       &settlement.Resolver{Source: e.store},
		Ledger:      &ledger.Ledger{Store: e.store, Tx: e.store},
		Notifier:    e.rec,
		Log:         zap.NewNop(),
		Now:         func() time.Time { return e.now },
	}
}

func (e *env) pending(pay string) orders.Order {
	return e.store.PutOrder(orders.Order{
		UserID:       7,
		StorefrontID: e.sf.ID,
		PayAmount:    d(pay),
		Status:       orders.StatusPending,
	})
}

func (e *env) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	sf, err := e.store.Storefront(context.Background(), e.sf.ID)
	require.NoError(t, err)
	return sf.Balance
}

func TestQueryAndSettlePaysOrder(t *testing.T) {
	e := newEnv(t)
	o := e.pending("100.00")

	status, err := e.reconciler().QueryAndSettle(context.Background(), o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, "PAID", status)

	got, err := e.store.OrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, e.now, *got.PaidAt)
	assert.Equal(t, "0.08", got.PlatformRate.Decimal.String())
	assert.Equal(t, "8.00", got.PlatformFee.Decimal.StringFixed(2))
	assert.Equal(t, "92.00", got.MerchantIncome.Decimal.StringFixed(2))
	assert.Equal(t, "92.00", e.balance(t).StringFixed(2))

	require.Len(t, e.rec.sent, 2)
	assert.Equal(t, notification{"status", o.OrderNo, orders.StatusPending, orders.StatusPaid}, e.rec.sent[0])
	assert.Equal(t, "new", e.rec.sent[1].kind)
}

func TestQueryAndSettleIsIdempotent(t *testing.T) {
	e := newEnv(t)
	o := e.pending("100.00")
	r := e.reconciler()
	ctx := context.Background()

	_, err := r.QueryAndSettle(ctx, o.OrderNo)
	require.NoError(t, err)
	status, err := r.QueryAndSettle(ctx, o.OrderNo)
	require.NoError(t, err)

	assert.Equal(t, "PAID", status)
	assert.Equal(t, int32(1), e.gw.queries.Load(), "settled orders must not hit the gateway")
	assert.Equal(t, "92.00", e.balance(t).StringFixed(2))
	assert.Len(t, e.store.Entries(e.sf.ID), 1)
	assert.Len(t, e.rec.sent, 2)
}

func TestConcurrentReconciliationCreditsOnce(t *testing.T) {
	e := newEnv(t)
	o := e.pending("100.00")
	// separate reconcilers so the in-process collapse does not hide races
	rs := []*payment.Reconciler{e.reconciler(), e.reconciler(), e.reconciler()}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(r *payment.Reconciler) {
			defer wg.Done()
			status, err := r.QueryAndSettle(context.Background(), o.OrderNo)
			assert.NoError(t, err)
			assert.Equal(t, "PAID", status)
		}(rs[i%len(rs)])
	}
	wg.Wait()

	assert.Equal(t, "92.00", e.balance(t).StringFixed(2))
	assert.Len(t, e.store.Entries(e.sf.ID), 1)

	e.rec.mu.Lock()
	defer e.rec.mu.Unlock()
	assert.Len(t, e.rec.sent, 2)
}

func TestCanceledCallerDoesNotFailSharedReconciliation(t *testing.T) {
	e := newEnv(t)
	e.gw.entered = make(chan struct{}, 1)
	e.gw.release = make(chan struct{})
	o := e.pending("100.00")
	r := e.reconciler()

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := r.QueryAndSettle(ctxA, o.OrderNo)
		errA <- err
	}()
	<-e.gw.entered

	type result struct {
		status string
		err    error
	}
	resB := make(chan result, 1)
	go func() {
		status, err := r.QueryAndSettle(context.Background(), o.OrderNo)
		resB <- result{status, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)
	close(e.gw.release)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "PAID", b.status)

	got, err := e.store.OrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.Len(t, e.store.Entries(e.sf.ID), 1)
	assert.Equal(t, "92.00", e.balance(t).StringFixed(2))
}

func TestNonSuccessTradeLeavesOrderPending(t *testing.T) {
	for _, ts := range []payment.TradeStatus{payment.TradeFailed, payment.TradePending, payment.TradeUnknown} {
		e := newEnv(t)
		e.gw.status = ts
		o := e.pending("20.00")

		status, err := e.reconciler().QueryAndSettle(context.Background(), o.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, string(ts), status)

		got, _ := e.store.OrderByID(context.Background(), o.ID)
		assert.Equal(t, orders.StatusPending, got.Status)
		assert.False(t, got.PlatformFee.Valid)
		assert.True(t, e.balance(t).IsZero())
		assert.Empty(t, e.rec.sent)
	}
}

func TestGatewayFailureIsWrapped(t *testing.T) {
	e := newEnv(t)
	boom := errors.New("connection reset")
	e.gw.err = boom
	o := e.pending("20.00")

	_, err := e.reconciler().QueryAndSettle(context.Background(), o.OrderNo)
	require.Error(t, err)
	assert.True(t, payment.IsGatewayError(err))
	assert.ErrorIs(t, err, boom)

	got, _ := e.store.OrderByID(context.Background(), o.ID)
	assert.Equal(t, orders.StatusPending, got.Status)
}

func TestUnrecognizedTradeStatusIsMalformed(t *testing.T) {
	e := newEnv(t)
	e.gw.status = payment.TradeStatus("WEIRD")
	o := e.pending("20.00")

	_, err := e.reconciler().QueryAndSettle(context.Background(), o.OrderNo)
	assert.True(t, payment.IsGatewayError(err))
	assert.ErrorIs(t, err, payment.ErrMalformedResponse)
}

func TestAlreadyCancelledOrderIsReturnedAsIs(t *testing.T) {
	e := newEnv(t)
	o := e.store.PutOrder(orders.Order{UserID: 7, StorefrontID: e.sf.ID, PayAmount: d("5"), Status: orders.StatusCancelled})

	status, err := e.reconciler().QueryAndSettle(context.Background(), o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", status)
	assert.Zero(t, e.gw.queries.Load())
}

func TestUnknownOrderNumber(t *testing.T) {
	e := newEnv(t)
	_, err := e.reconciler().QueryAndSettle(context.Background(), "ORD-missing")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestRatePrecedence(t *testing.T) {
	ctx := context.Background()

	e := newEnv(t)
	require.NoError(t, e.store.SetDefaultPlatformRate(ctx, d("0.05")))
	o := e.pending("100.00")
	_, err := e.reconciler().QueryAndSettle(ctx, o.OrderNo)
	require.NoError(t, err)
	got, _ := e.store.OrderByID(ctx, o.ID)
	assert.Equal(t, "5.00", got.PlatformFee.Decimal.StringFixed(2))

	e = newEnv(t)
	require.NoError(t, e.store.SetDefaultPlatformRate(ctx, d("0.05")))
	rate := d("0.10")
	_, err = e.store.PatchStorefront(ctx, e.sf.ID, orders.StorefrontPatch{PlatformRate: &rate})
	require.NoError(t, err)
	o = e.pending("59.90")
	_, err = e.reconciler().QueryAndSettle(ctx, o.OrderNo)
	require.NoError(t, err)
	got, _ = e.store.OrderByID(ctx, o.ID)
	assert.Equal(t, "5.99", got.PlatformFee.Decimal.StringFixed(2))
	assert.Equal(t, "53.91", got.MerchantIncome.Decimal.StringFixed(2))

	e = newEnv(t)
	require.NoError(t, e.store.SetConfig(ctx, settlement.KeyDefaultPlatformRate, "not-a-number"))
	o = e.pending("100.00")
	_, err = e.reconciler().QueryAndSettle(ctx, o.OrderNo)
	require.NoError(t, err)
	got, _ = e.store.OrderByID(ctx, o.ID)
	assert.Equal(t, "8.00", got.PlatformFee.Decimal.StringFixed(2))
}

func TestCreatePaymentArtifact(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.pending("42.00")

	art, err := e.reconciler().CreatePaymentArtifact(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "alipay", art.Gateway)
	assert.Equal(t, o.OrderNo, art.OrderNo)
	assert.Equal(t, "<form/>", art.Content)

	got, _ := e.store.OrderByID(ctx, o.ID)
	assert.Equal(t, orders.StatusPending, got.Status)

	paid := e.store.PutOrder(orders.Order{UserID: 7, StorefrontID: e.sf.ID, PayAmount: d("1"), Status: orders.StatusPaid})
	_, err = e.reconciler().CreatePaymentArtifact(ctx, paid.ID)
	assert.True(t, orders.IsInvalidState(err))
	assert.Equal(t, int32(1), e.gw.intents.Load())

	e.gw.artifact = ""
	_, err = e.reconciler().CreatePaymentArtifact(ctx, o.ID)
	assert.True(t, payment.IsGatewayError(err))
}

func TestServiceRoutesByGateway(t *testing.T) {
	e := newEnv(t)
	wechat := &fakeGateway{name: "wechat", status: payment.TradePending}
	rw := e.reconciler()
	rw.Gateway = wechat
	svc := payment.NewService(e.reconciler(), rw)
	ctx := context.Background()

	assert.Equal(t, []string{"alipay", "wechat"}, svc.Gateways())

	o := e.pending("10.00")
	res, err := svc.QueryPayment(ctx, o.OrderNo, "wechat")
	require.NoError(t, err)
	assert.Equal(t, payment.Result{OrderNo: o.OrderNo, Status: "PENDING", Paid: false}, res)

	res, err = svc.QueryPayment(ctx, o.OrderNo, "alipay")
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, "PAID", res.Status)

	_, err = svc.QueryPayment(ctx, o.OrderNo, "paypal")
	assert.ErrorIs(t, err, payment.ErrUnknownGateway)
	_, err = svc.CreatePayment(ctx, o.ID, "paypal")
	assert.ErrorIs(t, err, payment.ErrUnknownGateway)
}

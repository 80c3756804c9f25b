// Package payment reconciles external payment gateways against the order state machine.
package payment

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/settlement"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"time"
)

type Crediter interface {
	Credit(ctx context.Context, storefrontID, orderID int64, amount decimal.Decimal) error
}

// Reconciler binds one gateway to the order lifecycle. Every gateway gets its own instance.
type Reconciler struct {
	Gateway     Gateway
	Tx          orders.TxRunner
	Orders      orders.Store
	Storefronts orders.StorefrontStore
	Rates       *settlement.Resolver
	Ledger      Crediter
	Notifier    orders.Notifier
	Cache       orders.StatusCache // optional
	Log         *zap.Logger
	CallbackURL string
	Timeout     time.Duration // per gateway call, 0 = caller's context only
	Now         func() time.Time

	// collapses concurrent polls for the same order inside this process;
	// cross-process safety comes from the row lock in settle
	sf singleflight.Group
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reconciler) gatewayCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout > 0 {
		return context.WithTimeout(ctx, r.Timeout)
	}
	return context.WithCancel(ctx)
}

func (r *Reconciler) wrap(op string, err error) error {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return err
	}
	return &GatewayError{Gateway: r.Gateway.Name(), Op: op, Err: err}
}

// CreatePaymentArtifact asks the gateway for something the customer can pay with.
// The order must be PENDING; its status is not changed.
func (r *Reconciler) CreatePaymentArtifact(ctx context.Context, orderID int64) (Artifact, error) {
	o, err := r.Orders.OrderByID(ctx, orderID)
	if err != nil {
		return Artifact{}, err
	}
	if o.Status != orders.StatusPending {
		return Artifact{}, &orders.StateError{Op: "payment", Current: o.Status}
	}
	sf, err := r.Storefronts.Storefront(ctx, o.StorefrontID)
	if err != nil {
		return Artifact{}, err
	}

	gctx, cancel := r.gatewayCtx(ctx)
	defer cancel()
	art, err := r.Gateway.CreateIntent(gctx, IntentRequest{
		OrderNo:     o.OrderNo,
		Amount:      o.PayAmount,
		Description: "Order payment - " + sf.Name,
		CallbackURL: r.CallbackURL,
	})
	if err != nil {
		r.Log.Error("create payment failed", zap.String("gateway", r.Gateway.Name()),
			zap.String("order_no", o.OrderNo), zap.Error(err))
		return Artifact{}, r.wrap("create", err)
	}
	if art.Content == "" {
		return Artifact{}, r.wrap("create", fmt.Errorf("%w: empty artifact", ErrMalformedResponse))
	}
	art.Gateway = r.Gateway.Name()
	art.OrderNo = o.OrderNo
	r.Log.Info("payment artifact created", zap.String("gateway", art.Gateway),
		zap.String("order_no", o.OrderNo), zap.String("kind", string(art.Kind)))
	return art, nil
}

// QueryAndSettle returns the order status if it already left PENDING, otherwise asks the
// gateway and, on success, moves the order to PAID with settlement and merchant credit.
// Non-success trade states are returned verbatim without touching the order.
func (r *Reconciler) QueryAndSettle(ctx context.Context, orderNo string) (string, error) {
	// the shared call outlives any single caller; each caller still honours its own ctx
	ch := r.sf.DoChan(orderNo, func() (any, error) {
		return r.queryAndSettle(context.WithoutCancel(ctx), orderNo)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Reconciler) queryAndSettle(ctx context.Context, orderNo string) (string, error) {
	o, err := r.Orders.OrderByNumber(ctx, orderNo)
	if err != nil {
		return "", err
	}
	if o.Status != orders.StatusPending {
		return string(o.Status), nil
	}

	gctx, cancel := r.gatewayCtx(ctx)
	ts, err := r.Gateway.QueryTradeStatus(gctx, orderNo)
	cancel()
	if err != nil {
		r.Log.Error("query trade status failed", zap.String("gateway", r.Gateway.Name()),
			zap.String("order_no", orderNo), zap.Error(err))
		return "", r.wrap("query", err)
	}
	switch ts {
	case TradeSuccess:
	case TradePending, TradeFailed, TradeUnknown:
		r.Log.Info("trade not paid yet", zap.String("gateway", r.Gateway.Name()),
			zap.String("order_no", orderNo), zap.String("trade_status", string(ts)))
		return string(ts), nil
	default:
		return "", r.wrap("query", fmt.Errorf("%w: trade status %q", ErrMalformedResponse, ts))
	}

	return r.settle(ctx, orderNo)
}

func (r *Reconciler) settle(ctx context.Context, orderNo string) (string, error) {
	var (
		paid    *orders.Order
		old     orders.Status
		current orders.Status
		split   settlement.Split
	)
	err := r.Tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := r.Orders.LockOrderByNumber(ctx, orderNo)
		if err != nil {
			return err
		}
		current = o.Status
		if o.Status != orders.StatusPending {
			// a concurrent reconciliation got here first
			return nil
		}

		sf, err := r.Storefronts.Storefront(ctx, o.StorefrontID)
		if err != nil {
			return err
		}
		rate, err := r.Rates.Resolve(ctx, sf.PlatformRate)
		if err != nil {
			return fmt.Errorf("resolve platform rate: %w", err)
		}
		split, err = settlement.Settle(o.PayAmount, rate)
		if err != nil {
			return err
		}

		old, err = orders.Transition(o, orders.StatusPaid, orders.PaymentActor, r.now())
		if err != nil {
			return err
		}
		o.PlatformRate = decimal.NewNullDecimal(split.Rate)
		o.PlatformFee = decimal.NewNullDecimal(split.PlatformFee)
		o.MerchantIncome = decimal.NewNullDecimal(split.MerchantIncome)
		if err := r.Orders.UpdateOrderState(ctx, o, old); err != nil {
			return err
		}
		if err := r.Ledger.Credit(ctx, o.StorefrontID, o.ID, split.MerchantIncome); err != nil {
			return fmt.Errorf("credit merchant: %w", err)
		}
		paid, current = o, o.Status
		return nil
	})
	if err != nil {
		return "", err
	}
	if paid == nil {
		return string(current), nil
	}

	r.Log.Info("order paid",
		zap.String("gateway", r.Gateway.Name()),
		zap.String("order_no", paid.OrderNo),
		zap.String("pay_amount", paid.PayAmount.StringFixed(2)),
		zap.String("platform_fee", split.PlatformFee.StringFixed(2)),
		zap.String("merchant_income", split.MerchantIncome.StringFixed(2)))
	if r.Cache != nil {
		r.Cache.SetStatus(ctx, paid)
	}
	r.Notifier.NotifyStatusChange(ctx, paid, old)
	r.Notifier.NotifyNewOrder(ctx, paid)
	return string(current), nil
}

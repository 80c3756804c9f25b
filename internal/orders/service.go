package orders

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strings"
	"time"
)

type MerchantAction string

const (
	ActionConfirm         MerchantAction = "confirm"
	ActionStartPreparing  MerchantAction = "startPreparing"
	ActionStartDelivering MerchantAction = "startDelivering"
	ActionComplete        MerchantAction = "complete"
)

var actionTargets = map[MerchantAction]Status{
	ActionConfirm:         StatusConfirmed,
	ActionStartPreparing:  StatusPreparing,
	ActionStartDelivering: StatusDelivering,
	ActionComplete:        StatusCompleted,
}

func ParseAction(s string) (MerchantAction, bool) {
	a := MerchantAction(s)
	_, ok := actionTargets[a]
	return a, ok
}

// Service drives the lifecycle operations that re-enter the state machine outside of payment.
type Service struct {
	Tx          TxRunner
	Orders      Store
	Storefronts StorefrontStore
	Catalog     Catalog
	Ledger      BalanceReverser
	Notifier    Notifier
	Cache       StatusCache // optional
	Log         *zap.Logger
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PlaceOrder snapshots catalog lines and creates a PENDING order.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", ErrInvalidInput)
	}
	sf, err := s.Storefronts.Storefront(ctx, in.StorefrontID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: invalid quantity for menu item %d", ErrInvalidInput, it.MenuItemID)
		}
		ids = append(ids, it.MenuItemID)
	}
	menu, err := s.Catalog.MenuItems(ctx, sf.ID, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		OrderNo:        NewOrderNo(now),
		UserID:         in.UserID,
		StorefrontID:   sf.ID,
		DeliveryFee:    sf.DeliveryFee,
		DiscountAmount: decimal.Zero,
		Status:         StatusPending,
		Address:        in.Address,
		Phone:          in.Phone,
		Remark:         in.Remark,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	total := decimal.Zero
	for _, it := range in.Items {
		m, ok := menu[it.MenuItemID]
		if !ok {
			return nil, fmt.Errorf("%w: menu item %d", ErrNotFound, it.MenuItemID)
		}
		if !m.Available {
			return nil, fmt.Errorf("%w: menu item %d is unavailable", ErrInvalidInput, it.MenuItemID)
		}
		line := OrderItem{MenuItemID: m.ID, Name: m.Name, Image: m.Image, Price: m.Price, Quantity: it.Quantity}
		o.Items = append(o.Items, line)
		total = total.Add(line.Subtotal())
	}
	o.TotalAmount = total
	o.PayAmount = total.Add(o.DeliveryFee).Sub(o.DiscountAmount)
	if o.PayAmount.IsNegative() {
		return nil, fmt.Errorf("%w: pay amount is negative", ErrInvalidInput)
	}

	if err := s.Orders.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	s.Log.Info("order placed", zap.String("order_no", o.OrderNo), zap.Int64("user_id", o.UserID),
		zap.String("pay_amount", o.PayAmount.StringFixed(2)))
	s.cache(ctx, o)
	return o, nil
}

// NewOrderNo returns ORD<unix millis><4 upper hex chars>.
func NewOrderNo(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("ORD%d%s", now.UnixMilli(), suffix)
}

func (s *Service) ApplyMerchantTransition(ctx context.Context, ownerID, orderID int64, action MerchantAction) (*Order, error) {
	to, ok := actionTargets[action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown merchant action %q", ErrInvalidInput, action)
	}
	sf, err := s.Storefronts.StorefrontByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	actor := Actor{Role: RoleMerchant, UserID: ownerID}
	return s.transition(ctx, orderID, to, actor, func(o *Order) error {
		if o.StorefrontID != sf.ID {
			return ErrForbidden
		}
		return nil
	})
}

// CancelOrder cancels a PENDING or PAID order. Cancelling a PAID order reverses the merchant credit.
func (s *Service) CancelOrder(ctx context.Context, actor Actor, orderID int64) (*Order, error) {
	return s.transition(ctx, orderID, StatusCancelled, actor, func(o *Order) error {
		if actor.Role == RoleCustomer && o.UserID != actor.UserID {
			return ErrForbidden
		}
		return nil
	})
}

func (s *Service) CustomerConfirmReceipt(ctx context.Context, userID, orderID int64) (*Order, error) {
	actor := Actor{Role: RoleCustomer, UserID: userID}
	return s.transition(ctx, orderID, StatusCompleted, actor, func(o *Order) error {
		if o.UserID != userID {
			return ErrForbidden
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, orderID int64, to Status, actor Actor, check func(*Order) error) (*Order, error) {
	var (
		out *Order
		old Status
	)
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.Orders.LockOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := check(o); err != nil {
			return err
		}
		old, err = Transition(o, to, actor, s.now())
		if err != nil {
			return err
		}
		if err := s.Orders.UpdateOrderState(ctx, o, old); err != nil {
			return err
		}
		if old == StatusPaid && to == StatusCancelled && o.MerchantIncome.Valid {
			if err := s.Ledger.Reverse(ctx, o.StorefrontID, o.ID, o.MerchantIncome.Decimal); err != nil {
				return fmt.Errorf("reverse settlement: %w", err)
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("order status changed",
		zap.String("order_no", out.OrderNo),
		zap.String("old_status", string(old)),
		zap.String("new_status", string(out.Status)),
		zap.String("actor", string(actor.Role)))
	s.cache(ctx, out)
	s.Notifier.NotifyStatusChange(ctx, out, old)
	return out, nil
}

func (s *Service) cache(ctx context.Context, o *Order) {
	if s.Cache != nil {
		s.Cache.SetStatus(ctx, o)
	}
}

func (s *Service) Get(ctx context.Context, orderID int64) (*Order, error) {
	return s.Orders.OrderByID(ctx, orderID)
}

func (s *Service) ListForCustomer(ctx context.Context, userID int64, f ListFilter) ([]Order, error) {
	return s.Orders.ListUserOrders(ctx, userID, f.Normalize())
}

// ListForMerchant never returns unpaid (PENDING) orders.
func (s *Service) ListForMerchant(ctx context.Context, ownerID int64, f ListFilter) ([]Order, error) {
	sf, err := s.Storefronts.StorefrontByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if f.Status == StatusPending {
		return []Order{}, nil
	}
	return s.Orders.ListStorefrontOrders(ctx, sf.ID, f.Normalize())
}

func (s *Service) ByNumber(ctx context.Context, orderNo string) (*Order, error) {
	return s.Orders.OrderByNumber(ctx, orderNo)
}

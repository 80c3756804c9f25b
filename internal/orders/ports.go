package orders

import (
	"context"
	"github.com/shopspring/decimal"
)

// TxRunner runs fn inside one local transaction carried by ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	OrderByID(ctx context.Context, id int64) (*Order, error)
	OrderByNumber(ctx context.Context, orderNo string) (*Order, error)
	// Lock* variants take the row lock and must run inside RunInTx.
	LockOrderByID(ctx context.Context, id int64) (*Order, error)
	LockOrderByNumber(ctx context.Context, orderNo string) (*Order, error)
	// UpdateOrderState persists status, timestamps and settlement fields,
	// guarded on the row still being in status from.
	UpdateOrderState(ctx context.Context, o *Order, from Status) error
	ListUserOrders(ctx context.Context, userID int64, f ListFilter) ([]Order, error)
	// ListStorefrontOrders excludes PENDING orders.
	ListStorefrontOrders(ctx context.Context, storefrontID int64, f ListFilter) ([]Order, error)
}

type StorefrontStore interface {
	Storefront(ctx context.Context, id int64) (*Storefront, error)
	StorefrontByOwner(ctx context.Context, ownerID int64) (*Storefront, error)
	PatchStorefront(ctx context.Context, id int64, p StorefrontPatch) (*Storefront, error)
}

type Catalog interface {
	MenuItems(ctx context.Context, storefrontID int64, ids []int64) (map[int64]MenuItem, error)
}

// Notifier fans status changes out to customer and merchant. Implementations never fail the caller.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, o *Order, old Status)
	NotifyNewOrder(ctx context.Context, o *Order)
}

// StatusCache remembers the latest status of an order. Writes are best effort.
type StatusCache interface {
	SetStatus(ctx context.Context, o *Order)
}

// BalanceReverser undoes a settlement credit when a paid order is cancelled.
type BalanceReverser interface {
	Reverse(ctx context.Context, storefrontID, orderID int64, amount decimal.Decimal) error
}

package orders

import (
	"github.com/shopspring/decimal"
	"time"
)

type Order struct {
	ID             int64
	OrderNo        string
	UserID         int64
	StorefrontID   int64
	Items          []OrderItem
	TotalAmount    decimal.Decimal
	DeliveryFee    decimal.Decimal
	DiscountAmount decimal.Decimal
	PayAmount      decimal.Decimal
	// set once on PENDING -> PAID
	PlatformRate   decimal.NullDecimal
	PlatformFee    decimal.NullDecimal
	MerchantIncome decimal.NullDecimal
	Status         Status
	Address        string
	Phone          string
	Remark         string
	CreatedAt      time.Time
	PaidAt         *time.Time
	DeliveryTime   *time.Time
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}

// OrderItem is a snapshot of the catalog line at order time.
type OrderItem struct {
	ID         int64
	OrderID    int64
	MenuItemID int64
	Name       string
	Image      string
	Price      decimal.Decimal
	Quantity   int
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Storefront struct {
	ID           int64
	OwnerID      int64
	Name         string
	DeliveryFee  decimal.Decimal
	Balance      decimal.Decimal
	PlatformRate decimal.NullDecimal
	UpdatedAt    time.Time
}

// StorefrontPatch lists the administratively mutable storefront fields.
// Nil fields are left untouched.
type StorefrontPatch struct {
	PlatformRate      *decimal.Decimal
	ClearPlatformRate bool
	DeliveryFee       *decimal.Decimal
}

func (p StorefrontPatch) Apply(sf *Storefront) {
	if p.ClearPlatformRate {
		sf.PlatformRate = decimal.NullDecimal{}
	}
	if p.PlatformRate != nil {
		sf.PlatformRate = decimal.NewNullDecimal(*p.PlatformRate)
	}
	if p.DeliveryFee != nil {
		sf.DeliveryFee = *p.DeliveryFee
	}
}

type MenuItem struct {
	ID           int64
	StorefrontID int64
	Name         string
	Image        string
	Price        decimal.Decimal
	Available    bool
}

type ItemInput struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
}

type PlaceOrderInput struct {
	UserID       int64       `json:"-"`
	StorefrontID int64       `json:"storefront_id"`
	Items        []ItemInput `json:"items"`
	Address      string      `json:"address"`
	Phone        string      `json:"phone"`
	Remark       string      `json:"remark"`
}

type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

func (f ListFilter) Normalize() ListFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = 20
	case f.Limit > 100:
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

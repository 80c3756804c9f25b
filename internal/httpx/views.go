package httpx

import (
	"github.com/ariefcatur/takeaway-settlement/internal/ledger"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/shopspring/decimal"
	"time"
)

// money renders with exactly two decimals.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

func nullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}

type itemView struct {
	MenuItemID int64  `json:"menuItemId"`
	Name       string `json:"name"`
	Image      string `json:"image,omitempty"`
	Price      string `json:"price"`
	Quantity   int    `json:"quantity"`
	Subtotal   string `json:"subtotal"`
}

type orderView struct {
	ID             int64      `json:"id"`
	OrderNo        string     `json:"orderNo"`
	UserID         int64      `json:"userId"`
	StorefrontID   int64      `json:"restaurantId"`
	Items          []itemView `json:"items"`
	TotalAmount    string     `json:"totalAmount"`
	DeliveryFee    string     `json:"deliveryFee"`
	DiscountAmount string     `json:"discountAmount"`
	PayAmount      string     `json:"payAmount"`
	PlatformRate   *string    `json:"platformRate,omitempty"`
	PlatformFee    *string    `json:"platformFee,omitempty"`
	MerchantIncome *string    `json:"merchantIncome,omitempty"`
	Status         string     `json:"status"`
	StatusLabel    string     `json:"statusLabel"`
	Address        string     `json:"address"`
	Phone          string     `json:"phone"`
	Remark         string     `json:"remark,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
	DeliveryTime   *time.Time `json:"deliveryTime,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func viewOrder(o *orders.Order) orderView {
	v := orderView{
		ID:             o.ID,
		OrderNo:        o.OrderNo,
		UserID:         o.UserID,
		StorefrontID:   o.StorefrontID,
		Items:          make([]itemView, 0, len(o.Items)),
		TotalAmount:    money(o.TotalAmount),
		DeliveryFee:    money(o.DeliveryFee),
		DiscountAmount: money(o.DiscountAmount),
		PayAmount:      money(o.PayAmount),
		PlatformFee:    nullMoney(o.PlatformFee),
		MerchantIncome: nullMoney(o.MerchantIncome),
		Status:         string(o.Status),
		StatusLabel:    orders.Label(o.Status),
		Address:        o.Address,
		Phone:          o.Phone,
		Remark:         o.Remark,
		CreatedAt:      o.CreatedAt,
		PaidAt:         o.PaidAt,
		DeliveryTime:   o.DeliveryTime,
		CompletedAt:    o.CompletedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.PlatformRate.Valid {
		r := o.PlatformRate.Decimal.String()
		v.PlatformRate = &r
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, itemView{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Image:      it.Image,
			Price:      money(it.Price),
			Quantity:   it.Quantity,
			Subtotal:   money(it.Subtotal()),
		})
	}
	return v
}

func viewOrders(os []orders.Order) []orderView {
	out := make([]orderView, 0, len(os))
	for i := range os {
		out = append(out, viewOrder(&os[i]))
	}
	return out
}

type entryView struct {
	ID           string    `json:"id"`
	OrderID      *int64    `json:"orderId,omitempty"`
	Kind         string    `json:"kind"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balanceAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}

func viewEntries(es []ledger.Entry) []entryView {
	out := make([]entryView, 0, len(es))
	for _, e := range es {
		out = append(out, entryView{
			ID:           e.ID,
			OrderID:      e.OrderID,
			Kind:         string(e.Kind),
			Amount:       money(e.Amount),
			BalanceAfter: money(e.BalanceAfter),
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}

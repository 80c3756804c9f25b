package postgres

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"strings"
)

// OrderStore implements orders.Store.
type OrderStore struct {
	DB *pgxpool.Pool
	Tx *TxManager
}

const orderColumns = `id, order_no, user_id, storefront_id, total_amount, delivery_fee, discount_amount,
	pay_amount, platform_rate, platform_fee, merchant_income, status, address, phone, remark,
	created_at, paid_at, delivery_time, completed_at, updated_at`

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.OrderNo, &o.UserID, &o.StorefrontID, &o.TotalAmount, &o.DeliveryFee,
		&o.DiscountAmount, &o.PayAmount, &o.PlatformRate, &o.PlatformFee, &o.MerchantIncome, &status,
		&o.Address, &o.Phone, &o.Remark, &o.CreatedAt, &o.PaidAt, &o.DeliveryTime, &o.CompletedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)
	return &o, nil
}

func (s *OrderStore) CreateOrder(ctx context.Context, o *orders.Order) error {
	return s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, s.DB)
		err := q.QueryRow(ctx, `
			INSERT INTO orders(order_no, user_id, storefront_id, total_amount, delivery_fee, discount_amount,
				pay_amount, status, address, phone, remark, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id`,
			o.OrderNo, o.UserID, o.StorefrontID, o.TotalAmount, o.DeliveryFee, o.DiscountAmount,
			o.PayAmount, string(o.Status), o.Address, o.Phone, o.Remark, o.CreatedAt, o.UpdatedAt,
		).Scan(&o.ID)
		if err != nil {
			return err
		}

		for i := range o.Items {
			it := &o.Items[i]
			it.OrderID = o.ID
			err := q.QueryRow(ctx, `
				INSERT INTO order_items(order_id, menu_item_id, name, image, price, quantity)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				o.ID, it.MenuItemID, it.Name, it.Image, it.Price, it.Quantity,
			).Scan(&it.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *OrderStore) one(ctx context.Context, where string, arg any, lock bool) (*orders.Order, error) {
	if lock && !inTx(ctx) {
		return nil, errors.New("row lock requested outside a transaction")
	}
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where
	if lock {
		sql += ` FOR UPDATE`
	}
	q := conn(ctx, s.DB)
	o, err := scanOrder(q.QueryRow(ctx, sql, arg))
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, q, []*orders.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderStore) OrderByID(ctx context.Context, id int64) (*orders.Order, error) {
	return s.one(ctx, `id=$1`, id, false)
}

func (s *OrderStore) OrderByNumber(ctx context.Context, orderNo string) (*orders.Order, error) {
	return s.one(ctx, `order_no=$1`, orderNo, false)
}

func (s *OrderStore) LockOrderByID(ctx context.Context, id int64) (*orders.Order, error) {
	return s.one(ctx, `id=$1`, id, true)
}

func (s *OrderStore) LockOrderByNumber(ctx context.Context, orderNo string) (*orders.Order, error) {
	return s.one(ctx, `order_no=$1`, orderNo, true)
}

func (s *OrderStore) UpdateOrderState(ctx context.Context, o *orders.Order, from orders.Status) error {
	q := conn(ctx, s.DB)
	tag, err := q.Exec(ctx, `
		UPDATE orders
		SET status=$2, platform_rate=$3, platform_fee=$4, merchant_income=$5,
			paid_at=$6, delivery_time=$7, completed_at=$8, updated_at=$9
		WHERE id=$1 AND status=$10`,
		o.ID, string(o.Status), o.PlatformRate, o.PlatformFee, o.MerchantIncome,
		o.PaidAt, o.DeliveryTime, o.CompletedAt, o.UpdatedAt, string(from),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var current string
	if err := q.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, o.ID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orders.ErrNotFound
		}
		return err
	}
	return &orders.TransitionError{From: orders.Status(current), To: o.Status}
}

func (s *OrderStore) ListUserOrders(ctx context.Context, userID int64, f orders.ListFilter) ([]orders.Order, error) {
	return s.list(ctx, "user_id", userID, f, false)
}

func (s *OrderStore) ListStorefrontOrders(ctx context.Context, storefrontID int64, f orders.ListFilter) ([]orders.Order, error) {
	return s.list(ctx, "storefront_id", storefrontID, f, true)
}

func (s *OrderStore) list(ctx context.Context, col string, id int64, f orders.ListFilter, hidePending bool) ([]orders.Order, error) {
	f = f.Normalize()
	conds := []string{col + "=$1"}
	args := []any{id}
	if hidePending {
		conds = append(conds, "status<>'PENDING'")
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	args = append(args, f.Limit, f.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, strings.Join(conds, " AND "), len(args)-1, len(args))

	q := conn(ctx, s.DB)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	ptrs := make([]*orders.Order, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := s.loadItems(ctx, q, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *OrderStore) loadItems(ctx context.Context, q querier, os []*orders.Order) error {
	if len(os) == 0 {
		return nil
	}
	ids := make([]int64, len(os))
	byID := make(map[int64]*orders.Order, len(os))
	for i, o := range os {
		ids[i] = o.ID
		byID[o.ID] = o
	}
	rows, err := q.Query(ctx, `
		SELECT id, order_id, menu_item_id, name, image, price, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Image, &it.Price, &it.Quantity); err != nil {
			return err
		}
		o := byID[it.OrderID]
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

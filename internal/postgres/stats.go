package postgres

import (
	"context"
	"fmt"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/stats"
	"github.com/jackc/pgx/v5/pgxpool"
	"strings"
)

// StatsStore implements stats.Source with plain aggregate queries on orders.
type StatsStore struct {
	DB *pgxpool.Pool
}

type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func scoped(scope stats.Scope) *where {
	w := &where{}
	if !scope.Platform() {
		w.add("storefront_id=$%d", scope.StorefrontID)
	}
	return w
}

func (w *where) within(col string, r stats.Range) {
	if r.From != nil {
		w.add(col+">=$%d", *r.From)
	}
	if r.To != nil {
		w.add(col+"<$%d", *r.To)
	}
}

func (s *StatsStore) CountByStatus(ctx context.Context, scope stats.Scope) (map[orders.Status]int64, error) {
	w := scoped(scope)
	rows, err := s.DB.Query(ctx, `SELECT status, count(*) FROM orders`+w.sql()+` GROUP BY status`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[orders.Status]int64{}
	for rows.Next() {
		var (
			st string
			n  int64
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[orders.Status(st)] = n
	}
	return out, rows.Err()
}

func (s *StatsStore) CountCreated(ctx context.Context, scope stats.Scope, r stats.Range) (int64, error) {
	w := scoped(scope)
	w.within("created_at", r)
	var n int64
	err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders`+w.sql(), w.args...).Scan(&n)
	return n, err
}

func (s *StatsStore) SumCompleted(ctx context.Context, scope stats.Scope, r stats.Range) (stats.Sums, error) {
	w := scoped(scope)
	w.add("status=$%d", string(orders.StatusCompleted))
	w.within("completed_at", r)
	var out stats.Sums
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(pay_amount), 0), COALESCE(SUM(platform_fee), 0), COALESCE(SUM(merchant_income), 0)
		FROM orders`+w.sql(), w.args...).Scan(&out.PayAmount, &out.PlatformFee, &out.MerchantIncome)
	return out, err
}

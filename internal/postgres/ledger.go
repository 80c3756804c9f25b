package postgres

import (
	"context"
	"errors"
	"github.com/ariefcatur/takeaway-settlement/internal/ledger"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerStore implements ledger.Store over storefronts.balance and ledger_entries.
type LedgerStore struct {
	DB *pgxpool.Pool
}

func (s *LedgerStore) LockBalance(ctx context.Context, storefrontID int64) (decimal.Decimal, error) {
	var b decimal.Decimal
	err := conn(ctx, s.DB).QueryRow(ctx, `SELECT balance FROM storefronts WHERE id=$1 FOR UPDATE`, storefrontID).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, orders.ErrNotFound
	}
	return b, err
}

func (s *LedgerStore) AddBalance(ctx context.Context, storefrontID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var b decimal.Decimal
	err := conn(ctx, s.DB).QueryRow(ctx, `
		UPDATE storefronts SET balance = balance + $2, updated_at = now()
		WHERE id=$1 RETURNING balance`, storefrontID, delta).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, orders.ErrNotFound
	}
	return b, err
}

func (s *LedgerStore) AppendEntry(ctx context.Context, e ledger.Entry) error {
	_, err := conn(ctx, s.DB).Exec(ctx, `
		INSERT INTO ledger_entries(id, storefront_id, order_id, kind, amount, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.StorefrontID, e.OrderID, string(e.Kind), e.Amount, e.BalanceAfter, e.CreatedAt)
	if isUniqueViolation(err) {
		return ledger.ErrDuplicateEntry
	}
	return err
}

func (s *LedgerStore) ListEntries(ctx context.Context, storefrontID int64, limit int) ([]ledger.Entry, error) {
	rows, err := conn(ctx, s.DB).Query(ctx, `
		SELECT id::text, storefront_id, order_id, kind, amount, balance_after, created_at
		FROM ledger_entries WHERE storefront_id=$1
		ORDER BY created_at DESC LIMIT $2`, storefrontID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.Entry{}
	for rows.Next() {
		var (
			e    ledger.Entry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.StorefrontID, &e.OrderID, &kind, &e.Amount, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = ledger.Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/settlement"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"strings"
	"time"
)

// StorefrontStore implements orders.StorefrontStore, orders.Catalog and settlement.RateSource.
type StorefrontStore struct {
	DB *pgxpool.Pool
}

const storefrontColumns = `id, owner_id, name, delivery_fee, balance, platform_rate, updated_at`

func scanStorefront(row pgx.Row) (*orders.Storefront, error) {
	var sf orders.Storefront
	err := row.Scan(&sf.ID, &sf.OwnerID, &sf.Name, &sf.DeliveryFee, &sf.Balance, &sf.PlatformRate, &sf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sf, nil
}

func (s *StorefrontStore) Storefront(ctx context.Context, id int64) (*orders.Storefront, error) {
	return scanStorefront(conn(ctx, s.DB).QueryRow(ctx, `SELECT `+storefrontColumns+` FROM storefronts WHERE id=$1`, id))
}

func (s *StorefrontStore) StorefrontByOwner(ctx context.Context, ownerID int64) (*orders.Storefront, error) {
	return scanStorefront(conn(ctx, s.DB).QueryRow(ctx, `SELECT `+storefrontColumns+` FROM storefronts WHERE owner_id=$1`, ownerID))
}

func (s *StorefrontStore) PatchStorefront(ctx context.Context, id int64, p orders.StorefrontPatch) (*orders.Storefront, error) {
	var out *orders.Storefront
	err := (&TxManager{DB: s.DB}).RunInTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, s.DB)
		sf, err := scanStorefront(q.QueryRow(ctx, `SELECT `+storefrontColumns+` FROM storefronts WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		p.Apply(sf)
		sf.UpdatedAt = time.Now()
		_, err = q.Exec(ctx, `UPDATE storefronts SET platform_rate=$2, delivery_fee=$3, updated_at=$4 WHERE id=$1`,
			sf.ID, sf.PlatformRate, sf.DeliveryFee, sf.UpdatedAt)
		out = sf
		return err
	})
	return out, err
}

func (s *StorefrontStore) MenuItems(ctx context.Context, storefrontID int64, ids []int64) (map[int64]orders.MenuItem, error) {
	rows, err := conn(ctx, s.DB).Query(ctx, `
		SELECT id, storefront_id, name, image, price, available
		FROM menu_items WHERE storefront_id=$1 AND id = ANY($2)`, storefrontID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]orders.MenuItem, len(ids))
	for rows.Next() {
		var m orders.MenuItem
		if err := rows.Scan(&m.ID, &m.StorefrontID, &m.Name, &m.Image, &m.Price, &m.Available); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

// DefaultPlatformRate reports ok=false when the key is missing or not a number.
func (s *StorefrontStore) DefaultPlatformRate(ctx context.Context) (decimal.Decimal, bool, error) {
	var v string
	err := conn(ctx, s.DB).QueryRow(ctx, `SELECT value FROM system_config WHERE key=$1`,
		settlement.KeyDefaultPlatformRate).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, false, nil
	}
	return rate, true, nil
}

func (s *StorefrontStore) SetDefaultPlatformRate(ctx context.Context, rate decimal.Decimal) error {
	_, err := conn(ctx, s.DB).Exec(ctx, `
		INSERT INTO system_config(key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`,
		settlement.KeyDefaultPlatformRate, rate.String())
	return err
}

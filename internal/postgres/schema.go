package postgres

import (
	"context"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS storefronts (
	id            BIGSERIAL PRIMARY KEY,
	owner_id      BIGINT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	delivery_fee  NUMERIC(12,2) NOT NULL DEFAULT 0,
	balance       NUMERIC(14,2) NOT NULL DEFAULT 0,
	platform_rate NUMERIC(5,4),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS menu_items (
	id            BIGSERIAL PRIMARY KEY,
	storefront_id BIGINT NOT NULL REFERENCES storefronts(id),
	name          TEXT NOT NULL,
	image         TEXT NOT NULL DEFAULT '',
	price         NUMERIC(12,2) NOT NULL,
	available     BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS orders (
	id              BIGSERIAL PRIMARY KEY,
	order_no        TEXT NOT NULL UNIQUE,
	user_id         BIGINT NOT NULL,
	storefront_id   BIGINT NOT NULL REFERENCES storefronts(id),
	total_amount    NUMERIC(12,2) NOT NULL,
	delivery_fee    NUMERIC(12,2) NOT NULL,
	discount_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
	pay_amount      NUMERIC(12,2) NOT NULL,
	platform_rate   NUMERIC(5,4),
	platform_fee    NUMERIC(12,2),
	merchant_income NUMERIC(12,2),
	status          TEXT NOT NULL,
	address         TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	remark          TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	paid_at         TIMESTAMPTZ,
	delivery_time   TIMESTAMPTZ,
	completed_at    TIMESTAMPTZ,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_user_idx ON orders(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS orders_storefront_idx ON orders(storefront_id, status);

CREATE TABLE IF NOT EXISTS order_items (
	id           BIGSERIAL PRIMARY KEY,
	order_id     BIGINT NOT NULL REFERENCES orders(id),
	menu_item_id BIGINT NOT NULL,
	name         TEXT NOT NULL,
	image        TEXT NOT NULL DEFAULT '',
	price        NUMERIC(12,2) NOT NULL,
	quantity     INT NOT NULL CHECK (quantity > 0)
);
CREATE INDEX IF NOT EXISTS order_items_order_idx ON order_items(order_id);

CREATE TABLE IF NOT EXISTS system_config (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id            UUID PRIMARY KEY,
	storefront_id BIGINT NOT NULL REFERENCES storefronts(id),
	order_id      BIGINT,
	kind          TEXT NOT NULL,
	amount        NUMERIC(14,2) NOT NULL,
	balance_after NUMERIC(14,2) NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ledger_order_kind_uq ON ledger_entries(order_id, kind) WHERE order_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS ledger_storefront_idx ON ledger_entries(storefront_id, created_at DESC);

CREATE TABLE IF NOT EXISTS notifications (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT NOT NULL,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	type       TEXT NOT NULL,
	is_read    BOOLEAN NOT NULL DEFAULT FALSE,
	related_id BIGINT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications(user_id, created_at DESC);
`

// Migrate creates missing tables and indexes.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}

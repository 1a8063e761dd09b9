package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id           BIGSERIAL PRIMARY KEY,
	title        TEXT NOT NULL CHECK (title <> ''),
	description  TEXT NOT NULL CHECK (description <> ''),
	price        NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
	category     TEXT NOT NULL CHECK (category IN ('electronics', 'furniture', 'clothing', 'books', 'other')),
	location     TEXT NOT NULL DEFAULT '',
	image_url    TEXT NOT NULL DEFAULT '',
	phone_number TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS products_created_at_idx ON products (created_at DESC);
`

// Migrate creates the products table when it does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate products: %w", err)
	}
	return nil
}

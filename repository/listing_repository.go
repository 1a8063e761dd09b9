package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/chuka-black-market/marketplace/models"
)

var (
	// ErrNotFound is returned when no listing has the requested id.
	ErrNotFound = errors.New("listing not found")
	// ErrConstraint is returned when the database rejects a row, for
	// example a negative or oversized price or an unknown category.
	ErrConstraint = errors.New("listing violates a table constraint")
)

// Postgres SQLSTATE codes for integrity violations.
const (
	codeNumericOutOfRange = "22003"
	codeNotNullViolation  = "23502"
	codeCheckViolation    = "23514"
)

const listingColumns = `id, title, description, price, category, location, image_url, phone_number, created_at, updated_at`

type ListingRepository struct {
	DB *sqlx.DB
}

func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{DB: db}
}

// List returns every listing, newest first.
func (r *ListingRepository) List(ctx context.Context) ([]models.Listing, error) {
	var list []models.Listing
	err := r.DB.SelectContext(ctx, &list, `
		SELECT `+listingColumns+` FROM products
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("ListingRepository.List: %w", err)
	}
	return list, nil
}

func (r *ListingRepository) Get(ctx context.Context, id int64) (*models.Listing, error) {
	var l models.Listing
	err := r.DB.GetContext(ctx, &l, `SELECT `+listingColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ListingRepository.Get: %w", err)
	}
	return &l, nil
}

// Create inserts l and fills in the id, stored price and timestamps assigned
// by the database.
func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	err := r.DB.QueryRowxContext(ctx, `
		INSERT INTO products
			(title, description, price, category, location, image_url, phone_number)
		VALUES
			($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, price, created_at, updated_at
	`, l.Title, l.Description, l.Price, l.Category, l.Location, l.ImageURL, l.PhoneNumber).
		Scan(&l.ID, &l.Price, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ListingRepository.Create: %w", classify(err))
	}
	return nil
}

// Update replaces every mutable column of the row with id l.ID and refreshes
// updated_at. l.Price is replaced by the value as stored.
func (r *ListingRepository) Update(ctx context.Context, l *models.Listing) error {
	err := r.DB.QueryRowxContext(ctx, `
		UPDATE products SET
			title        = $1,
			description  = $2,
			price        = $3,
			category     = $4,
			location     = $5,
			image_url    = $6,
			phone_number = $7,
			updated_at   = now()
		WHERE id = $8
		RETURNING price, created_at, updated_at
	`, l.Title, l.Description, l.Price, l.Category, l.Location, l.ImageURL, l.PhoneNumber, l.ID).
		Scan(&l.Price, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("ListingRepository.Update: %w", classify(err))
	}
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ListingRepository.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ListingRepository.Delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ListingRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

// classify wraps integrity violations in ErrConstraint so callers can treat
// them as bad input rather than an outage.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeCheckViolation, codeNotNullViolation, codeNumericOutOfRange:
			return fmt.Errorf("%w: %s", ErrConstraint, pgErr.Message)
		}
	}
	return err
}

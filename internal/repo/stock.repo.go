package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// StockRepo owns the per-product and per-variant stock counters. Decrements
// are conditional single statements so a counter can never be observed
// negative; increments (restock on cancellation) are unconditional.
type StockRepo interface {
	DecrementProduct(ctx context.Context, tx *sql.Tx, productID uuid.UUID, qty int) (bool, error)
	DecrementVariant(ctx context.Context, tx *sql.Tx, variantID uuid.UUID, qty int) (bool, error)
	IncrementProduct(ctx context.Context, tx *sql.Tx, productID uuid.UUID, qty int) error
	IncrementVariant(ctx context.Context, tx *sql.Tx, variantID uuid.UUID, qty int) error
	ProductStock(ctx context.Context, productID uuid.UUID) (int, error)
	VariantStock(ctx context.Context, variantID uuid.UUID) (int, error)
}

type stockRepo struct {
	db *sql.DB
}

func NewStockRepo(db *sql.DB) StockRepo {
	return &stockRepo{db: db}
}

func (r *stockRepo) DecrementProduct(ctx context.Context, tx *sql.Tx, productID uuid.UUID, qty int) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $2, updated_at = $3 WHERE id = $1 AND stock >= $2",
		productID, qty, time.Now(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *stockRepo) DecrementVariant(ctx context.Context, tx *sql.Tx, variantID uuid.UUID, qty int) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE product_variants SET stock = stock - $2, updated_at = $3 WHERE id = $1 AND stock >= $2",
		variantID, qty, time.Now(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *stockRepo) IncrementProduct(ctx context.Context, tx *sql.Tx, productID uuid.UUID, qty int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock + $2, updated_at = $3 WHERE id = $1",
		productID, qty, time.Now(),
	)
	return err
}

func (r *stockRepo) IncrementVariant(ctx context.Context, tx *sql.Tx, variantID uuid.UUID, qty int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE product_variants SET stock = stock + $2, updated_at = $3 WHERE id = $1",
		variantID, qty, time.Now(),
	)
	return err
}

func (r *stockRepo) ProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var stock int
	err := r.db.QueryRowContext(ctx, "SELECT stock FROM products WHERE id = $1", productID).Scan(&stock)
	return stock, err
}

func (r *stockRepo) VariantStock(ctx context.Context, variantID uuid.UUID) (int, error) {
	var stock int
	err := r.db.QueryRowContext(ctx, "SELECT stock FROM product_variants WHERE id = $1", variantID).Scan(&stock)
	return stock, err
}

package repo

import (
	"context"
	"database/sql"
	"storefront/internal/domain"

	"github.com/google/uuid"
)

// CatalogRepo reads the authoritative product catalog. Catalog writes belong
// to the admin surface and never go through the order path.
type CatalogRepo interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindVariant(ctx context.Context, id uuid.UUID) (*domain.ProductVariant, error)
}

type catalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) CatalogRepo {
	return &catalogRepo{db: db}
}

func (r *catalogRepo) FindProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, status, price, weight, unit, supports_refill, stock, created_at, updated_at
		FROM products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Status, &p.Price, &p.Weight, &p.Unit, &p.SupportsRefill, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *catalogRepo) FindVariant(ctx context.Context, id uuid.UUID) (*domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := r.db.QueryRowContext(ctx, `
		SELECT id, product_id, name, price, is_active, stock, created_at, updated_at
		FROM product_variants WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.IsActive, &v.Stock, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

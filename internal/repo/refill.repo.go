package repo

import (
	"context"
	"database/sql"
	"storefront/internal/domain"
	"time"

	"github.com/google/uuid"
)

type RefillRepo interface {
	// Upsert creates the profile or, when one exists for the same
	// user/product/variant, reactivates it with the new quantity.
	Upsert(ctx context.Context, profile *domain.RefillProfile) (*domain.RefillProfile, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.RefillProfile, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.RefillProfile, error)
	SetQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	TouchLastOrdered(ctx context.Context, id uuid.UUID) error
}

type refillRepo struct {
	db *sql.DB
}

func NewRefillRepo(db *sql.DB) RefillRepo {
	return &refillRepo{db: db}
}

const refillColumns = "id, user_id, product_id, variant_id, quantity, is_active, last_ordered_at, created_at, updated_at"

func scanRefill(row interface{ Scan(...any) error }) (*domain.RefillProfile, error) {
	var p domain.RefillProfile
	err := row.Scan(&p.ID, &p.UserID, &p.ProductID, &p.VariantID, &p.Quantity, &p.IsActive, &p.LastOrderedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *refillRepo) Upsert(ctx context.Context, profile *domain.RefillProfile) (*domain.RefillProfile, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO refill_profiles (id, user_id, product_id, variant_id, quantity, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
		ON CONFLICT (user_id, product_id, COALESCE(variant_id, '00000000-0000-0000-0000-000000000000'::uuid)) DO UPDATE
		SET quantity = EXCLUDED.quantity, is_active = TRUE, updated_at = EXCLUDED.updated_at
		RETURNING `+refillColumns,
		profile.ID, profile.UserID, profile.ProductID, profile.VariantID, profile.Quantity, time.Now(),
	)
	return scanRefill(row)
}

func (r *refillRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.RefillProfile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+refillColumns+" FROM refill_profiles WHERE id = $1", id)
	p, err := scanRefill(row)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *refillRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.RefillProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+refillColumns+" FROM refill_profiles WHERE user_id = $1 AND is_active ORDER BY last_ordered_at DESC NULLS LAST",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.RefillProfile
	for rows.Next() {
		p, err := scanRefill(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func (r *refillRepo) SetQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refill_profiles SET quantity = $2, updated_at = $3 WHERE id = $1",
		id, quantity, time.Now(),
	)
	return err
}

func (r *refillRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refill_profiles SET is_active = FALSE, updated_at = $2 WHERE id = $1",
		id, time.Now(),
	)
	return err
}

func (r *refillRepo) TouchLastOrdered(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refill_profiles SET last_ordered_at = $2, updated_at = $2 WHERE id = $1",
		id, time.Now(),
	)
	return err
}

package repo

import (
	"context"
	"database/sql"
	"storefront/internal/domain"

	"github.com/google/uuid"
)

type RefundRepo interface {
	Create(ctx context.Context, tx *sql.Tx, refund *domain.Refund) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Refund, error)
	ListAll(ctx context.Context, limit int) ([]domain.Refund, error)
}

type refundRepo struct {
	db *sql.DB
}

func NewRefundRepo(db *sql.DB) RefundRepo {
	return &refundRepo{db: db}
}

const refundColumns = "id, order_id, amount, reason, requested_by, approved_by, status, completed_at, created_at"

func scanRefund(row interface{ Scan(...any) error }) (*domain.Refund, error) {
	var rf domain.Refund
	err := row.Scan(&rf.ID, &rf.OrderID, &rf.Amount, &rf.Reason, &rf.RequestedBy, &rf.ApprovedBy, &rf.Status, &rf.CompletedAt, &rf.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rf, nil
}

func (r *refundRepo) Create(ctx context.Context, tx *sql.Tx, refund *domain.Refund) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO refunds (id, order_id, amount, reason, requested_by, approved_by, status, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		refund.ID, refund.OrderID, refund.Amount, refund.Reason, refund.RequestedBy, refund.ApprovedBy,
		refund.Status, refund.CompletedAt, refund.CreatedAt,
	)
	return err
}

func (r *refundRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+refundColumns+" FROM refunds WHERE id = $1", id)
	rf, err := scanRefund(row)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return rf, nil
}

func (r *refundRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Refund, error) {
	return r.list(ctx, "SELECT "+refundColumns+" FROM refunds WHERE order_id = $1 ORDER BY created_at DESC", orderID)
}

func (r *refundRepo) ListAll(ctx context.Context, limit int) ([]domain.Refund, error) {
	return r.list(ctx, "SELECT "+refundColumns+" FROM refunds ORDER BY created_at DESC LIMIT $1", limit)
}

func (r *refundRepo) list(ctx context.Context, query string, args ...any) ([]domain.Refund, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refunds []domain.Refund
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, *rf)
	}
	return refunds, rows.Err()
}

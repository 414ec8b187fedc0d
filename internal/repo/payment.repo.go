package repo

import (
	"context"
	"database/sql"
	"storefront/internal/domain"
	"time"

	"github.com/google/uuid"
)

type PaymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.PaymentTransaction) error
	FindByIntentID(ctx context.Context, intentID string) (*domain.PaymentTransaction, error)
	FindSucceededByOrder(ctx context.Context, orderID uuid.UUID) (*domain.PaymentTransaction, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.PaymentTransaction, error)
	UpdateStatusByIntent(ctx context.Context, tx *sql.Tx, intentID string, status domain.PaymentTxnStatus, failureReason string) (bool, error)
	// FindStalePending returns PENDING transactions untouched for longer
	// than olderThan; the reconciliation worker settles them against the
	// provider's source of truth.
	FindStalePending(ctx context.Context, olderThan time.Duration) ([]domain.PaymentTransaction, error)
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

const paymentColumns = "id, order_id, provider, intent_id, amount, currency, status, failure_reason, created_at, updated_at"

func scanPayment(row interface{ Scan(...any) error }) (*domain.PaymentTransaction, error) {
	var p domain.PaymentTransaction
	err := row.Scan(&p.ID, &p.OrderID, &p.Provider, &p.IntentID, &p.Amount, &p.Currency, &p.Status, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) Create(ctx context.Context, tx *sql.Tx, p *domain.PaymentTransaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_transactions (id, order_id, provider, intent_id, amount, currency, status, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		p.ID, p.OrderID, p.Provider, p.IntentID, p.Amount, p.Currency, p.Status, p.FailureReason, p.CreatedAt,
	)
	return err
}

func (r *paymentRepo) FindByIntentID(ctx context.Context, intentID string) (*domain.PaymentTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payment_transactions WHERE intent_id = $1", intentID)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepo) FindSucceededByOrder(ctx context.Context, orderID uuid.UUID) (*domain.PaymentTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payment_transactions WHERE order_id = $1 AND status = 'SUCCEEDED' LIMIT 1", orderID)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.PaymentTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+paymentColumns+" FROM payment_transactions WHERE order_id = $1 ORDER BY created_at DESC", orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.PaymentTransaction
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r *paymentRepo) UpdateStatusByIntent(ctx context.Context, tx *sql.Tx, intentID string, status domain.PaymentTxnStatus, failureReason string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payment_transactions
		SET status = $2, failure_reason = $3, updated_at = $4
		WHERE intent_id = $1`,
		intentID, status, failureReason, time.Now(),
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

func (r *paymentRepo) FindStalePending(ctx context.Context, olderThan time.Duration) ([]domain.PaymentTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+paymentColumns+" FROM payment_transactions WHERE status = 'PENDING' AND updated_at < $1",
		time.Now().Add(-olderThan),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.PaymentTransaction
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

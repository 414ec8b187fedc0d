package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"storefront/internal/domain"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletRepo interface {
	// GetOrCreate returns the user's wallet, lazily creating a zero-balance
	// one if none exists.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// CreditUpsert atomically creates the wallet with balance=amount or adds
	// amount to the existing balance, returning the post-credit wallet.
	CreditUpsert(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error)
	// DebitIfSufficient subtracts amount only when balance >= amount, as a
	// single conditional UPDATE. ok is false when the wallet is missing or
	// the balance would go negative; no partial debit ever happens.
	DebitIfSufficient(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, bool, error)
	AppendTransaction(ctx context.Context, tx *sql.Tx, txn *domain.WalletTransaction) error
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.WalletTransaction, error)
}

type walletRepo struct {
	db *sql.DB
}

func NewWalletRepo(db *sql.DB) WalletRepo {
	return &walletRepo{db: db}
}

func (r *walletRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, balance, created_at, updated_at`,
		uuid.New(), userID, time.Now(),
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *walletRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1",
		userID,
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *walletRepo) CreditUpsert(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error) {
	var w domain.Wallet
	err := tx.QueryRowContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = wallets.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, balance, created_at, updated_at`,
		uuid.New(), userID, amount, time.Now(),
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *walletRepo) DebitIfSufficient(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, bool, error) {
	var w domain.Wallet
	err := tx.QueryRowContext(ctx, `
		UPDATE wallets
		SET balance = balance - $2, updated_at = $3
		WHERE user_id = $1 AND balance >= $2
		RETURNING id, user_id, balance, created_at, updated_at`,
		userID, amount, time.Now(),
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil // missing wallet or insufficient balance
	}
	if err != nil {
		return nil, false, err
	}
	return &w, true, nil
}

func (r *walletRepo) AppendTransaction(ctx context.Context, tx *sql.Tx, txn *domain.WalletTransaction) error {
	var metadata []byte
	if txn.Metadata != nil {
		b, err := json.Marshal(txn.Metadata)
		if err != nil {
			return err
		}
		metadata = b
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, type, source, amount, reference, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID, txn.WalletID, txn.Type, txn.Source, txn.Amount, txn.Reference, metadata, txn.CreatedAt,
	)
	return err
}

func (r *walletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.WalletTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, wallet_id, type, source, amount, reference, metadata, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		walletID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.WalletTransaction
	for rows.Next() {
		var txn domain.WalletTransaction
		var metadata []byte
		if err := rows.Scan(&txn.ID, &txn.WalletID, &txn.Type, &txn.Source, &txn.Amount, &txn.Reference, &metadata, &txn.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &txn.Metadata); err != nil {
				return nil, err
			}
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

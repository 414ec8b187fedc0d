package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/repo"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultHistoryLimit = 50

// WalletOperation is the result of a successful credit or debit.
type WalletOperation struct {
	WalletID      uuid.UUID
	TransactionID uuid.UUID
	NewBalance    decimal.Decimal
}

// WalletService is the only writer of wallet balances. Every balance change
// appends a ledger row in the same transaction, so at any point in time
// balance == sum(credits) - sum(debits).
type WalletService interface {
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, source domain.WalletTxnSource, reference string, metadata map[string]any) (*WalletOperation, error)
	// CreditInTx runs the credit inside a caller-owned transaction so a
	// larger unit (a refund) can make it atomic with its own writes.
	CreditInTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal, source domain.WalletTxnSource, reference string, metadata map[string]any) (*WalletOperation, error)
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, source domain.WalletTxnSource, reference string, metadata map[string]any) (*WalletOperation, error)
	DebitInTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal, source domain.WalletTxnSource, reference string, metadata map[string]any) (*WalletOperation, error)
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.WalletTransaction, error)
}

type walletService struct {
	db      *sql.DB
	wallets repo.WalletRepo
}

func NewWalletService(db *sql.DB, wallets repo.WalletRepo) WalletService {
	return &walletService{db: db, wallets: wallets}
}

func (s *walletService) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, source domain.WalletTxnSource, reference string, metadata map[string]any) (*WalletOperation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	op, err := s.CreditInTx(ctx, tx, userID, amount, source, reference, metadata)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return op, nil
}

func (s *walletService) CreditInTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal, source domain.WalletTxnSource, reference string, metadata map[string]any) (*WalletOperation, error) {
	if !amount.IsPositive() {
		metrics.RecordWalletOperation("credit", false)
		return nil, fmt.Errorf("credit amount must be positive, got %s: %w", amount, domain.ErrInvalidAmount)
	}

	wallet, err := s.wallets.CreditUpsert(ctx, tx, userID, amount)
	if err != nil {
		metrics.RecordWalletOperation("credit", false)
		return nil, err
	}

	txn := &domain.WalletTransaction{
		ID:        uuid.New(),
		WalletID:  wallet.ID,
		Type:      domain.WalletCredit,
		Source:    source,
		Amount:    amount,
		Reference: reference,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := s.wallets.AppendTransaction(ctx, tx, txn); err != nil {
		metrics.RecordWalletOperation("credit", false)
		return nil, err
	}

	slog.Info("wallet_credited",
		slog.String("user_id", userID.String()),
		slog.String("wallet_id", wallet.ID.String()),
		slog.String("amount", amount.String()),
		slog.String("source", string(source)),
		slog.String("reference", reference),
		slog.String("new_balance", wallet.Balance.String()),
		slog.String("transaction_id", txn.ID.String()),
	)
	metrics.RecordWalletOperation("credit", true)

	return &WalletOperation{
		WalletID:      wallet.ID,
		TransactionID: txn.ID,
		NewBalance:    wallet.Balance,
	}, nil
}

func (s *walletService) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, source domain.WalletTxnSource, reference string, metadata map[string]any) (*WalletOperation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	op, err := s.DebitInTx(ctx, tx, userID, amount, source, reference, metadata)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return op, nil
}

func (s *walletService) DebitInTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal, source domain.WalletTxnSource, reference string, metadata map[string]any) (*WalletOperation, error) {
	if !amount.IsPositive() {
		metrics.RecordWalletOperation("debit", false)
		return nil, fmt.Errorf("debit amount must be positive, got %s: %w", amount, domain.ErrInvalidAmount)
	}

	// The sufficiency check and the subtraction are one conditional UPDATE,
	// so two racing debits can never both pass against a stale balance.
	wallet, ok, err := s.wallets.DebitIfSufficient(ctx, tx, userID, amount)
	if err != nil {
		metrics.RecordWalletOperation("debit", false)
		return nil, err
	}
	if !ok {
		// Debit never auto-creates: a missing wallet is a zero balance.
		available := decimal.Zero
		if existing, err := s.wallets.FindByUserID(ctx, userID); err == nil && existing != nil {
			available = existing.Balance
		}
		metrics.RecordWalletOperation("debit", false)
		return nil, fmt.Errorf("available: $%s, required: $%s: %w",
			available.StringFixed(2), amount.StringFixed(2), domain.ErrInsufficientFunds)
	}

	txn := &domain.WalletTransaction{
		ID:        uuid.New(),
		WalletID:  wallet.ID,
		Type:      domain.WalletDebit,
		Source:    source,
		Amount:    amount,
		Reference: reference,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := s.wallets.AppendTransaction(ctx, tx, txn); err != nil {
		metrics.RecordWalletOperation("debit", false)
		return nil, err
	}

	slog.Info("wallet_debited",
		slog.String("user_id", userID.String()),
		slog.String("wallet_id", wallet.ID.String()),
		slog.String("amount", amount.String()),
		slog.String("source", string(source)),
		slog.String("reference", reference),
		slog.String("new_balance", wallet.Balance.String()),
		slog.String("transaction_id", txn.ID.String()),
	)
	metrics.RecordWalletOperation("debit", true)

	return &WalletOperation{
		WalletID:      wallet.ID,
		TransactionID: txn.ID,
		NewBalance:    wallet.Balance,
	}, nil
}

func (s *walletService) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	wallet, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

func (s *walletService) History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.WalletTransaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	wallet, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.wallets.ListTransactions(ctx, wallet.ID, limit)
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/metrics"
	"storefront/internal/repo"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultRefundListLimit = 100

// RefundResult reports a completed refund back to the admin caller.
type RefundResult struct {
	RefundID         uuid.UUID
	OrderID          uuid.UUID
	OrderNumber      string
	Amount           decimal.Decimal
	NewWalletBalance decimal.Decimal
	TransactionID    uuid.UUID
}

// RefundService issues wallet refunds against orders. A refund credits the
// buyer's wallet and cancels the order; stock restoration is the order
// cancellation path's concern, never the refund's.
type RefundService interface {
	Process(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, reason string, approvedBy uuid.UUID) (*RefundResult, error)
	Get(ctx context.Context, refundID uuid.UUID) (*domain.Refund, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Refund, error)
	ListAll(ctx context.Context, limit int) ([]domain.Refund, error)
}

type refundService struct {
	db       *sql.DB
	refunds  repo.RefundRepo
	orders   repo.OrderRepo
	wallet   WalletService
	notifier *notify.Notifier
}

func NewRefundService(db *sql.DB, refunds repo.RefundRepo, orders repo.OrderRepo, wallet WalletService, notifier *notify.Notifier) RefundService {
	return &refundService{
		db:       db,
		refunds:  refunds,
		orders:   orders,
		wallet:   wallet,
		notifier: notifier,
	}
}

func (s *refundService) Process(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, reason string, approvedBy uuid.UUID) (*RefundResult, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("refund amount must not be negative, got %s: %w", amount, domain.ErrInvalidAmount)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if order.Status == domain.OrderCancelled {
		return nil, fmt.Errorf("order %s is already cancelled: %w", order.OrderNumber, domain.ErrInvalidState)
	}
	if err := domain.ValidateTransition(order.Status, domain.OrderCancelled); err != nil {
		return nil, err
	}

	// The buyer paid totalCost through the provider (or will on delivery)
	// plus whatever the wallet covered at checkout. An omitted amount
	// refunds the whole of it.
	maxRefundable := order.TotalCost.Add(order.WalletUsed)
	if amount.IsZero() {
		amount = maxRefundable
	}
	if amount.GreaterThan(maxRefundable) {
		return nil, fmt.Errorf("refund of %s exceeds refundable total %s for order %s: %w",
			amount, maxRefundable, order.OrderNumber, domain.ErrInvalidAmount)
	}

	now := time.Now()
	refund := &domain.Refund{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Amount:      amount,
		Reason:      reason,
		RequestedBy: order.BuyerID,
		ApprovedBy:  approvedBy,
		Status:      domain.RefundCompleted,
		CompletedAt: now,
		CreatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.refunds.Create(ctx, tx, refund); err != nil {
		return nil, err
	}

	op, err := s.wallet.CreditInTx(ctx, tx, order.BuyerID, amount, domain.SourceRefund, order.OrderNumber, map[string]any{
		"refund_id": refund.ID.String(),
		"order_id":  order.ID.String(),
		"reason":    reason,
	})
	if err != nil {
		return nil, err
	}

	prev := order.Status
	order.Status = domain.OrderCancelled
	order.CancellationReason = reason
	order.CancelledAt = &now
	if order.PaymentStatus == domain.PaymentPaid {
		order.PaymentStatus = domain.PaymentRefunded
	}

	ok, err := s.orders.UpdateStatus(ctx, tx, order, prev)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %s changed while refunding: %w", order.OrderNumber, domain.ErrTransactionConflict)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("refund_processed",
		slog.String("refund_id", refund.ID.String()),
		slog.String("order_id", order.ID.String()),
		slog.String("amount", amount.String()),
		slog.String("new_balance", op.NewBalance.String()),
	)
	metrics.RecordRefund()
	s.notifier.RefundProcessed(ctx, order, refund.ID, amount)

	return &RefundResult{
		RefundID:         refund.ID,
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		Amount:           amount,
		NewWalletBalance: op.NewBalance,
		TransactionID:    op.TransactionID,
	}, nil
}

func (s *refundService) Get(ctx context.Context, refundID uuid.UUID) (*domain.Refund, error) {
	refund, err := s.refunds.FindByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, fmt.Errorf("refund %s: %w", refundID, domain.ErrNotFound)
	}
	return refund, nil
}

func (s *refundService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Refund, error) {
	return s.refunds.ListByOrder(ctx, orderID)
}

func (s *refundService) ListAll(ctx context.Context, limit int) ([]domain.Refund, error) {
	if limit <= 0 {
		limit = defaultRefundListLimit
	}
	return s.refunds.ListAll(ctx, limit)
}

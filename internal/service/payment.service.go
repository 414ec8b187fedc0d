package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/metrics"
	"storefront/internal/repo"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentIntentResult is what the storefront hands to the client to finish
// payment. It never carries secret keys.
type PaymentIntentResult struct {
	IntentID     string
	ClientSecret string
	Amount       decimal.Decimal
	Currency     string
}

// PaymentService adapts external payment-processor events into order-state
// transitions. It never touches wallets or stock.
type PaymentService interface {
	CreateIntent(ctx context.Context, orderID, userID uuid.UUID) (*PaymentIntentResult, error)
	HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error
	// SettleIntent applies a provider-side outcome to the local records;
	// shared by the webhook path and the reconciliation worker.
	SettleIntent(ctx context.Context, intentID string, state payment.IntentState, failureReason string) error
	ConfirmCOD(ctx context.Context, orderID, userID uuid.UUID) error
	ListOrderPayments(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) ([]domain.PaymentTransaction, error)
}

type paymentService struct {
	db        *sql.DB
	provider  payment.Provider
	payments  repo.PaymentRepo
	orderRepo repo.OrderRepo
	orders    OrderService
	notifier  *notify.Notifier
	currency  string
}

func NewPaymentService(
	db *sql.DB,
	provider payment.Provider,
	payments repo.PaymentRepo,
	orderRepo repo.OrderRepo,
	orders OrderService,
	notifier *notify.Notifier,
	currency string,
) PaymentService {
	return &paymentService{
		db:        db,
		provider:  provider,
		payments:  payments,
		orderRepo: orderRepo,
		orders:    orders,
		notifier:  notifier,
		currency:  currency,
	}
}

func (s *paymentService) CreateIntent(ctx context.Context, orderID, userID uuid.UUID) (*PaymentIntentResult, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if order.BuyerID != userID {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrUnauthorized)
	}
	if order.Status != domain.OrderPending && order.Status != domain.OrderConfirmed {
		return nil, fmt.Errorf("order is %s, payment allowed only for PENDING or CONFIRMED orders: %w",
			order.Status, domain.ErrInvalidState)
	}
	if order.PaymentStatus == domain.PaymentPaid {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrAlreadyPaid)
	}

	succeeded, err := s.payments.FindSucceededByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if succeeded != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrDuplicatePayment)
	}

	amountCents := order.TotalCost.Shift(2).Round(0).IntPart()
	intent, err := s.provider.CreateIntent(ctx, amountCents, s.currency, map[string]string{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"user_id":      order.BuyerID.String(),
	})
	if err != nil {
		return nil, err
	}

	txn := &domain.PaymentTransaction{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Provider:  s.provider.Name(),
		IntentID:  intent.ID,
		Amount:    order.TotalCost,
		Currency:  s.currency,
		Status:    domain.PaymentTxnPending,
		CreatedAt: time.Now(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := s.payments.Create(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("payment_intent_created",
		slog.String("order_id", order.ID.String()),
		slog.String("intent_id", intent.ID),
		slog.String("amount", order.TotalCost.String()),
	)

	return &PaymentIntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       order.TotalCost,
		Currency:     s.currency,
	}, nil
}

func (s *paymentService) HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.VerifyEvent(payload, signature)
	if err != nil {
		metrics.RecordPaymentEvent("verify", false)
		return err
	}

	slog.Info("webhook_event_received",
		slog.String("type", string(event.Type)),
		slog.String("intent_id", event.IntentID),
	)

	switch event.Type {
	case payment.EventPaymentSucceeded:
		return s.SettleIntent(ctx, event.IntentID, payment.IntentSucceeded, "")
	case payment.EventPaymentFailed:
		reason := event.FailureReason
		if reason == "" {
			reason = "unknown error"
		}
		return s.SettleIntent(ctx, event.IntentID, payment.IntentFailed, reason)
	case payment.EventPaymentCanceled:
		return s.SettleIntent(ctx, event.IntentID, payment.IntentCancelled, "")
	default:
		slog.Info("unhandled_webhook_event", slog.String("type", string(event.Type)))
		return nil
	}
}

func (s *paymentService) SettleIntent(ctx context.Context, intentID string, state payment.IntentState, failureReason string) error {
	switch state {
	case payment.IntentSucceeded:
		return s.settleSucceeded(ctx, intentID)
	case payment.IntentFailed:
		return s.settleFailed(ctx, intentID, failureReason)
	case payment.IntentCancelled:
		return s.settleCancelled(ctx, intentID)
	default:
		return nil
	}
}

func (s *paymentService) settleSucceeded(ctx context.Context, intentID string) error {
	txn, err := s.payments.FindByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	if txn == nil {
		// Nothing local correlates with this intent; acknowledge so the
		// provider stops retrying.
		slog.Warn("webhook_for_unknown_intent", slog.String("intent_id", intentID))
		return nil
	}
	if txn.Status == domain.PaymentTxnSucceeded {
		return nil // duplicate delivery
	}

	order, err := s.orderRepo.FindByID(ctx, txn.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("order %s for intent %s: %w", txn.OrderID, intentID, domain.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.payments.UpdateStatusByIntent(ctx, tx, intentID, domain.PaymentTxnSucceeded, ""); err != nil {
		metrics.RecordPaymentEvent("succeeded", false)
		return err
	}

	if order.PaymentStatus != domain.PaymentPaid {
		order, err = s.orders.MarkPaid(ctx, tx, order.ID)
		if err != nil {
			metrics.RecordPaymentEvent("succeeded", false)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordPaymentEvent("succeeded", false)
		return err
	}

	slog.Info("payment_succeeded",
		slog.String("intent_id", intentID),
		slog.String("order_id", order.ID.String()),
	)
	metrics.RecordPaymentEvent("succeeded", true)
	s.notifier.OrderPaid(ctx, order)
	return nil
}

func (s *paymentService) settleFailed(ctx context.Context, intentID, reason string) error {
	txn, err := s.payments.FindByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	if txn == nil {
		slog.Warn("webhook_for_unknown_intent", slog.String("intent_id", intentID))
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := s.payments.UpdateStatusByIntent(ctx, tx, intentID, domain.PaymentTxnFailed, reason); err != nil {
		metrics.RecordPaymentEvent("failed", false)
		return err
	}
	if err := tx.Commit(); err != nil {
		metrics.RecordPaymentEvent("failed", false)
		return err
	}

	slog.Warn("payment_failed",
		slog.String("intent_id", intentID),
		slog.String("order_id", txn.OrderID.String()),
		slog.String("reason", reason),
	)
	metrics.RecordPaymentEvent("failed", true)
	// The order stays in its pre-payment state so the buyer can retry.
	s.notifier.AlertPaymentFailed(ctx, txn.OrderID, reason)
	return nil
}

func (s *paymentService) settleCancelled(ctx context.Context, intentID string) error {
	txn, err := s.payments.FindByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	if txn == nil {
		slog.Warn("webhook_for_unknown_intent", slog.String("intent_id", intentID))
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := s.payments.UpdateStatusByIntent(ctx, tx, intentID, domain.PaymentTxnCancelled, ""); err != nil {
		metrics.RecordPaymentEvent("canceled", false)
		return err
	}
	if err := tx.Commit(); err != nil {
		metrics.RecordPaymentEvent("canceled", false)
		return err
	}

	metrics.RecordPaymentEvent("canceled", true)
	return nil
}

func (s *paymentService) ConfirmCOD(ctx context.Context, orderID, userID uuid.UUID) error {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if order.BuyerID != userID {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrUnauthorized)
	}
	if order.PaymentMethod != domain.PaymentMethodCOD {
		return fmt.Errorf("only COD orders can be confirmed without payment: %w", domain.ErrInvalidState)
	}

	confirmed, err := s.orders.UpdateStatus(ctx, orderID, domain.OrderConfirmed, userID, "")
	if err != nil {
		return err
	}

	s.notifier.CODConfirmed(ctx, confirmed)
	return nil
}

func (s *paymentService) ListOrderPayments(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) ([]domain.PaymentTransaction, error) {
	if userID != nil {
		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		// A non-owner learns nothing, not even that the order exists.
		if order == nil || order.BuyerID != *userID {
			return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
		}
	}
	return s.payments.ListByOrder(ctx, orderID)
}

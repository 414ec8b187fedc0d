package worker

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/service"
)

type stubPaymentRepo struct {
	stale []domain.PaymentTransaction
}

func (s *stubPaymentRepo) Create(ctx context.Context, tx *sql.Tx, p *domain.PaymentTransaction) error {
	return nil
}
func (s *stubPaymentRepo) FindByIntentID(ctx context.Context, intentID string) (*domain.PaymentTransaction, error) {
	return nil, nil
}
func (s *stubPaymentRepo) FindSucceededByOrder(ctx context.Context, orderID uuid.UUID) (*domain.PaymentTransaction, error) {
	return nil, nil
}
func (s *stubPaymentRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.PaymentTransaction, error) {
	return nil, nil
}
func (s *stubPaymentRepo) UpdateStatusByIntent(ctx context.Context, tx *sql.Tx, intentID string, status domain.PaymentTxnStatus, failureReason string) (bool, error) {
	return true, nil
}
func (s *stubPaymentRepo) FindStalePending(ctx context.Context, olderThan time.Duration) ([]domain.PaymentTransaction, error) {
	return s.stale, nil
}

type settleCall struct {
	intentID string
	state    payment.IntentState
}

type stubSettler struct {
	service.PaymentService

	mu    sync.Mutex
	calls []settleCall
}

func (s *stubSettler) SettleIntent(ctx context.Context, intentID string, state payment.IntentState, failureReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, settleCall{intentID: intentID, state: state})
	return nil
}

func (s *stubSettler) snapshot() []settleCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]settleCall(nil), s.calls...)
}

func TestWorkerSettlesDecidedIntentsAndSkipsPending(t *testing.T) {
	provider := payment.NewMockProvider("whsec_test")

	ctx := context.Background()
	paid, _ := provider.CreateIntent(ctx, 1000, "usd", nil)
	failed, _ := provider.CreateIntent(ctx, 2000, "usd", nil)
	undecided, _ := provider.CreateIntent(ctx, 3000, "usd", nil)
	provider.Settle(paid.ID, payment.IntentSucceeded)
	provider.Settle(failed.ID, payment.IntentFailed)

	repo := &stubPaymentRepo{stale: []domain.PaymentTransaction{
		{IntentID: paid.ID, Status: domain.PaymentTxnPending},
		{IntentID: failed.ID, Status: domain.PaymentTxnPending},
		{IntentID: undecided.ID, Status: domain.PaymentTxnPending},
	}}
	settler := &stubSettler{}

	w := NewReconciliationWorker(repo, provider, settler, 10*time.Millisecond, time.Minute)
	runCtx, cancel := context.WithCancel(ctx)
	go w.Run(runCtx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(settler.snapshot()) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	calls := settler.snapshot()
	if len(calls) < 2 {
		t.Fatalf("settler called %d times, want at least 2", len(calls))
	}

	byIntent := make(map[string]payment.IntentState)
	for _, c := range calls {
		byIntent[c.intentID] = c.state
	}
	if byIntent[paid.ID] != payment.IntentSucceeded {
		t.Errorf("paid intent settled as %s, want succeeded", byIntent[paid.ID])
	}
	if byIntent[failed.ID] != payment.IntentFailed {
		t.Errorf("failed intent settled as %s, want failed", byIntent[failed.ID])
	}
	if _, ok := byIntent[undecided.ID]; ok {
		t.Error("pending intent must not be settled")
	}
}

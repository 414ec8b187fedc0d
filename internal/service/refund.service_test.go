package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repo"
)

func newTestRefundService(wallet WalletService) RefundService {
	return NewRefundService(testDB, repo.NewRefundRepo(testDB), repo.NewOrderRepo(testDB), wallet, newTestNotifier())
}

func TestRefundRoundTrip(t *testing.T) {
	ctx := context.Background()
	wallet := newTestWalletService()
	orders := newTestOrderService(wallet)
	refunds := newTestRefundService(wallet)
	buyer := uuid.New()

	if _, err := wallet.Credit(ctx, buyer, decimal.NewFromInt(10), domain.SourceAdmin, "seed", nil); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	productID := seedProduct(t, uniqueName("refundable"), decimal.NewFromInt(35), 5)

	// $35 + $5 shipping - $10 wallet = $30 due on delivery; refundable $40.
	order, err := orders.Create(ctx, CreateOrderInput{
		BuyerID:       buyer,
		Items:         []OrderItemInput{{ProductID: productID, Quantity: 1}},
		PaymentMethod: domain.PaymentMethodCOD,
		WalletAmount:  decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	result, err := refunds.Process(ctx, order.ID, decimal.NewFromInt(40), "damaged in transit", uuid.New())
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !result.Amount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("refund amount = %s, want 40", result.Amount)
	}
	if !result.NewWalletBalance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("wallet balance = %s, want 40", result.NewWalletBalance)
	}

	fresh, err := orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if fresh.Status != domain.OrderCancelled {
		t.Errorf("order status = %s, want CANCELLED", fresh.Status)
	}

	// The refund path never restocks; only explicit cancellation does.
	if got := productStock(t, productID); got != 4 {
		t.Errorf("stock = %d after refund, want 4", got)
	}

	// Ledger still reconciles: 10 - 10 + 40.
	if sum := ledgerSum(t, buyer); !sum.Equal(decimal.NewFromInt(40)) {
		t.Errorf("ledger sum = %s, want 40", sum)
	}
}

func TestRefundDefaultsToMaxRefundable(t *testing.T) {
	ctx := context.Background()
	wallet := newTestWalletService()
	orders := newTestOrderService(wallet)
	refunds := newTestRefundService(wallet)
	buyer := uuid.New()

	// $35 + $5 shipping; no amount given refunds the whole $40.
	productID := seedProduct(t, uniqueName("fullback"), decimal.NewFromInt(35), 2)
	order, err := orders.Create(ctx, CreateOrderInput{
		BuyerID:       buyer,
		Items:         []OrderItemInput{{ProductID: productID, Quantity: 1}},
		PaymentMethod: domain.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	result, err := refunds.Process(ctx, order.ID, decimal.Zero, "order lost", uuid.New())
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !result.Amount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("refund amount = %s, want 40", result.Amount)
	}
	balance, err := wallet.Balance(ctx, buyer)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("wallet balance = %s, want 40", balance)
	}
}

func TestRefundRejectsNegativeAmount(t *testing.T) {
	ctx := context.Background()
	wallet := newTestWalletService()
	refunds := newTestRefundService(wallet)

	_, err := refunds.Process(ctx, uuid.New(), decimal.NewFromInt(-5), "bad", uuid.New())
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRefundRejectsExceedingRefundable(t *testing.T) {
	ctx := context.Background()
	wallet := newTestWalletService()
	orders := newTestOrderService(wallet)
	refunds := newTestRefundService(wallet)
	buyer := uuid.New()

	productID := seedProduct(t, uniqueName("capped"), decimal.NewFromInt(10), 3)
	order, err := orders.Create(ctx, CreateOrderInput{
		BuyerID:       buyer,
		Items:         []OrderItemInput{{ProductID: productID, Quantity: 1}},
		PaymentMethod: domain.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// Total is 15; anything above must be rejected with no side effects.
	_, err = refunds.Process(ctx, order.ID, decimal.NewFromInt(16), "too much", uuid.New())
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	fresh, _ := orders.Get(ctx, order.ID)
	if fresh.Status != domain.OrderPending {
		t.Errorf("order status = %s after rejected refund, want PENDING", fresh.Status)
	}
	balance, _ := wallet.Balance(ctx, buyer)
	if !balance.IsZero() {
		t.Errorf("wallet balance = %s after rejected refund, want 0", balance)
	}
}

func TestRefundRejectsCancelledOrder(t *testing.T) {
	ctx := context.Background()
	wallet := newTestWalletService()
	orders := newTestOrderService(wallet)
	refunds := newTestRefundService(wallet)
	buyer := uuid.New()

	productID := seedProduct(t, uniqueName("dead"), decimal.NewFromInt(10), 3)
	order, err := orders.Create(ctx, CreateOrderInput{
		BuyerID:       buyer,
		Items:         []OrderItemInput{{ProductID: productID, Quantity: 1}},
		PaymentMethod: domain.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := orders.Cancel(ctx, order.ID, buyer, "changed my mind"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := refunds.Process(ctx, order.ID, decimal.NewFromInt(5), "late refund", uuid.New()); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestRefundPaidOrderFlipsPaymentStatus(t *testing.T) {
	ctx := context.Background()
	wallet := newTestWalletService()
	orders := newTestOrderService(wallet)
	refunds := newTestRefundService(wallet)
	admin := uuid.New()
	buyer := uuid.New()

	productID := seedProduct(t, uniqueName("paidref"), decimal.NewFromInt(25), 3)
	order, err := orders.Create(ctx, CreateOrderInput{
		BuyerID:       buyer,
		Items:         []OrderItemInput{{ProductID: productID, Quantity: 1}},
		PaymentMethod: domain.PaymentMethodPrepaid,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := orders.UpdateStatus(ctx, order.ID, domain.OrderPaid, admin, ""); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if _, err := refunds.Process(ctx, order.ID, decimal.NewFromInt(30), "full refund", admin); err != nil {
		t.Fatalf("refund: %v", err)
	}

	fresh, _ := orders.Get(ctx, order.ID)
	if fresh.PaymentStatus != domain.PaymentRefunded {
		t.Errorf("payment status = %s, want REFUNDED", fresh.PaymentStatus)
	}
}

func TestRefundQueries(t *testing.T) {
	ctx := context.Background()
	wallet := newTestWalletService()
	orders := newTestOrderService(wallet)
	refunds := newTestRefundService(wallet)
	buyer := uuid.New()

	productID := seedProduct(t, uniqueName("queries"), decimal.NewFromInt(10), 3)
	order, err := orders.Create(ctx, CreateOrderInput{
		BuyerID:       buyer,
		Items:         []OrderItemInput{{ProductID: productID, Quantity: 1}},
		PaymentMethod: domain.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	result, err := refunds.Process(ctx, order.ID, decimal.NewFromInt(15), "test", uuid.New())
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	got, err := refunds.Get(ctx, result.RefundID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.RefundCompleted || !got.Amount.Equal(decimal.NewFromInt(15)) {
		t.Errorf("refund = %s/%s, want COMPLETED/15", got.Status, got.Amount)
	}

	byOrder, err := refunds.ListByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("list by order: %v", err)
	}
	if len(byOrder) != 1 {
		t.Errorf("refunds for order = %d, want 1", len(byOrder))
	}

	if _, err := refunds.Get(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

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

func newTestRefillService(orders OrderService) RefillService {
	return NewRefillService(repo.NewRefillRepo(testDB), repo.NewCatalogRepo(testDB), orders)
}

func TestRefillProfileUpsertReactivates(t *testing.T) {
	ctx := context.Background()
	svc := newTestRefillService(newTestOrderService(newTestWalletService()))
	user := uuid.New()

	productID := seedProduct(t, uniqueName("refill"), decimal.NewFromInt(12), 20)

	first, err := svc.UpsertProfile(ctx, RefillProfileInput{UserID: user, ProductID: productID, Quantity: 2})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := svc.Deactivate(ctx, first.ID, user); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	profiles, _ := svc.ListProfiles(ctx, user)
	if len(profiles) != 0 {
		t.Fatalf("active profiles = %d after deactivate, want 0", len(profiles))
	}

	// Upserting the same product revives the row instead of duplicating it.
	second, err := svc.UpsertProfile(ctx, RefillProfileInput{UserID: user, ProductID: productID, Quantity: 5})
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert created a duplicate profile")
	}
	if second.Quantity != 5 || !second.IsActive {
		t.Errorf("profile = qty %d active %v, want qty 5 active", second.Quantity, second.IsActive)
	}
}

func TestRefillProfileValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestRefillService(newTestOrderService(newTestWalletService()))
	user := uuid.New()

	if _, err := svc.UpsertProfile(ctx, RefillProfileInput{UserID: user, ProductID: uuid.New(), Quantity: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown product: expected ErrNotFound, got %v", err)
	}

	productID := seedProduct(t, uniqueName("norefill"), decimal.NewFromInt(8), 5)
	if _, err := testDB.Exec("UPDATE products SET supports_refill = FALSE WHERE id = $1", productID); err != nil {
		t.Fatalf("flip supports_refill: %v", err)
	}
	if _, err := svc.UpsertProfile(ctx, RefillProfileInput{UserID: user, ProductID: productID, Quantity: 1}); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("non-refillable product: expected ErrInvalidState, got %v", err)
	}
}

func TestRefillProfileOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newTestRefillService(newTestOrderService(newTestWalletService()))
	owner := uuid.New()

	productID := seedProduct(t, uniqueName("owned"), decimal.NewFromInt(9), 10)
	profile, err := svc.UpsertProfile(ctx, RefillProfileInput{UserID: owner, ProductID: productID, Quantity: 1})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	stranger := uuid.New()
	if err := svc.UpdateQuantity(ctx, profile.ID, stranger, 3); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.Deactivate(ctx, profile.ID, stranger); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRefillCreateOrder(t *testing.T) {
	ctx := context.Background()
	orders := newTestOrderService(newTestWalletService())
	svc := newTestRefillService(orders)
	user := uuid.New()

	productID := seedProduct(t, uniqueName("reorder"), decimal.NewFromInt(6), 30)
	profile, err := svc.UpsertProfile(ctx, RefillProfileInput{UserID: user, ProductID: productID, Quantity: 3})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	order, err := svc.CreateOrder(ctx, profile.ID, user, domain.DeliveryInfo{Address: "12 Elm St"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.PaymentMethod != domain.PaymentMethodCOD {
		t.Errorf("payment method = %s, want COD", order.PaymentMethod)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 3 {
		t.Errorf("order items = %+v, want one line of 3", order.Items)
	}
	// 18 + 5 shipping at current catalog price.
	if !order.TotalCost.Equal(decimal.NewFromInt(23)) {
		t.Errorf("total = %s, want 23", order.TotalCost)
	}
	if got := productStock(t, productID); got != 27 {
		t.Errorf("stock = %d, want 27", got)
	}

	profiles, _ := svc.ListProfiles(ctx, user)
	if len(profiles) != 1 || profiles[0].LastOrderedAt == nil {
		t.Errorf("last_ordered_at not stamped: %+v", profiles)
	}

	// Deactivated profiles cannot order.
	if err := svc.Deactivate(ctx, profile.ID, user); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.CreateOrder(ctx, profile.ID, user, domain.DeliveryInfo{}); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for inactive profile, got %v", err)
	}
}

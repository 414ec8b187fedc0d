package service

import (
	"context"
	"fmt"
	"log/slog"
	"storefront/internal/domain"
	"storefront/internal/repo"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RefillProfileInput struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// RefillService manages standing reorders. Orders placed from a profile go
// through the regular order pipeline at the current catalog price.
type RefillService interface {
	UpsertProfile(ctx context.Context, input RefillProfileInput) (*domain.RefillProfile, error)
	ListProfiles(ctx context.Context, userID uuid.UUID) ([]domain.RefillProfile, error)
	UpdateQuantity(ctx context.Context, profileID, userID uuid.UUID, quantity int) error
	Deactivate(ctx context.Context, profileID, userID uuid.UUID) error
	// CreateOrder places a COD order for the profile's product and stamps
	// the profile's last-ordered time.
	CreateOrder(ctx context.Context, profileID, userID uuid.UUID, delivery domain.DeliveryInfo) (*domain.Order, error)
}

type refillService struct {
	refills repo.RefillRepo
	catalog repo.CatalogRepo
	orders  OrderService
}

func NewRefillService(refills repo.RefillRepo, catalog repo.CatalogRepo, orders OrderService) RefillService {
	return &refillService{refills: refills, catalog: catalog, orders: orders}
}

func (s *refillService) UpsertProfile(ctx context.Context, input RefillProfileInput) (*domain.RefillProfile, error) {
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("refill quantity must be positive, got %d: %w", input.Quantity, domain.ErrInvalidAmount)
	}

	product, err := s.catalog.FindProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", input.ProductID, domain.ErrNotFound)
	}
	if !product.SupportsRefill {
		return nil, fmt.Errorf("product %q does not support refills: %w", product.Name, domain.ErrInvalidState)
	}
	if input.VariantID != nil {
		variant, err := s.catalog.FindVariant(ctx, *input.VariantID)
		if err != nil {
			return nil, err
		}
		if variant == nil || variant.ProductID != input.ProductID {
			return nil, fmt.Errorf("variant %s of product %s: %w", input.VariantID, input.ProductID, domain.ErrNotFound)
		}
	}

	profile, err := s.refills.Upsert(ctx, &domain.RefillProfile{
		ID:        uuid.New(),
		UserID:    input.UserID,
		ProductID: input.ProductID,
		VariantID: input.VariantID,
		Quantity:  input.Quantity,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("refill_profile_upserted",
		slog.String("profile_id", profile.ID.String()),
		slog.String("user_id", profile.UserID.String()),
		slog.Int("quantity", profile.Quantity),
	)
	return profile, nil
}

func (s *refillService) ListProfiles(ctx context.Context, userID uuid.UUID) ([]domain.RefillProfile, error) {
	return s.refills.ListActiveByUser(ctx, userID)
}

func (s *refillService) UpdateQuantity(ctx context.Context, profileID, userID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("refill quantity must be positive, got %d: %w", quantity, domain.ErrInvalidAmount)
	}
	if _, err := s.ownedProfile(ctx, profileID, userID); err != nil {
		return err
	}
	return s.refills.SetQuantity(ctx, profileID, quantity)
}

func (s *refillService) Deactivate(ctx context.Context, profileID, userID uuid.UUID) error {
	if _, err := s.ownedProfile(ctx, profileID, userID); err != nil {
		return err
	}
	return s.refills.Deactivate(ctx, profileID)
}

func (s *refillService) CreateOrder(ctx context.Context, profileID, userID uuid.UUID, delivery domain.DeliveryInfo) (*domain.Order, error) {
	profile, err := s.ownedProfile(ctx, profileID, userID)
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		return nil, fmt.Errorf("refill profile %s is inactive: %w", profileID, domain.ErrInvalidState)
	}

	order, err := s.orders.Create(ctx, CreateOrderInput{
		BuyerID: userID,
		Items: []OrderItemInput{{
			ProductID: profile.ProductID,
			VariantID: profile.VariantID,
			Quantity:  profile.Quantity,
		}},
		Delivery:      delivery,
		PaymentMethod: domain.PaymentMethodCOD,
		WalletAmount:  decimal.Zero,
	})
	if err != nil {
		return nil, err
	}

	if err := s.refills.TouchLastOrdered(ctx, profileID); err != nil {
		// The order exists either way; the stale stamp only delays the
		// next-due sort.
		slog.Warn("refill_touch_failed",
			slog.String("profile_id", profileID.String()),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("refill_order_created",
		slog.String("profile_id", profileID.String()),
		slog.String("order_id", order.ID.String()),
		slog.String("order_number", order.OrderNumber),
	)
	return order, nil
}

func (s *refillService) ownedProfile(ctx context.Context, profileID, userID uuid.UUID) (*domain.RefillProfile, error) {
	profile, err := s.refills.FindByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("refill profile %s: %w", profileID, domain.ErrNotFound)
	}
	if profile.UserID != userID {
		return nil, fmt.Errorf("refill profile %s: %w", profileID, domain.ErrUnauthorized)
	}
	return profile, nil
}

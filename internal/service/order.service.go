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
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

type CreateOrderInput struct {
	BuyerID       uuid.UUID
	Items         []OrderItemInput
	Delivery      domain.DeliveryInfo
	PaymentMethod domain.PaymentMethod
	// WalletAmount is store credit to apply toward the total; debited from
	// the buyer's wallet in the same transaction that creates the order.
	WalletAmount decimal.Decimal
}

// OrderService owns the order aggregate: creation with stock reservation,
// the status state machine, and cancellation with restock. No other
// component writes orders or stock counters.
type OrderService interface {
	Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus domain.OrderStatus, updatedBy uuid.UUID, reason string) (*domain.Order, error)
	Cancel(ctx context.Context, orderID, byUserID uuid.UUID, reason string) (*domain.Order, error)
	// MarkPaid transitions the order to PAID inside a caller-owned
	// transaction; used by the payment adapter when the provider confirms.
	MarkPaid(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (*domain.Order, error)
}

type orderService struct {
	db           *sql.DB
	orders       repo.OrderRepo
	stock        repo.StockRepo
	catalog      repo.CatalogRepo
	wallet       WalletService
	notifier     *notify.Notifier
	shippingCost decimal.Decimal
}

func NewOrderService(
	db *sql.DB,
	orders repo.OrderRepo,
	stock repo.StockRepo,
	catalog repo.CatalogRepo,
	wallet WalletService,
	notifier *notify.Notifier,
	shippingCost decimal.Decimal,
) OrderService {
	return &orderService{
		db:           db,
		orders:       orders,
		stock:        stock,
		catalog:      catalog,
		wallet:       wallet,
		notifier:     notifier,
		shippingCost: shippingCost,
	}
}

// snapshot is a validated line item with catalog values frozen at order time.
type snapshot struct {
	input   OrderItemInput
	product *domain.Product
	variant *domain.ProductVariant
	price   decimal.Decimal
}

func (s *orderService) Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item: %w", domain.ErrInvalidAmount)
	}
	if input.WalletAmount.IsNegative() {
		return nil, fmt.Errorf("wallet amount must not be negative: %w", domain.ErrInvalidAmount)
	}

	// Validate every item before mutating anything. Prices come from the
	// catalog here, never from the caller.
	snapshots := make([]snapshot, 0, len(input.Items))
	for _, item := range input.Items {
		snap, err := s.validateItem(ctx, item)
		if err != nil {
			metrics.RecordOrderOperation("create", false)
			return nil, err
		}
		snapshots = append(snapshots, *snap)
	}

	now := time.Now()
	order := &domain.Order{
		ID:            uuid.New(),
		OrderNumber:   newOrderNumber(now),
		BuyerID:       input.BuyerID,
		Delivery:      input.Delivery,
		ShippingCost:  s.shippingCost,
		WalletUsed:    input.WalletAmount,
		PaymentMethod: input.PaymentMethod,
		Status:        domain.OrderPending,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	subtotal := decimal.Zero
	weight := decimal.Zero
	for _, snap := range snapshots {
		qty := decimal.NewFromInt(int64(snap.input.Quantity))
		lineSubtotal := snap.price.Mul(qty)
		subtotal = subtotal.Add(lineSubtotal)
		weight = weight.Add(snap.product.Weight.Mul(qty))

		item := domain.OrderItem{
			ID:            uuid.New(),
			OrderID:       order.ID,
			ProductID:     snap.product.ID,
			ProductName:   snap.product.Name,
			Quantity:      snap.input.Quantity,
			ProductPrice:  snap.price,
			ProductWeight: snap.product.Weight,
			ProductUnit:   snap.product.Unit,
			Subtotal:      lineSubtotal,
			CreatedAt:     now,
		}
		if snap.variant != nil {
			id := snap.variant.ID
			item.VariantID = &id
			item.VariantName = snap.variant.Name
		}
		order.Items = append(order.Items, item)
	}

	order.Subtotal = subtotal
	order.TotalWeight = weight
	order.TotalCost = subtotal.Add(s.shippingCost).Sub(input.WalletAmount)
	if order.TotalCost.IsNegative() {
		return nil, fmt.Errorf("wallet amount $%s exceeds order total $%s: %w",
			input.WalletAmount.StringFixed(2), subtotal.Add(s.shippingCost).StringFixed(2), domain.ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.orders.Create(ctx, tx, order); err != nil {
		metrics.RecordOrderOperation("create", false)
		return nil, err
	}

	// Conditional decrements: a concurrent order may have taken the stock
	// between validation and here, in which case everything rolls back.
	for _, snap := range snapshots {
		ok, err := s.decrement(ctx, tx, snap)
		if err != nil {
			metrics.RecordOrderOperation("create", false)
			return nil, err
		}
		if !ok {
			metrics.RecordOrderOperation("create", false)
			s.notifier.AlertStockDepleted(ctx, snap.product.Name)
			return nil, fmt.Errorf("stock depleted for %q while placing order: %w", snap.product.Name, domain.ErrStockDepleted)
		}
	}

	if input.WalletAmount.IsPositive() {
		if _, err := s.wallet.DebitInTx(ctx, tx, input.BuyerID, input.WalletAmount,
			domain.SourceOrderPayment, order.ID.String(), nil); err != nil {
			metrics.RecordOrderOperation("create", false)
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordOrderOperation("create", false)
		return nil, err
	}

	slog.Info("order_created",
		slog.String("order_id", order.ID.String()),
		slog.String("order_number", order.OrderNumber),
		slog.String("buyer_id", order.BuyerID.String()),
		slog.String("total_cost", order.TotalCost.String()),
		slog.String("wallet_used", order.WalletUsed.String()),
		slog.Int("items", len(order.Items)),
	)
	metrics.RecordOrderOperation("create", true)

	return order, nil
}

func (s *orderService) validateItem(ctx context.Context, item OrderItemInput) (*snapshot, error) {
	if item.Quantity <= 0 {
		return nil, fmt.Errorf("quantity for product %s must be positive: %w", item.ProductID, domain.ErrInvalidAmount)
	}

	product, err := s.catalog.FindProduct(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", item.ProductID, domain.ErrNotFound)
	}
	if product.Status != domain.ProductActive {
		return nil, fmt.Errorf("product %q is not available: %w", product.Name, domain.ErrOutOfStock)
	}

	snap := &snapshot{input: item, product: product, price: product.Price}
	available := product.Stock

	if item.VariantID != nil {
		variant, err := s.catalog.FindVariant(ctx, *item.VariantID)
		if err != nil {
			return nil, err
		}
		if variant == nil || variant.ProductID != product.ID {
			return nil, fmt.Errorf("variant %s of product %q: %w", *item.VariantID, product.Name, domain.ErrNotFound)
		}
		if !variant.IsActive {
			return nil, fmt.Errorf("variant %q of product %q is not available: %w", variant.Name, product.Name, domain.ErrOutOfStock)
		}
		snap.variant = variant
		snap.price = variant.Price
		available = variant.Stock
	}

	if available == 0 {
		return nil, fmt.Errorf("product %q: %w", product.Name, domain.ErrOutOfStock)
	}
	if available < item.Quantity {
		return nil, fmt.Errorf("product %q has %d in stock, requested %d: %w",
			product.Name, available, item.Quantity, domain.ErrInsufficientStock)
	}
	return snap, nil
}

func (s *orderService) decrement(ctx context.Context, tx *sql.Tx, snap snapshot) (bool, error) {
	if snap.variant != nil {
		return s.stock.DecrementVariant(ctx, tx, snap.variant.ID, snap.input.Quantity)
	}
	return s.stock.DecrementProduct(ctx, tx, snap.product.ID, snap.input.Quantity)
}

func (s *orderService) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	items, err := s.orders.FindItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *orderService) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.orders.ListByBuyer(ctx, buyerID, limit)
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus domain.OrderStatus, updatedBy uuid.UUID, reason string) (*domain.Order, error) {
	if newStatus == domain.OrderCancelled {
		// Cancellation restores stock and goes through its own path.
		return s.Cancel(ctx, orderID, updatedBy, reason)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}

	if err := domain.ValidateTransition(order.Status, newStatus); err != nil {
		return nil, err
	}

	prev := order.Status
	now := time.Now()
	order.Status = newStatus
	switch newStatus {
	case domain.OrderConfirmed:
		order.ConfirmedAt = &now
		order.ConfirmedBy = &updatedBy
	case domain.OrderPaid:
		order.PaidAt = &now
		order.PaymentStatus = domain.PaymentPaid
	case domain.OrderShipping:
		order.ShippedAt = &now
	case domain.OrderDelivered:
		order.DeliveredAt = &now
		order.ActualDeliveryDate = &now
	case domain.OrderCompleted:
		order.CompletedAt = &now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ok, err := s.orders.UpdateStatus(ctx, tx, order, prev)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %s changed status concurrently: %w", orderID, domain.ErrTransactionConflict)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("order_status_updated",
		slog.String("order_id", order.ID.String()),
		slog.String("from", string(prev)),
		slog.String("to", string(newStatus)),
		slog.String("updated_by", updatedBy.String()),
	)
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, orderID, byUserID uuid.UUID, reason string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}

	// A terminal order cannot be cancelled again, which also makes the
	// stock restore exactly-once.
	if err := domain.ValidateTransition(order.Status, domain.OrderCancelled); err != nil {
		return nil, err
	}

	if reason == "" {
		reason = "Cancelled"
	}
	prev := order.Status
	now := time.Now()
	order.Status = domain.OrderCancelled
	order.CancelledAt = &now
	order.CancellationReason = reason

	items, err := s.orders.FindItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ok, err := s.orders.UpdateStatus(ctx, tx, order, prev)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %s changed status concurrently: %w", orderID, domain.ErrTransactionConflict)
	}

	for _, item := range items {
		if item.VariantID != nil {
			err = s.stock.IncrementVariant(ctx, tx, *item.VariantID, item.Quantity)
		} else {
			err = s.stock.IncrementProduct(ctx, tx, item.ProductID, item.Quantity)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("order_cancelled",
		slog.String("order_id", order.ID.String()),
		slog.String("by", byUserID.String()),
		slog.String("reason", reason),
	)
	metrics.RecordOrderOperation("cancel", true)
	s.notifier.OrderCancelled(ctx, order, reason)

	order.Items = items
	return order, nil
}

func (s *orderService) MarkPaid(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}

	if err := domain.ValidateTransition(order.Status, domain.OrderPaid); err != nil {
		return nil, err
	}

	prev := order.Status
	now := time.Now()
	order.Status = domain.OrderPaid
	order.PaymentStatus = domain.PaymentPaid
	order.PaidAt = &now

	ok, err := s.orders.UpdateStatus(ctx, tx, order, prev)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %s changed status concurrently: %w", orderID, domain.ErrTransactionConflict)
	}
	return order, nil
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

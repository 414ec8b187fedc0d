package repo

import (
	"context"
	"database/sql"
	"storefront/internal/domain"
	"time"

	"github.com/google/uuid"
)

type OrderRepo interface {
	Create(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]domain.Order, error)
	// UpdateStatus persists the order's status fields guarded by the status
	// the caller observed; false means another writer got there first.
	UpdateStatus(ctx context.Context, tx *sql.Tx, order *domain.Order, expect domain.OrderStatus) (bool, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, order_number, buyer_id,
	delivery_address, delivery_city, delivery_state, delivery_zip, delivery_phone, delivery_notes,
	subtotal, shipping_cost, total_cost, total_weight, wallet_used,
	payment_method, status, payment_status, cancellation_reason,
	confirmed_at, confirmed_by, paid_at, shipped_at, delivered_at, actual_delivery_date,
	completed_at, cancelled_at, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.BuyerID,
		&o.Delivery.Address, &o.Delivery.City, &o.Delivery.State, &o.Delivery.ZipCode, &o.Delivery.Phone, &o.Delivery.Notes,
		&o.Subtotal, &o.ShippingCost, &o.TotalCost, &o.TotalWeight, &o.WalletUsed,
		&o.PaymentMethod, &o.Status, &o.PaymentStatus, &o.CancellationReason,
		&o.ConfirmedAt, &o.ConfirmedBy, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.ActualDeliveryDate,
		&o.CompletedAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) Create(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, buyer_id,
			delivery_address, delivery_city, delivery_state, delivery_zip, delivery_phone, delivery_notes,
			subtotal, shipping_cost, total_cost, total_weight, wallet_used,
			payment_method, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)`,
		order.ID, order.OrderNumber, order.BuyerID,
		order.Delivery.Address, order.Delivery.City, order.Delivery.State, order.Delivery.ZipCode, order.Delivery.Phone, order.Delivery.Notes,
		order.Subtotal, order.ShippingCost, order.TotalCost, order.TotalWeight, order.WalletUsed,
		order.PaymentMethod, order.Status, order.PaymentStatus, order.CreatedAt,
	)
	if err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, product_name, variant_name,
				quantity, product_price, product_weight, product_unit, subtotal, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			item.ID, order.ID, item.ProductID, item.VariantID, item.ProductName, item.VariantName,
			item.Quantity, item.ProductPrice, item.ProductWeight, item.ProductUnit, item.Subtotal, item.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) FindItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, product_name, variant_name,
			quantity, product_price, product_weight, product_unit, subtotal, created_at
		FROM order_items WHERE order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariantID, &item.ProductName, &item.VariantName,
			&item.Quantity, &item.ProductPrice, &item.ProductWeight, &item.ProductUnit, &item.Subtotal, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *orderRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC LIMIT $2",
		buyerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx *sql.Tx, order *domain.Order, expect domain.OrderStatus) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, cancellation_reason = $4,
			confirmed_at = $5, confirmed_by = $6, paid_at = $7, shipped_at = $8,
			delivered_at = $9, actual_delivery_date = $10, completed_at = $11, cancelled_at = $12,
			updated_at = $13
		WHERE id = $1 AND status = $14`,
		order.ID, order.Status, order.PaymentStatus, order.CancellationReason,
		order.ConfirmedAt, order.ConfirmedBy, order.PaidAt, order.ShippedAt,
		order.DeliveredAt, order.ActualDeliveryDate, order.CompletedAt, order.CancelledAt,
		time.Now(), expect,
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

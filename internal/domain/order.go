package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderPaid      OrderStatus = "PAID"
	OrderPreparing OrderStatus = "PREPARING"
	OrderShipping  OrderStatus = "SHIPPING"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "COD"
	PaymentMethodPrepaid PaymentMethod = "PREPAID"
)

// validTransitions is the full order lifecycle. COMPLETED and CANCELLED
// are terminal.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderPaid, OrderCancelled},
	OrderConfirmed: {OrderPaid, OrderPreparing, OrderCancelled},
	OrderPaid:      {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderShipping, OrderCancelled},
	OrderShipping:  {OrderDelivered, OrderCancelled},
	OrderDelivered: {OrderCompleted},
	OrderCompleted: {},
	OrderCancelled: {},
}

// ValidateTransition returns a *StatusTransitionError if moving from one
// status to the other is not allowed by the lifecycle table.
func ValidateTransition(from, to OrderStatus) error {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &StatusTransitionError{From: from, To: to}
}

func (s OrderStatus) Terminal() bool {
	return len(validTransitions[s]) == 0
}

type DeliveryInfo struct {
	Address string
	City    string
	State   string
	ZipCode string
	Phone   string
	Notes   string
}

type Order struct {
	ID                 uuid.UUID
	OrderNumber        string
	BuyerID            uuid.UUID
	Delivery           DeliveryInfo
	Subtotal           decimal.Decimal
	ShippingCost       decimal.Decimal
	TotalCost          decimal.Decimal
	TotalWeight        decimal.Decimal
	WalletUsed         decimal.Decimal
	PaymentMethod      PaymentMethod
	Status             OrderStatus
	PaymentStatus      PaymentStatus
	CancellationReason string
	ConfirmedAt        *time.Time
	ConfirmedBy        *uuid.UUID
	PaidAt             *time.Time
	ShippedAt          *time.Time
	DeliveredAt        *time.Time
	ActualDeliveryDate *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Items []OrderItem
}

// OrderItem is an immutable snapshot of the catalog at order time. Catalog
// price changes never touch an existing order.
type OrderItem struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	ProductID     uuid.UUID
	VariantID     *uuid.UUID
	ProductName   string
	VariantName   string
	Quantity      int
	ProductPrice  decimal.Decimal
	ProductWeight decimal.Decimal
	ProductUnit   string
	Subtotal      decimal.Decimal
	CreatedAt     time.Time
}

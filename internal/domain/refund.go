package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RefundStatus string

// Refunds are issued synchronously: either the whole refund commits or
// nothing does, so COMPLETED is the only status a persisted row can hold.
const RefundCompleted RefundStatus = "COMPLETED"

type Refund struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Amount      decimal.Decimal
	Reason      string
	RequestedBy uuid.UUID
	ApprovedBy  uuid.UUID
	Status      RefundStatus
	CompletedAt time.Time
	CreatedAt   time.Time
}

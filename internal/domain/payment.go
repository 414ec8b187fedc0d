package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentTxnStatus string

const (
	PaymentTxnPending   PaymentTxnStatus = "PENDING"
	PaymentTxnSucceeded PaymentTxnStatus = "SUCCEEDED"
	PaymentTxnFailed    PaymentTxnStatus = "FAILED"
	PaymentTxnCancelled PaymentTxnStatus = "CANCELLED"
)

// PaymentTransaction correlates an order with a charge attempt at the
// external payment provider. One row per intent; the row is updated, not
// recreated, as the provider reports the outcome.
type PaymentTransaction struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	Provider      string
	IntentID      string
	Amount        decimal.Decimal
	Currency      string
	Status        PaymentTxnStatus
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletTxnType string

const (
	WalletCredit WalletTxnType = "CREDIT"
	WalletDebit  WalletTxnType = "DEBIT"
)

type WalletTxnSource string

const (
	SourceRefund       WalletTxnSource = "REFUND"
	SourceLoyalty      WalletTxnSource = "LOYALTY"
	SourceAdmin        WalletTxnSource = "ADMIN"
	SourcePromo        WalletTxnSource = "PROMO"
	SourceOrderPayment WalletTxnSource = "ORDER_PAYMENT"
)

// Wallet holds a user's store credit. Balance is never negative and always
// equals the signed sum of its transaction log.
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WalletTransaction is an append-only ledger entry. Amount is stored
// positive; direction comes from Type.
type WalletTransaction struct {
	ID        uuid.UUID
	WalletID  uuid.UUID
	Type      WalletTxnType
	Source    WalletTxnSource
	Amount    decimal.Decimal
	Reference string
	Metadata  map[string]any
	CreatedAt time.Time
}

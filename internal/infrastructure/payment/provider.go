package payment

import (
	"context"
)

type IntentState string

const (
	IntentPending   IntentState = "PENDING"
	IntentSucceeded IntentState = "SUCCEEDED"
	IntentFailed    IntentState = "FAILED"
	IntentCancelled IntentState = "CANCELLED"
)

// Intent is an in-progress charge attempt at the external processor. The
// client secret is the only credential callers ever see.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

type EventType string

const (
	EventPaymentSucceeded EventType = "payment_intent.succeeded"
	EventPaymentFailed    EventType = "payment_intent.payment_failed"
	EventPaymentCanceled  EventType = "payment_intent.canceled"
)

// Event is a verified webhook notification from the processor.
type Event struct {
	Type          EventType
	IntentID      string
	OrderID       string
	FailureReason string
}

// Provider is the capability interface over an external payment processor.
// Implementations are selected by configuration at startup.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error)
	// VerifyEvent authenticates a raw webhook body against the shared
	// secret and fails closed: a bad signature yields ErrInvalidSignature
	// and no event.
	VerifyEvent(payload []byte, signature string) (*Event, error)
	// IntentState asks the processor for the authoritative state of an
	// intent; used by reconciliation when webhooks go missing.
	IntentState(ctx context.Context, intentID string) (IntentState, error)
}

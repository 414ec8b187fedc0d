package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("caller does not own this resource")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientFunds   = errors.New("insufficient wallet balance")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOutOfStock          = errors.New("out of stock")
	ErrStockDepleted       = errors.New("stock depleted")
	ErrInvalidState        = errors.New("invalid state for this operation")
	ErrAlreadyPaid         = errors.New("order is already paid")
	ErrDuplicatePayment    = errors.New("order already has a successful payment")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrTransactionConflict = errors.New("transaction conflict, please retry")
)

// StatusTransitionError reports an order status change that the state
// machine does not allow. It unwraps to ErrInvalidState so callers can
// match on the class without caring about the exact pair.
type StatusTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

func (e *StatusTransitionError) Unwrap() error { return ErrInvalidState }

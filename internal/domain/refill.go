package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefillProfile is a standing reorder for one product (or variant). Orders
// created from a profile always re-read the current catalog price; the
// profile stores only what and how much.
type RefillProfile struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	ProductID     uuid.UUID
	VariantID     *uuid.UUID
	Quantity      int
	IsActive      bool
	LastOrderedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

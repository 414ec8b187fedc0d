package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "ACTIVE"
	ProductInactive ProductStatus = "INACTIVE"
)

type Product struct {
	ID             uuid.UUID
	Name           string
	Status         ProductStatus
	Price          decimal.Decimal
	Weight         decimal.Decimal
	Unit           string
	SupportsRefill bool
	Stock          int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ProductVariant struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
	IsActive  bool
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

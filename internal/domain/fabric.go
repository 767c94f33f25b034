package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// YardsPerPiece is the length of one sale unit. Stock and cart quantities
// are counted in pieces.
const YardsPerPiece = 6

// Fabric represents a textile product in the catalog
type Fabric struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Slug        string          `json:"slug" db:"slug"`
	Description string          `json:"description" db:"description"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty" db:"category_id"`
	PriceNGN    decimal.Decimal `json:"price_ngn" db:"price_ngn"`
	PriceUSD    decimal.Decimal `json:"price_usd" db:"price_usd"`
	Images      []string        `json:"images" db:"images"`
	Stock       int             `json:"stock" db:"stock"`
	IsFeatured  bool            `json:"is_featured" db:"is_featured"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Yards returns the total fabric length for the given number of pieces.
func Yards(pieces int) int {
	return pieces * YardsPerPiece
}

// InStock reports whether the fabric can fill an order of qty pieces.
func (f *Fabric) InStock(qty int) bool {
	return f.IsActive && qty > 0 && f.Stock >= qty
}

// Category represents a fabric category (ankara, kente, adire, ...)
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	// FabricCount is the number of active fabrics in the category.
	FabricCount int `json:"fabric_count" db:"fabric_count"`
}

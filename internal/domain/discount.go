package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountCode is a percentage-off promotion redeemable at checkout.
// The validity window is inclusive on both ends.
type DiscountCode struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Code       string    `json:"code" db:"code"`
	Percentage int       `json:"percentage" db:"percentage"`
	StartsAt   time.Time `json:"starts_at" db:"starts_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	MaxUses    int       `json:"max_uses" db:"max_uses"`
	Uses       int       `json:"uses" db:"uses"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// NormalizeCode returns the canonical stored form of a discount code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (d *DiscountCode) IsValidAt(t time.Time) bool {
	return !t.Before(d.StartsAt) && !t.After(d.ExpiresAt)
}

// Exhausted reports whether the usage cap has been reached. MaxUses 0 means unlimited.
func (d *DiscountCode) Exhausted() bool {
	return d.MaxUses > 0 && d.Uses >= d.MaxUses
}

// Amount returns the discount taken off subtotal, rounded to two places.
func (d *DiscountCode) Amount(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(decimal.NewFromInt(int64(d.Percentage))).Div(decimal.NewFromInt(100)).Round(2)
}

// Package pricing resolves fabric prices in the shopper's currency and
// totals carts and orders. Everything here is pure arithmetic on
// shopspring decimals; callers supply the exchange rate.
package pricing

import (
	"errors"
	"strings"

	"textile-store/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	NGN Currency = "NGN"
	USD Currency = "USD"
)

var ErrUnknownCurrency = errors.New("unknown currency")

func ParseCurrency(s string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(s))) {
	case NGN:
		return NGN, nil
	case USD:
		return USD, nil
	}
	return "", ErrUnknownCurrency
}

func (c Currency) Symbol() string {
	if c == NGN {
		return "₦"
	}
	return "$"
}

// Convert turns a USD amount into naira at rate (NGN per USD).
func Convert(amountUSD, rate decimal.Decimal) decimal.Decimal {
	return amountUSD.Mul(rate)
}

// UnitPrice returns the price of one piece of f in currency. A fabric's own
// listed price wins; otherwise the other currency is converted at rate.
func UnitPrice(f *domain.Fabric, currency Currency, rate decimal.Decimal) decimal.Decimal {
	switch currency {
	case NGN:
		if f.PriceNGN.IsPositive() {
			return f.PriceNGN
		}
		return Convert(f.PriceUSD, rate).Round(2)
	default:
		if f.PriceUSD.IsPositive() {
			return f.PriceUSD
		}
		if !rate.IsPositive() {
			return decimal.Zero
		}
		return f.PriceNGN.Div(rate).Round(2)
	}
}

// Line is one priced cart or quote line
type Line struct {
	FabricID  uuid.UUID       `json:"fabric_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	Yards     int             `json:"yards"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// NewLine prices qty pieces of f.
func NewLine(f *domain.Fabric, qty int, currency Currency, rate decimal.Decimal) Line {
	unit := UnitPrice(f, currency, rate)
	line := Line{
		FabricID:  f.ID,
		Name:      f.Name,
		Quantity:  qty,
		Yards:     domain.Yards(qty),
		UnitPrice: unit,
		LineTotal: unit.Mul(decimal.NewFromInt(int64(qty))),
	}
	if len(f.Images) > 0 {
		line.Image = f.Images[0]
	}
	return line
}

// Total sums the line totals.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return total
}

// Format renders amount with the currency symbol and thousands separators,
// e.g. "₦12,500.00".
func Format(amount decimal.Decimal, currency Currency) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	return sign + currency.Symbol() + b.String() + "." + frac
}

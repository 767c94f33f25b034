package pricing

import (
	"testing"

	"textile-store/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func cents(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}

// Feature: storefront, Property 1: Cart totals equal the sum of price times quantity
func TestProperty_CartTotalEqualsSumOfLines(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total is the sum of unit price times quantity in the active currency", prop.ForAll(
		func(ngnCents []int64, usdCents []int64, quantities []int, rateCents int64, useUSD bool) bool {
			n := len(quantities)
			if len(ngnCents) < n || len(usdCents) < n {
				return true
			}

			currency := NGN
			if useUSD {
				currency = USD
			}
			rate := cents(rateCents)

			lines := make([]Line, 0, n)
			expected := decimal.Zero
			for i := 0; i < n; i++ {
				f := &domain.Fabric{
					ID:       uuid.New(),
					PriceNGN: cents(ngnCents[i]),
					PriceUSD: cents(usdCents[i]),
				}
				lines = append(lines, NewLine(f, quantities[i], currency, rate))
				expected = expected.Add(UnitPrice(f, currency, rate).Mul(decimal.NewFromInt(int64(quantities[i]))))
			}

			return Total(lines).Equal(expected)
		},
		gen.SliceOf(gen.Int64Range(0, 10_000_000)),
		gen.SliceOf(gen.Int64Range(0, 100_000)),
		gen.SliceOf(gen.IntRange(1, 50)),
		gen.Int64Range(1, 500_000),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property 2: Currency conversion is monotonic in the exchange rate
func TestProperty_ConversionMonotonicInRate(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a higher rate never yields a smaller converted amount", prop.ForAll(
		func(amount int64, r1 int64, r2 int64) bool {
			lo, hi := r1, r2
			if lo > hi {
				lo, hi = hi, lo
			}
			a := cents(amount)
			return Convert(a, cents(lo)).LessThanOrEqual(Convert(a, cents(hi)))
		},
		gen.Int64Range(0, 100_000_000),
		gen.Int64Range(0, 500_000),
		gen.Int64Range(0, 500_000),
	))

	properties.Property("naira price of a USD-only fabric grows with the rate", prop.ForAll(
		func(usd int64, r1 int64, r2 int64) bool {
			lo, hi := r1, r2
			if lo > hi {
				lo, hi = hi, lo
			}
			f := &domain.Fabric{PriceUSD: cents(usd)}
			return UnitPrice(f, NGN, cents(lo)).LessThanOrEqual(UnitPrice(f, NGN, cents(hi)))
		},
		gen.Int64Range(1, 1_000_000),
		gen.Int64Range(1, 500_000),
		gen.Int64Range(1, 500_000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUnitPrice(t *testing.T) {
	rate := decimal.NewFromInt(1500)

	both := &domain.Fabric{PriceNGN: decimal.NewFromInt(18000), PriceUSD: decimal.NewFromInt(14)}
	assert.True(t, UnitPrice(both, NGN, rate).Equal(decimal.NewFromInt(18000)))
	assert.True(t, UnitPrice(both, USD, rate).Equal(decimal.NewFromInt(14)))

	ngnOnly := &domain.Fabric{PriceNGN: decimal.NewFromInt(25000)}
	assert.True(t, UnitPrice(ngnOnly, USD, rate).Equal(decimal.RequireFromString("16.67")))
	assert.True(t, UnitPrice(ngnOnly, USD, decimal.Zero).IsZero())

	usdOnly := &domain.Fabric{PriceUSD: decimal.RequireFromString("9.99")}
	assert.True(t, UnitPrice(usdOnly, NGN, rate).Equal(decimal.RequireFromString("14985")))
}

func TestNewLine(t *testing.T) {
	f := &domain.Fabric{
		ID:       uuid.New(),
		Name:     "Indigo Adire",
		PriceNGN: decimal.NewFromInt(12500),
		Images:   []string{"https://cdn.example/a.jpg", "https://cdn.example/b.jpg"},
	}

	line := NewLine(f, 3, NGN, decimal.NewFromInt(1500))

	assert.Equal(t, 18, line.Yards)
	assert.Equal(t, "https://cdn.example/a.jpg", line.Image)
	assert.True(t, line.LineTotal.Equal(decimal.NewFromInt(37500)))
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" ngn ")
	assert.NoError(t, err)
	assert.Equal(t, NGN, c)

	c, err = ParseCurrency("USD")
	assert.NoError(t, err)
	assert.Equal(t, USD, c)

	_, err = ParseCurrency("EUR")
	assert.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		amount   string
		currency Currency
		want     string
	}{
		{"12500", NGN, "₦12,500.00"},
		{"8", USD, "$8.00"},
		{"1234567.891", NGN, "₦1,234,567.89"},
		{"999.5", USD, "$999.50"},
		{"0", USD, "$0.00"},
		{"-1500", NGN, "-₦1,500.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(decimal.RequireFromString(tt.amount), tt.currency))
	}
}

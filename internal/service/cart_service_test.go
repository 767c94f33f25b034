package service

import (
	"context"
	"testing"

	"textile-store/internal/pricing"
	"textile-store/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCartService_AddRespectsStock(t *testing.T) {
	store := newMemStore()
	user := store.addUser("Bola", "Ade")
	f := store.addFabric("Ankara Sunset", 5, 12500)
	svc := NewCartService(store, zap.NewNop())
	ctx := context.Background()

	qty, err := svc.Add(ctx, user.ID, f.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)

	qty, err = svc.Add(ctx, user.ID, f.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, qty)

	_, err = svc.Add(ctx, user.ID, f.ID, 1)
	assert.ErrorIs(t, err, ErrQuantityExceedsStock)

	_, err = svc.Add(ctx, user.ID, f.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Add(ctx, user.ID, uuid.New(), 1)
	assert.ErrorIs(t, err, repository.ErrFabricNotFound)

	inactive := store.addFabric("Retired Print", 5, 1000)
	fi := store.d.fabrics[inactive.ID]
	fi.IsActive = false
	store.d.fabrics[inactive.ID] = fi
	_, err = svc.Add(ctx, user.ID, inactive.ID, 1)
	assert.ErrorIs(t, err, ErrFabricUnavailable)
}

func TestCartService_SetQuantity(t *testing.T) {
	store := newMemStore()
	user := store.addUser("Bola", "Ade")
	f := store.addFabric("Kente Royal", 4, 40000)
	svc := NewCartService(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.SetQuantity(ctx, user.ID, f.ID, 4))
	assert.ErrorIs(t, svc.SetQuantity(ctx, user.ID, f.ID, 5), ErrQuantityExceedsStock)

	view, err := svc.Get(ctx, user.ID, pricing.NGN, testRate)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 24, view.Lines[0].Yards)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(160000)))

	require.NoError(t, svc.SetQuantity(ctx, user.ID, f.ID, 0))
	require.NoError(t, svc.SetQuantity(ctx, user.ID, f.ID, -3))

	view, err = svc.Get(ctx, user.ID, pricing.NGN, testRate)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.True(t, view.Total.IsZero())
}

func TestCartService_GetReportsUnavailable(t *testing.T) {
	store := newMemStore()
	user := store.addUser("Bola", "Ade")
	keep := store.addFabric("Ankara Sunset", 5, 12500)
	gone := store.addFabric("Kente Royal", 5, 40000)
	svc := NewCartService(store, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Add(ctx, user.ID, keep.ID, 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, user.ID, gone.ID, 1)
	require.NoError(t, err)

	g := store.d.fabrics[gone.ID]
	g.IsActive = false
	store.d.fabrics[gone.ID] = g

	view, err := svc.Get(ctx, user.ID, pricing.USD, testRate)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, []uuid.UUID{gone.ID}, view.Unavailable)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("8.33")), view.Total.String())
}

// Feature: storefront, Property 17: Guest quotes equal the sum of their lines
func TestProperty_GuestQuoteTotalsLines(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("quote total is the sum of line totals and repeated fabrics merge", prop.ForAll(
		func(prices []int64, quantities []int) bool {
			n := min(len(prices), len(quantities))
			if n == 0 {
				return true
			}
			store := newMemStore()
			svc := NewCartService(store, zap.NewNop())

			var items []ItemRequest
			expected := decimal.Zero
			for i := 0; i < n; i++ {
				f := store.addFabric("Fabric", 1000, prices[i])
				items = append(items, ItemRequest{FabricID: f.ID, Quantity: quantities[i]})
				expected = expected.Add(decimal.NewFromInt(prices[i] * int64(quantities[i])))
			}
			// Repeat the first line; it must fold into a single line.
			items = append(items, items[0])
			expected = expected.Add(decimal.NewFromInt(prices[0] * int64(quantities[0])))

			view, err := svc.Quote(context.Background(), items, pricing.NGN, testRate)
			if err != nil {
				return false
			}
			return len(view.Lines) == n && view.Total.Equal(expected) && view.Total.Equal(pricing.Total(view.Lines))
		},
		gen.SliceOf(gen.Int64Range(1, 1_000_000)),
		gen.SliceOf(gen.IntRange(1, 20)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property 18: Toggling a stored favorite twice restores it
func TestProperty_ToggleFavoriteTwice(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("two toggles leave the favorite list unchanged", prop.ForAll(
		func(startFavorite bool) bool {
			store := newMemStore()
			user := store.addUser("Bola", "Ade")
			f := store.addFabric("Adire Indigo", 3, 9000)
			svc := NewCartService(store, zap.NewNop())
			ctx := context.Background()

			if startFavorite {
				if err := store.Favorites().Add(ctx, user.ID, f.ID); err != nil {
					return false
				}
			}

			first, err := svc.ToggleFavorite(ctx, user.ID, f.ID)
			if err != nil || first == startFavorite {
				return false
			}
			second, err := svc.ToggleFavorite(ctx, user.ID, f.ID)
			if err != nil || second != startFavorite {
				return false
			}

			favorites, err := svc.ListFavorites(ctx, user.ID)
			return err == nil && (len(favorites) == 1) == startFavorite
		},
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCartService_ToggleUnknownFabric(t *testing.T) {
	store := newMemStore()
	user := store.addUser("Bola", "Ade")
	svc := NewCartService(store, zap.NewNop())

	_, err := svc.ToggleFavorite(context.Background(), user.ID, uuid.New())
	assert.ErrorIs(t, err, repository.ErrFabricNotFound)
}

//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"textile-store/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func newTestFabric(name string, stock int) *domain.Fabric {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Fabric{
		ID:        uuid.New(),
		Name:      name,
		Slug:      "fabric-" + uuid.NewString(),
		PriceNGN:  decimal.NewFromInt(12500),
		PriceUSD:  decimal.RequireFromString("8.50"),
		Images:    []string{"https://cdn.example/" + uuid.NewString() + ".jpg"},
		Stock:     stock,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Feature: storefront, Property 5: Fabric creation preserves attributes
func TestProperty_FabricCreationPreservesAttributes(t *testing.T) {
	fabricRepo := NewFabricRepository(testDB)
	categoryRepo := NewCategoryRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a fabric preserves all attributes", prop.ForAll(
		func(name string, description string, ngnCents int64, usdCents int64, images []string, stock int, featured bool) bool {
			ctx := context.Background()

			category := &domain.Category{
				ID:        uuid.New(),
				Name:      "Category " + uuid.NewString(),
				Slug:      "category-" + uuid.NewString(),
				CreatedAt: time.Now(),
			}
			if err := categoryRepo.Create(ctx, category); err != nil {
				t.Logf("FAIL: Failed to create category: %v", err)
				return false
			}

			fabric := newTestFabric(name, stock)
			fabric.Description = description
			fabric.CategoryID = &category.ID
			fabric.PriceNGN = decimal.New(ngnCents, -2)
			fabric.PriceUSD = decimal.New(usdCents, -2)
			fabric.Images = images
			fabric.IsFeatured = featured

			if err := fabricRepo.Create(ctx, fabric); err != nil {
				t.Logf("FAIL: Failed to create fabric: %v", err)
				return false
			}

			got, err := fabricRepo.FindBySlug(ctx, fabric.Slug)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve fabric: %v", err)
				return false
			}

			if got.ID != fabric.ID || got.Name != fabric.Name || got.Description != fabric.Description {
				t.Logf("FAIL: identity mismatch: %+v vs %+v", got, fabric)
				return false
			}
			if !got.PriceNGN.Equal(fabric.PriceNGN) || !got.PriceUSD.Equal(fabric.PriceUSD) {
				t.Logf("FAIL: price mismatch: %s/%s vs %s/%s", got.PriceNGN, got.PriceUSD, fabric.PriceNGN, fabric.PriceUSD)
				return false
			}
			if got.CategoryID == nil || *got.CategoryID != category.ID {
				t.Logf("FAIL: category mismatch")
				return false
			}
			if got.Stock != stock || got.IsFeatured != featured || len(got.Images) != len(images) {
				t.Logf("FAIL: stock/featured/images mismatch")
				return false
			}
			for i := range images {
				if got.Images[i] != images[i] {
					return false
				}
			}

			return true
		},
		gen.RegexMatch(`[A-Z][a-z]{3,20}( [A-Z][a-z]{2,10})?`),
		gen.AlphaString(),
		gen.Int64Range(1, 100_000_000),
		gen.Int64Range(0, 1_000_000),
		gen.SliceOfN(3, gen.RegexMatch(`https://cdn\.example/[a-z]{4,10}\.jpg`)),
		gen.IntRange(0, 1000),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property 6: Concurrent checkouts never oversell
func TestFabricRepository_ConcurrentDecrementNeverOversells(t *testing.T) {
	ctx := context.Background()
	repo := NewFabricRepository(testDB)

	const stock = 5
	fabric := newTestFabric("Kente Strip", stock)
	if err := repo.Create(ctx, fabric); err != nil {
		t.Fatalf("failed to create fabric: %v", err)
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		soldOut   atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.DecrementStock(ctx, fabric.ID, 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrInsufficientStock):
				soldOut.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != stock {
		t.Fatalf("expected %d successful decrements, got %d", stock, succeeded.Load())
	}
	if soldOut.Load() != 20-stock {
		t.Fatalf("expected %d sold-out errors, got %d", 20-stock, soldOut.Load())
	}

	got, err := repo.FindByID(ctx, fabric.ID)
	if err != nil {
		t.Fatalf("failed to reload fabric: %v", err)
	}
	if got.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", got.Stock)
	}
}

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testDB)

	fabric := newTestFabric("Aso Oke", 3)
	if err := s.Fabrics().Create(ctx, fabric); err != nil {
		t.Fatalf("failed to create fabric: %v", err)
	}

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Store) error {
		if err := tx.Fabrics().DecrementStock(ctx, fabric.ID, 2); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := s.Fabrics().FindByID(ctx, fabric.ID)
	if err != nil {
		t.Fatalf("failed to reload fabric: %v", err)
	}
	if got.Stock != 3 {
		t.Fatalf("expected rollback to keep stock at 3, got %d", got.Stock)
	}
}

func TestCartRepository_AddAccumulates(t *testing.T) {
	ctx := context.Background()
	user := newTestUser(t, "cart-"+uuid.NewString()[:8]+"@example.com")
	fabric := newTestFabric("Ankara Wax", 50)
	if err := NewFabricRepository(testDB).Create(ctx, fabric); err != nil {
		t.Fatalf("failed to create fabric: %v", err)
	}

	cart := NewCartRepository(testDB)
	if _, err := cart.Add(ctx, user.ID, fabric.ID, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	qty, err := cart.Add(ctx, user.ID, fabric.ID, 3)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if qty != 5 {
		t.Fatalf("expected quantity 5, got %d", qty)
	}

	items, err := cart.List(ctx, user.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one line, got %d (%v)", len(items), err)
	}

	if _, err := cart.Add(ctx, user.ID, uuid.New(), 1); !errors.Is(err, ErrFabricNotFound) {
		t.Fatalf("expected ErrFabricNotFound for unknown fabric, got %v", err)
	}
}

package service

import (
	"context"

	"textile-store/internal/domain"
	"textile-store/internal/realtime"
	"textile-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultLowStockThreshold is the stock level, in pieces, at or below which
// a fabric is reported as running low.
const DefaultLowStockThreshold = 5

// DashboardStats summarises the store for the admin dashboard
type DashboardStats struct {
	FabricCount     int                        `json:"fabric_count"`
	LowStock        []*domain.Fabric           `json:"low_stock"`
	LowStockCount   int                        `json:"low_stock_count"`
	OrdersByStatus  map[domain.OrderStatus]int `json:"orders_by_status"`
	RevenueCurrency map[string]decimal.Decimal `json:"revenue"`
}

// AdminService runs catalog-wide batch operations and reporting
type AdminService interface {
	// BulkUpdateFabrics applies patch to every fabric in ids in one
	// transaction. Unknown ids fail the batch and are listed in the error.
	BulkUpdateFabrics(ctx context.Context, ids []uuid.UUID, patch repository.FabricPatch) (int64, error)
	BulkDeleteFabrics(ctx context.Context, ids []uuid.UUID) (int64, error)
	Stats(ctx context.Context, lowStockThreshold int) (*DashboardStats, error)
}

type adminService struct {
	store    repository.Store
	notifier *realtime.Notifier
	logger   *zap.Logger
}

func NewAdminService(store repository.Store, notifier *realtime.Notifier, logger *zap.Logger) AdminService {
	return &adminService{store: store, notifier: notifier, logger: logger}
}

// pricedAfter reports whether f keeps a positive price in some currency
// once patch is applied.
func pricedAfter(f *domain.Fabric, patch repository.FabricPatch) bool {
	ngn, usd := f.PriceNGN, f.PriceUSD
	if patch.PriceNGN != nil {
		ngn = *patch.PriceNGN
	}
	if patch.PriceUSD != nil {
		usd = *patch.PriceUSD
	}
	return ngn.IsPositive() || usd.IsPositive()
}

// missingFabrics returns the ids that have no row in found.
func missingFabrics(ids []uuid.UUID, found map[uuid.UUID]*domain.Fabric) []uuid.UUID {
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func (s *adminService) BulkUpdateFabrics(ctx context.Context, ids []uuid.UUID, patch repository.FabricPatch) (int64, error) {
	if patch.Empty() {
		return 0, repository.ErrEmptyFabricPatch
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return 0, ErrInvalidStock
	}
	if (patch.PriceNGN != nil && patch.PriceNGN.IsNegative()) || (patch.PriceUSD != nil && patch.PriceUSD.IsNegative()) {
		return 0, ErrInvalidPrice
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	var changed int64
	var updated map[uuid.UUID]*domain.Fabric
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		found, err := tx.Fabrics().FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if missing := missingFabrics(ids, found); len(missing) > 0 {
			return &MissingIDsError{Kind: ErrUnknownFabrics, IDs: missing}
		}
		for _, f := range found {
			if !pricedAfter(f, patch) {
				return ErrInvalidPrice
			}
		}

		changed, err = tx.Fabrics().BulkUpdate(ctx, ids, patch)
		if err != nil {
			return err
		}
		updated, err = tx.Fabrics().FindByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if f, ok := updated[id]; ok {
			s.notifier.Notify(ctx, realtime.TableFabrics, domain.ChangeUpdate, f)
		}
	}
	s.logger.Info("Bulk fabric update", zap.Int64("count", changed))
	return changed, nil
}

func (s *adminService) BulkDeleteFabrics(ctx context.Context, ids []uuid.UUID) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		found, err := tx.Fabrics().FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if missing := missingFabrics(ids, found); len(missing) > 0 {
			return &MissingIDsError{Kind: ErrUnknownFabrics, IDs: missing}
		}

		deleted, err = tx.Fabrics().BulkDelete(ctx, ids)
		return err
	})
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		s.notifier.Notify(ctx, realtime.TableFabrics, domain.ChangeDelete, map[string]string{"id": id.String()})
	}
	s.logger.Info("Bulk fabric delete", zap.Int64("count", deleted))
	return deleted, nil
}

// Stats gathers the dashboard figures concurrently.
func (s *adminService) Stats(ctx context.Context, lowStockThreshold int) (*DashboardStats, error) {
	if lowStockThreshold < 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	stats := &DashboardStats{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats.FabricCount, err = s.store.Fabrics().Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.LowStock, stats.LowStockCount, err = s.store.Fabrics().List(gctx, repository.FabricFilter{
			MaxStock:  &lowStockThreshold,
			PageSize:  100,
			SortBy:    "stock",
			SortOrder: repository.SortOrderAsc,
		})
		return err
	})
	g.Go(func() error {
		var err error
		stats.OrdersByStatus, err = s.store.Orders().StatusCounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.RevenueCurrency, err = s.store.Orders().Revenue(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"textile-store/internal/domain"
	"textile-store/internal/realtime"
	"textile-store/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidStatus = errors.New("unknown order status")
	ErrUnknownOrders = errors.New("unknown order ids")
)

// MissingIDsError lists the ids of a batch that matched no row.
type MissingIDsError struct {
	Kind error
	IDs  []uuid.UUID
}

func (e *MissingIDsError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.IDs)
}

func (e *MissingIDsError) Unwrap() error {
	return e.Kind
}

// OrderService exposes orders to their owners and to administrators
type OrderService interface {
	ListForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Order, int, error)
	// GetForUser returns the order only when userID placed it.
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)

	List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, int, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByReference(ctx context.Context, reference string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status domain.OrderStatus) (int, error)
	// Delete removes an order, returning its pieces to stock when it never shipped.
	Delete(ctx context.Context, id uuid.UUID) error
}

type orderService struct {
	store    repository.Store
	notifier *realtime.Notifier
	logger   *zap.Logger
}

func NewOrderService(store repository.Store, notifier *realtime.Notifier, logger *zap.Logger) OrderService {
	return &orderService{store: store, notifier: notifier, logger: logger}
}

func (s *orderService) ListForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Order, int, error) {
	return s.store.Orders().List(ctx, repository.OrderFilter{UserID: &userID, Page: page, PageSize: pageSize})
}

func (s *orderService) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.store.Orders().List(ctx, filter)
}

func (s *orderService) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.store.Orders().FindByID(ctx, id)
}

func (s *orderService) GetByReference(ctx context.Context, reference string) (*domain.Order, error) {
	return s.store.Orders().FindByReference(ctx, reference)
}

func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if err := s.store.Orders().UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	order, err := s.store.Orders().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated", zap.String("order_id", id.String()), zap.String("status", string(status)))
	s.notifier.Notify(ctx, realtime.TableOrders, domain.ChangeUpdate, order)
	return order, nil
}

// BulkUpdateStatus sets status on every order in ids inside one
// transaction. An unknown id rolls the whole batch back.
func (s *orderService) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status domain.OrderStatus) (int, error) {
	if !status.Valid() {
		return 0, ErrInvalidStatus
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	var missing []uuid.UUID
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		for _, id := range ids {
			err := tx.Orders().UpdateStatus(ctx, id, status)
			if errors.Is(err, repository.ErrOrderNotFound) {
				missing = append(missing, id)
				continue
			}
			if err != nil {
				return err
			}
		}
		if len(missing) > 0 {
			return &MissingIDsError{Kind: ErrUnknownOrders, IDs: missing}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		s.notifier.Notify(ctx, realtime.TableOrders, domain.ChangeUpdate, map[string]string{"id": id.String(), "status": string(status)})
	}
	s.logger.Info("Bulk order status update", zap.Int("count", len(ids)), zap.String("status", string(status)))
	return len(ids), nil
}

func (s *orderService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().FindByID(ctx, id)
		if err != nil {
			return err
		}

		if order.Status.Restockable() {
			for _, it := range order.Items {
				err := tx.Fabrics().IncrementStock(ctx, it.FabricID, it.Quantity)
				if errors.Is(err, repository.ErrFabricNotFound) {
					s.logger.Debug("Skipping restock of deleted fabric", zap.String("fabric_id", it.FabricID.String()))
					continue
				}
				if err != nil {
					return err
				}
			}
		}

		return tx.Orders().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, realtime.TableOrders, domain.ChangeDelete, map[string]string{"id": id.String()})
	return nil
}

// uniqueIDs drops duplicates and the nil uuid, keeping first-seen order.
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

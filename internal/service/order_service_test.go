package service

import (
	"context"
	"errors"
	"testing"

	"textile-store/internal/domain"
	"textile-store/internal/realtime"
	"textile-store/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// placeOrder checks out qty pieces of fabric through the real checkout path.
func placeOrder(t *testing.T, store *memStore, userID *uuid.UUID, fabric *domain.Fabric, qty int) *domain.Order {
	t.Helper()
	svc, _ := newTestCheckout(store, nil)
	req := guestRequest(ItemRequest{FabricID: fabric.ID, Quantity: qty})
	req.UserID = userID
	receipt, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	return receipt.Order
}

func TestOrderService_UserSeesOnlyOwnOrders(t *testing.T) {
	store := newMemStore()
	alice := store.addUser("Alice", "A")
	bob := store.addUser("Bob", "B")
	f := store.addFabric("Ankara Sunset", 10, 12500)

	mine := placeOrder(t, store, &alice.ID, f, 1)
	placeOrder(t, store, &bob.ID, f, 1)
	guest := placeOrder(t, store, nil, f, 1)

	svc := NewOrderService(store, nil, zap.NewNop())
	ctx := context.Background()

	orders, total, err := svc.ListForUser(ctx, alice.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, mine.ID, orders[0].ID)

	got, err := svc.GetForUser(ctx, alice.ID, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.Reference, got.Reference)

	_, err = svc.GetForUser(ctx, bob.ID, mine.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
	_, err = svc.GetForUser(ctx, alice.ID, guest.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	store := newMemStore()
	f := store.addFabric("Ankara Sunset", 10, 12500)
	order := placeOrder(t, store, nil, f, 1)

	notifier, changes := subscribe(t, realtime.TableOrders)
	svc := NewOrderService(store, notifier, zap.NewNop())
	ctx := context.Background()

	updated, err := svc.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)
	assert.Equal(t, domain.ChangeUpdate, nextChange(t, changes).Event)

	_, err = svc.UpdateStatus(ctx, order.ID, "lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateStatus(ctx, uuid.New(), domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	_, _, err = svc.List(ctx, repository.OrderFilter{Status: "weird"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestOrderService_DeleteRestocksUnshippedOrders(t *testing.T) {
	store := newMemStore()
	f := store.addFabric("Ankara Sunset", 10, 12500)
	pending := placeOrder(t, store, nil, f, 3)
	shipped := placeOrder(t, store, nil, f, 2)
	require.Equal(t, 5, store.stock(f.ID))

	svc := NewOrderService(store, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, shipped.ID, domain.OrderStatusShipped)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, pending.ID))
	assert.Equal(t, 8, store.stock(f.ID))

	require.NoError(t, svc.Delete(ctx, shipped.ID))
	assert.Equal(t, 8, store.stock(f.ID))

	assert.ErrorIs(t, svc.Delete(ctx, pending.ID), repository.ErrOrderNotFound)
}

func TestOrderService_BulkUpdateStatusIsAtomic(t *testing.T) {
	store := newMemStore()
	f := store.addFabric("Ankara Sunset", 10, 12500)
	a := placeOrder(t, store, nil, f, 1)
	b := placeOrder(t, store, nil, f, 1)
	svc := NewOrderService(store, nil, zap.NewNop())
	ctx := context.Background()

	unknown := uuid.New()
	_, err := svc.BulkUpdateStatus(ctx, []uuid.UUID{a.ID, unknown, b.ID}, domain.OrderStatusConfirmed)
	require.ErrorIs(t, err, ErrUnknownOrders)
	var missing *MissingIDsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []uuid.UUID{unknown}, missing.IDs)
	assert.Equal(t, domain.OrderStatusPending, store.d.orders[a.ID].Status)

	n, err := svc.BulkUpdateStatus(ctx, []uuid.UUID{a.ID, b.ID, a.ID}, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, domain.OrderStatusConfirmed, store.d.orders[b.ID].Status)
}

package service

import (
	"context"
	"errors"
	"fmt"

	"textile-store/internal/domain"
	"textile-store/internal/pricing"
	"textile-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrQuantityExceedsStock = errors.New("requested quantity exceeds available stock")
	ErrFabricUnavailable    = errors.New("fabric is not available")
)

// ItemRequest is one fabric and quantity (in pieces) sent by a client.
type ItemRequest struct {
	FabricID uuid.UUID `json:"fabric_id"`
	Quantity int       `json:"quantity"`
}

// CartView is a cart priced in one currency
type CartView struct {
	Currency pricing.Currency `json:"currency"`
	Rate     decimal.Decimal  `json:"exchange_rate"`
	Lines    []pricing.Line   `json:"items"`
	Total    decimal.Decimal  `json:"total"`
	// Unavailable lists fabrics that were in the cart but are no longer sold.
	Unavailable []uuid.UUID `json:"unavailable,omitempty"`
}

// CartService manages server-side carts and favorites
type CartService interface {
	Get(ctx context.Context, userID uuid.UUID, currency pricing.Currency, rate decimal.Decimal) (*CartView, error)
	Add(ctx context.Context, userID, fabricID uuid.UUID, qty int) (int, error)
	SetQuantity(ctx context.Context, userID, fabricID uuid.UUID, qty int) error
	Remove(ctx context.Context, userID, fabricID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	// Quote prices a guest cart without storing it.
	Quote(ctx context.Context, items []ItemRequest, currency pricing.Currency, rate decimal.Decimal) (*CartView, error)

	ListFavorites(ctx context.Context, userID uuid.UUID) ([]*domain.Fabric, error)
	ToggleFavorite(ctx context.Context, userID, fabricID uuid.UUID) (bool, error)
}

type cartService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewCartService(store repository.Store, logger *zap.Logger) CartService {
	return &cartService{store: store, logger: logger}
}

func (s *cartService) Get(ctx context.Context, userID uuid.UUID, currency pricing.Currency, rate decimal.Decimal) (*CartView, error) {
	items, err := s.store.Cart().List(ctx, userID)
	if err != nil {
		return nil, err
	}

	requests := make([]ItemRequest, 0, len(items))
	for _, it := range items {
		requests = append(requests, ItemRequest{FabricID: it.FabricID, Quantity: it.Quantity})
	}
	return s.price(ctx, requests, currency, rate)
}

func (s *cartService) Quote(ctx context.Context, items []ItemRequest, currency pricing.Currency, rate decimal.Decimal) (*CartView, error) {
	merged, err := mergeItems(items)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, merged, currency, rate)
}

// price resolves fabrics for items in one query and prices each line.
// Fabrics that vanished or were deactivated are reported, not priced.
func (s *cartService) price(ctx context.Context, items []ItemRequest, currency pricing.Currency, rate decimal.Decimal) (*CartView, error) {
	view := &CartView{Currency: currency, Rate: rate, Lines: []pricing.Line{}, Total: decimal.Zero}
	if len(items) == 0 {
		return view, nil
	}

	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.FabricID
	}
	fabrics, err := s.store.Fabrics().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		f, ok := fabrics[it.FabricID]
		if !ok || !f.IsActive {
			view.Unavailable = append(view.Unavailable, it.FabricID)
			continue
		}
		view.Lines = append(view.Lines, pricing.NewLine(f, it.Quantity, currency, rate))
	}
	view.Total = pricing.Total(view.Lines)
	return view, nil
}

// mergeItems rejects non-positive quantities and folds repeated fabrics
// into one line, keeping first-seen order.
func mergeItems(items []ItemRequest) ([]ItemRequest, error) {
	index := make(map[uuid.UUID]int, len(items))
	merged := make([]ItemRequest, 0, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[it.FabricID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.FabricID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

func (s *cartService) currentQuantity(ctx context.Context, userID, fabricID uuid.UUID) (int, error) {
	items, err := s.store.Cart().List(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, it := range items {
		if it.FabricID == fabricID {
			return it.Quantity, nil
		}
	}
	return 0, nil
}

func (s *cartService) sellable(ctx context.Context, fabricID uuid.UUID) (*domain.Fabric, error) {
	fabric, err := s.store.Fabrics().FindByID(ctx, fabricID)
	if err != nil {
		return nil, err
	}
	if !fabric.IsActive {
		return nil, ErrFabricUnavailable
	}
	return fabric, nil
}

// Add increments the quantity of fabricID and returns the new quantity.
func (s *cartService) Add(ctx context.Context, userID, fabricID uuid.UUID, qty int) (int, error) {
	if qty < 1 {
		return 0, ErrInvalidQuantity
	}

	fabric, err := s.sellable(ctx, fabricID)
	if err != nil {
		return 0, err
	}
	current, err := s.currentQuantity(ctx, userID, fabricID)
	if err != nil {
		return 0, err
	}
	if current+qty > fabric.Stock {
		return 0, ErrQuantityExceedsStock
	}

	total, err := s.store.Cart().Add(ctx, userID, fabricID, qty)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("Cart item added",
		zap.String("user_id", userID.String()),
		zap.String("fabric_id", fabricID.String()),
		zap.Int("quantity", total),
	)
	return total, nil
}

// SetQuantity replaces the quantity; zero or less removes the line.
func (s *cartService) SetQuantity(ctx context.Context, userID, fabricID uuid.UUID, qty int) error {
	if qty <= 0 {
		err := s.store.Cart().Remove(ctx, userID, fabricID)
		if errors.Is(err, repository.ErrCartItemNotFound) {
			return nil
		}
		return err
	}

	fabric, err := s.sellable(ctx, fabricID)
	if err != nil {
		return err
	}
	if qty > fabric.Stock {
		return ErrQuantityExceedsStock
	}
	return s.store.Cart().SetQuantity(ctx, userID, fabricID, qty)
}

func (s *cartService) Remove(ctx context.Context, userID, fabricID uuid.UUID) error {
	return s.store.Cart().Remove(ctx, userID, fabricID)
}

func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.store.Cart().Clear(ctx, userID)
}

// ListFavorites returns the favorite fabrics, most recently added first.
// Favorites whose fabric has since been deleted are skipped.
func (s *cartService) ListFavorites(ctx context.Context, userID uuid.UUID) ([]*domain.Fabric, error) {
	favorites, err := s.store.Favorites().List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(favorites) == 0 {
		return []*domain.Fabric{}, nil
	}

	ids := make([]uuid.UUID, len(favorites))
	for i, f := range favorites {
		ids[i] = f.FabricID
	}
	fabrics, err := s.store.Fabrics().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Fabric, 0, len(ids))
	for _, id := range ids {
		if f, ok := fabrics[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// ToggleFavorite flips the favorite flag and reports the new state.
func (s *cartService) ToggleFavorite(ctx context.Context, userID, fabricID uuid.UUID) (bool, error) {
	removed, err := s.store.Favorites().Remove(ctx, userID, fabricID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	if removed {
		return false, nil
	}
	if err := s.store.Favorites().Add(ctx, userID, fabricID); err != nil {
		return false, err
	}
	return true, nil
}

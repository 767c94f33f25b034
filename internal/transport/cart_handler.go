package transport

import (
	"net/http"

	"textile-store/internal/middleware"
	"textile-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AddCartItemRequest struct {
	FabricID string `json:"fabric_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=1000"`
}

// SetQuantityRequest sets a cart line; zero or less removes it
type SetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"max=1000"`
}

type QuoteItemsRequest struct {
	Items []service.ItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

// CartHandler serves the signed-in cart, guest quotes and favorites
type CartHandler struct {
	carts    service.CartService
	currency CurrencyResolver
	logger   *zap.Logger
}

func NewCartHandler(carts service.CartService, resolver CurrencyResolver, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, currency: resolver, logger: logger}
}

func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/api/cart/quote", h.QuoteGuest)

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{fabricID}", h.SetQuantity)
		r.Delete("/items/{fabricID}", h.RemoveItem)
	})

	r.Route("/api/favorites", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListFavorites)
		r.Post("/{fabricID}/toggle", h.ToggleFavorite)
	})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := resolveCurrency(r.Context(), h.currency, r)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to resolve currency")
		return
	}

	view, err := h.carts.Get(r.Context(), userID, res.Currency, res.Rate)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load cart")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	fabricID := uuid.MustParse(req.FabricID)

	qty, err := h.carts.Add(r.Context(), userID, fabricID, req.Quantity)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to add to cart")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, service.ItemRequest{FabricID: fabricID, Quantity: qty})
}

func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	fabricID, ok := pathUUID(w, r, "fabricID")
	if !ok {
		return
	}
	var req SetQuantityRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	if err := h.carts.SetQuantity(r.Context(), userID, fabricID, req.Quantity); err != nil {
		respondServiceError(w, h.logger, err, "failed to update cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	fabricID, ok := pathUUID(w, r, "fabricID")
	if !ok {
		return
	}

	if err := h.carts.Remove(r.Context(), userID, fabricID); err != nil {
		respondServiceError(w, h.logger, err, "failed to update cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.carts.Clear(r.Context(), userID); err != nil {
		respondServiceError(w, h.logger, err, "failed to clear cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QuoteGuest prices a cart held by the client without storing it.
func (h *CartHandler) QuoteGuest(w http.ResponseWriter, r *http.Request) {
	var req QuoteItemsRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	res, err := resolveCurrency(r.Context(), h.currency, r)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to resolve currency")
		return
	}

	view, err := h.carts.Quote(r.Context(), req.Items, res.Currency, res.Rate)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to price cart")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

func (h *CartHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := resolveCurrency(r.Context(), h.currency, r)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to resolve currency")
		return
	}

	fabrics, err := h.carts.ListFavorites(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list favorites")
		return
	}
	views := make([]FabricView, 0, len(fabrics))
	for _, f := range fabrics {
		views = append(views, newFabricView(f, res))
	}
	middleware.RespondWithJSON(w, http.StatusOK, views)
}

func (h *CartHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	fabricID, ok := pathUUID(w, r, "fabricID")
	if !ok {
		return
	}

	favorite, err := h.carts.ToggleFavorite(r.Context(), userID, fabricID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update favorites")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]any{
		"fabric_id": fabricID,
		"favorite":  favorite,
	})
}

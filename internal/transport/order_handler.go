package transport

import (
	"net/http"

	"textile-store/internal/middleware"
	"textile-store/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderHandler lets shoppers see the orders they placed while signed in
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListMine)
		r.Get("/{orderID}", h.GetMine)
	})
}

func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, pageSize := pagination(r)

	orders, total, err := h.orders.ListForUser(r.Context(), userID, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list orders")
		return
	}
	respondList(w, orders, total, page, pageSize)
}

func (h *OrderHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orders.GetForUser(r.Context(), userID, orderID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get order")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

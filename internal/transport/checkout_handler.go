package transport

import (
	"net/http"

	"textile-store/internal/middleware"
	"textile-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutQuoteRequest prices items with an optional discount. Signed-in
// shoppers may omit items to quote their stored cart.
type CheckoutQuoteRequest struct {
	Items        []service.ItemRequest `json:"items" validate:"max=100"`
	DiscountCode string                `json:"discount_code" validate:"max=40"`
}

type PlaceOrderRequest struct {
	Items           []service.ItemRequest `json:"items" validate:"max=100"`
	CustomerName    string                `json:"customer_name" validate:"required,max=200"`
	CustomerPhone   string                `json:"customer_phone" validate:"required,max=32"`
	CustomerEmail   string                `json:"customer_email" validate:"omitempty,email,max=254"`
	ShippingAddress string                `json:"shipping_address" validate:"required,max=500"`
	DiscountCode    string                `json:"discount_code" validate:"max=40"`
}

// CheckoutHandler prices carts and places orders for guests and signed-in shoppers
type CheckoutHandler struct {
	checkout service.CheckoutService
	carts    service.CartService
	currency CurrencyResolver
	logger   *zap.Logger
}

func NewCheckoutHandler(checkout service.CheckoutService, carts service.CartService, resolver CurrencyResolver, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, carts: carts, currency: resolver, logger: logger}
}

// RegisterRoutes mounts checkout behind optionalAuth so guests and signed-in
// shoppers share the endpoints.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router, optionalAuth func(http.Handler) http.Handler) {
	r.Route("/api/checkout", func(r chi.Router) {
		r.Use(optionalAuth)
		r.Post("/quote", h.Quote)
		r.Post("/", h.PlaceOrder)
	})
}

// storedCartItems returns the signed-in caller's cart as checkout items.
func (h *CheckoutHandler) storedCartItems(r *http.Request, userID uuid.UUID) ([]service.ItemRequest, error) {
	res, err := resolveCurrency(r.Context(), h.currency, r)
	if err != nil {
		return nil, err
	}
	view, err := h.carts.Get(r.Context(), userID, res.Currency, res.Rate)
	if err != nil {
		return nil, err
	}
	items := make([]service.ItemRequest, 0, len(view.Lines))
	for _, l := range view.Lines {
		items = append(items, service.ItemRequest{FabricID: l.FabricID, Quantity: l.Quantity})
	}
	return items, nil
}

func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req CheckoutQuoteRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	items := req.Items
	if userID, ok := middleware.GetUserUUID(r.Context()); ok && len(items) == 0 {
		var err error
		if items, err = h.storedCartItems(r, userID); err != nil {
			respondServiceError(w, h.logger, err, "failed to load cart")
			return
		}
	}

	res, err := resolveCurrency(r.Context(), h.currency, r)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to resolve currency")
		return
	}

	quote, err := h.checkout.Quote(r.Context(), items, res.Currency, res.Rate, req.DiscountCode)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to price order")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, quote)
}

// PlaceOrder records the order and returns the WhatsApp link that hands it
// to the store.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	res, err := resolveCurrency(r.Context(), h.currency, r)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to resolve currency")
		return
	}

	checkout := service.CheckoutRequest{
		Items:           req.Items,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		ShippingAddress: req.ShippingAddress,
		DiscountCode:    req.DiscountCode,
		Currency:        res.Currency,
		Rate:            res.Rate,
	}
	if userID, ok := middleware.GetUserUUID(r.Context()); ok {
		checkout.UserID = &userID
	}

	receipt, err := h.checkout.PlaceOrder(r.Context(), checkout)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to place order")
		return
	}

	h.logger.Info("Order placed",
		zap.String("reference", receipt.Order.Reference),
		zap.String("currency", string(res.Currency)),
		zap.String("country", res.Country),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, receipt)
}

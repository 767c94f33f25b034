package transport

import (
	"net/http"
	"time"

	"textile-store/internal/middleware"
	"textile-store/internal/pricing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SetCurrencyRequest struct {
	Currency string `json:"currency" validate:"required,oneof=NGN USD ngn usd"`
}

// CurrencyHandler reports and pins the shopper's display currency
type CurrencyHandler struct {
	currency CurrencyResolver
	logger   *zap.Logger
}

func NewCurrencyHandler(resolver CurrencyResolver, logger *zap.Logger) *CurrencyHandler {
	return &CurrencyHandler{currency: resolver, logger: logger}
}

func (h *CurrencyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/currency", h.Get)
	r.Put("/api/currency", h.Set)
}

// Get returns the currency, rate and country used to price the caller's pages.
func (h *CurrencyHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := resolveCurrency(r.Context(), h.currency, r)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to resolve currency")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, res)
}

// Set pins a currency for later requests with a cookie.
func (h *CurrencyHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req SetCurrencyRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	c, err := pricing.ParseCurrency(req.Currency)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to set currency")
		return
	}

	res, err := h.currency.Resolve(r.Context(), r.RemoteAddr, string(c))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to resolve currency")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     currencyCookie,
		Value:    string(c),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	middleware.RespondWithJSON(w, http.StatusOK, res)
}

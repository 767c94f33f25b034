package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"textile-store/internal/currency"
	"textile-store/internal/pricing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCurrencyHandler_PinsCurrencyWithCookie(t *testing.T) {
	resolver := &fixedResolver{country: "NG"}
	r := chi.NewRouter()
	NewCurrencyHandler(resolver, zap.NewNop()).RegisterRoutes(r)

	rec := do(t, r, http.MethodGet, "/api/currency", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res currency.Resolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, pricing.NGN, res.Currency)
	assert.Equal(t, "NG", res.Country)

	rec = do(t, r, http.MethodPut, "/api/currency", "", SetCurrencyRequest{Currency: "usd"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "currency", cookies[0].Name)
	assert.Equal(t, "USD", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/currency", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, pricing.USD, res.Currency)
	assert.Equal(t, "USD", resolver.override())
}

func TestCurrencyHandler_RejectsUnsupportedCurrency(t *testing.T) {
	r := chi.NewRouter()
	NewCurrencyHandler(&fixedResolver{country: "NG"}, zap.NewNop()).RegisterRoutes(r)

	rec := do(t, r, http.MethodPut, "/api/currency", "", SetCurrencyRequest{Currency: "EUR"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestCurrencyOverridePrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?currency=NGN", nil)
	req.Header.Set("X-Currency", "USD")
	req.AddCookie(&http.Cookie{Name: "currency", Value: "USD"})
	assert.Equal(t, "NGN", currencyOverride(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Currency", "USD")
	req.AddCookie(&http.Cookie{Name: "currency", Value: "NGN"})
	assert.Equal(t, "USD", currencyOverride(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, currencyOverride(req))
}

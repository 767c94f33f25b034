package transport

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"textile-store/internal/currency"
	"textile-store/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// currencyCookie and currencyHeader let a shopper pin a currency
	// instead of the one chosen from their location.
	currencyCookie = "currency"
	currencyHeader = "X-Currency"
)

// CurrencyResolver picks the currency and exchange rate for a request.
type CurrencyResolver interface {
	Resolve(ctx context.Context, ip, override string) (currency.Resolution, error)
}

// ListResponse is the envelope for paginated listings
type ListResponse struct {
	Data     any `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func respondList(w http.ResponseWriter, data any, total, page, pageSize int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	middleware.RespondWithJSON(w, http.StatusOK, ListResponse{
		Data:     data,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// pagination reads page and page_size, clamping them the way the
// repositories do so the response echoes what was actually served.
func pagination(r *http.Request) (page, pageSize int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	pageSize, _ = strconv.Atoi(q.Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return page, min(pageSize, maxPageSize)
}

// pathUUID parses the named URL parameter, answering 400 when it is not a uuid.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// currentUser returns the authenticated caller, answering 401 when there is none.
func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return id, true
}

// currencyOverride returns the currency the shopper asked for explicitly,
// from the query string, the X-Currency header or the currency cookie.
func currencyOverride(r *http.Request) string {
	if c := r.URL.Query().Get("currency"); c != "" {
		return c
	}
	if c := r.Header.Get(currencyHeader); c != "" {
		return c
	}
	if c, err := r.Cookie(currencyCookie); err == nil {
		return c.Value
	}
	return ""
}

func resolveCurrency(ctx context.Context, resolver CurrencyResolver, r *http.Request) (currency.Resolution, error) {
	return resolver.Resolve(ctx, r.RemoteAddr, strings.TrimSpace(currencyOverride(r)))
}

func parseBool(s string) (*bool, bool) {
	if s == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, false
	}
	return &b, true
}

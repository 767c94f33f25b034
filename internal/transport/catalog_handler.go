package transport

import (
	"net/http"
	"strings"

	"textile-store/internal/currency"
	"textile-store/internal/domain"
	"textile-store/internal/middleware"
	"textile-store/internal/pricing"
	"textile-store/internal/repository"
	"textile-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FabricView is a fabric with its price in the shopper's currency
type FabricView struct {
	*domain.Fabric
	Price          decimal.Decimal  `json:"price"`
	Currency       pricing.Currency `json:"currency"`
	FormattedPrice string           `json:"formatted_price"`
}

func newFabricView(f *domain.Fabric, res currency.Resolution) FabricView {
	price := pricing.UnitPrice(f, res.Currency, res.Rate)
	return FabricView{
		Fabric:         f,
		Price:          price,
		Currency:       res.Currency,
		FormattedPrice: pricing.Format(price, res.Currency),
	}
}

// CatalogHandler serves the public catalog
type CatalogHandler struct {
	catalog  service.CatalogService
	currency CurrencyResolver
	logger   *zap.Logger
}

func NewCatalogHandler(catalog service.CatalogService, resolver CurrencyResolver, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, currency: resolver, logger: logger}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/fabrics", func(r chi.Router) {
		r.Get("/", h.ListFabrics)
		r.Get("/{ref}", h.GetFabric)
	})
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Get("/{ref}", h.GetCategory)
	})
}

// fabricFilter builds a listing filter from the query string. The category
// parameter accepts an id or a slug.
func (h *CatalogHandler) fabricFilter(w http.ResponseWriter, r *http.Request) (repository.FabricFilter, bool) {
	q := r.URL.Query()
	page, pageSize := pagination(r)
	filter := repository.FabricFilter{
		Query:     strings.TrimSpace(q.Get("q")),
		Page:      page,
		PageSize:  pageSize,
		SortBy:    q.Get("sort"),
		SortOrder: repository.SortOrder(strings.ToUpper(q.Get("order"))),
	}

	featured, ok := parseBool(q.Get("featured"))
	if !ok {
		middleware.RespondWithError(w, http.StatusBadRequest, "featured must be true or false")
		return filter, false
	}
	filter.Featured = featured

	if ref := q.Get("category"); ref != "" {
		category, err := h.catalog.GetCategory(r.Context(), ref)
		if err != nil {
			respondServiceError(w, h.logger, err, "failed to list fabrics")
			return filter, false
		}
		filter.CategoryID = &category.ID
	}
	return filter, true
}

func (h *CatalogHandler) ListFabrics(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.fabricFilter(w, r)
	if !ok {
		return
	}
	filter.ActiveOnly = true

	res, err := resolveCurrency(r.Context(), h.currency, r)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to resolve currency")
		return
	}

	fabrics, total, err := h.catalog.ListFabrics(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list fabrics")
		return
	}

	views := make([]FabricView, 0, len(fabrics))
	for _, f := range fabrics {
		views = append(views, newFabricView(f, res))
	}
	respondList(w, views, total, filter.Page, filter.PageSize)
}

// GetFabric looks a fabric up by id or slug. Inactive fabrics are hidden.
func (h *CatalogHandler) GetFabric(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	var (
		fabric *domain.Fabric
		err    error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		fabric, err = h.catalog.GetFabric(r.Context(), id)
	} else {
		fabric, err = h.catalog.GetFabricBySlug(r.Context(), ref)
	}
	if err == nil && !fabric.IsActive {
		err = repository.ErrFabricNotFound
	}
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get fabric")
		return
	}

	res, err := resolveCurrency(r.Context(), h.currency, r)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to resolve currency")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newFabricView(fabric, res))
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list categories")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.catalog.GetCategory(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get category")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

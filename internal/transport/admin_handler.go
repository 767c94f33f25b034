package transport

import (
	"bufio"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"textile-store/internal/domain"
	"textile-store/internal/middleware"
	"textile-store/internal/repository"
	"textile-store/internal/service"
	"textile-store/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// multipartOverhead is the room left for form boundaries and headers
// around an uploaded image.
const multipartOverhead = 1 << 20

type FabricRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	CategoryID  *string         `json:"category_id" validate:"omitempty,uuid"`
	PriceNGN    decimal.Decimal `json:"price_ngn"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
	Stock       int             `json:"stock" validate:"min=0"`
	IsFeatured  bool            `json:"is_featured"`
	// IsActive defaults to true when omitted.
	IsActive *bool `json:"is_active"`
}

func (req FabricRequest) input() service.FabricInput {
	in := service.FabricInput{
		Name:        req.Name,
		Description: req.Description,
		PriceNGN:    req.PriceNGN,
		PriceUSD:    req.PriceUSD,
		Stock:       req.Stock,
		IsFeatured:  req.IsFeatured,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if req.CategoryID != nil {
		id := uuid.MustParse(*req.CategoryID)
		in.CategoryID = &id
	}
	return in
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

type RemoveImageRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type BulkIDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
}

// BulkFabricRequest sets the given fields on every listed fabric
type BulkFabricRequest struct {
	IDs        []string         `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
	PriceNGN   *decimal.Decimal `json:"price_ngn"`
	PriceUSD   *decimal.Decimal `json:"price_usd"`
	Stock      *int             `json:"stock" validate:"omitempty,min=0"`
	CategoryID *string          `json:"category_id" validate:"omitempty,uuid"`
	IsActive   *bool            `json:"is_active"`
	IsFeatured *bool            `json:"is_featured"`
}

type OrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

type BulkOrderStatusRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
	Status string   `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

type DiscountRequest struct {
	Code       string    `json:"code" validate:"required,max=40"`
	Percentage int       `json:"percentage" validate:"required,min=1,max=100"`
	StartsAt   time.Time `json:"starts_at" validate:"required"`
	ExpiresAt  time.Time `json:"expires_at" validate:"required,gtfield=StartsAt"`
	MaxUses    int       `json:"max_uses" validate:"min=0"`
	Active     *bool     `json:"active"`
}

func (req DiscountRequest) input() service.DiscountInput {
	return service.DiscountInput{
		Code:       req.Code,
		Percentage: req.Percentage,
		StartsAt:   req.StartsAt,
		ExpiresAt:  req.ExpiresAt,
		MaxUses:    req.MaxUses,
		Active:     req.Active == nil || *req.Active,
	}
}

// mustParseIDs converts ids already checked by the uuid validator.
func mustParseIDs(raw []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		ids = append(ids, uuid.MustParse(s))
	}
	return ids
}

// AdminServices groups what the back office drives
type AdminServices struct {
	Catalog   service.CatalogService
	Orders    service.OrderService
	Reviews   service.ReviewService
	Discounts service.DiscountService
	Users     service.UserService
	Admin     service.AdminService
}

// AdminHandler serves the back office under /api/admin
type AdminHandler struct {
	svc    AdminServices
	logger *zap.Logger
}

func NewAdminHandler(svc AdminServices, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the back office behind authentication and the admin
// role check.
func (h *AdminHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin(h.logger))

		r.Get("/stats", h.Stats)
		r.Get("/users", h.ListUsers)

		r.Route("/fabrics", func(r chi.Router) {
			r.Get("/", h.ListFabrics)
			r.Post("/", h.CreateFabric)
			r.Post("/bulk-update", h.BulkUpdateFabrics)
			r.Post("/bulk-delete", h.BulkDeleteFabrics)
			r.Get("/{id}", h.GetFabric)
			r.Put("/{id}", h.UpdateFabric)
			r.Delete("/{id}", h.DeleteFabric)
			r.Post("/{id}/images", h.UploadImage)
			r.Delete("/{id}/images", h.RemoveImage)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Post("/", h.CreateCategory)
			r.Put("/{id}", h.UpdateCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/bulk-status", h.BulkUpdateOrderStatus)
			r.Get("/reference/{reference}", h.GetOrderByReference)
			r.Get("/{id}", h.GetOrder)
			r.Patch("/{id}/status", h.UpdateOrderStatus)
			r.Delete("/{id}", h.DeleteOrder)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", h.ListReviews)
			r.Get("/pending", h.ListPendingReviews)
			r.Post("/{id}/approve", h.ApproveReview)
			r.Delete("/{id}", h.DeleteReview)
		})

		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", h.ListDiscounts)
			r.Post("/", h.CreateDiscount)
			r.Get("/{id}", h.GetDiscount)
			r.Put("/{id}", h.UpdateDiscount)
			r.Delete("/{id}", h.DeleteDiscount)
		})
	})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	threshold := service.DefaultLowStockThreshold
	if raw := r.URL.Query().Get("low_stock"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			middleware.RespondWithError(w, http.StatusBadRequest, "low_stock must be a non-negative integer")
			return
		}
		threshold = n
	}

	stats, err := h.svc.Admin.Stats(r.Context(), threshold)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load dashboard")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "" && role != domain.RoleUser && role != domain.RoleAdmin {
		middleware.RespondWithError(w, http.StatusBadRequest, "role must be user or admin")
		return
	}
	page, pageSize := pagination(r)

	users, total, err := h.svc.Users.ListUsers(r.Context(), role, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list users")
		return
	}
	profiles := make([]UserProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, newUserProfile(u))
	}
	respondList(w, profiles, total, page, pageSize)
}

// ListFabrics lists the whole catalog, inactive fabrics included unless
// active=true is given.
func (h *AdminHandler) ListFabrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := pagination(r)
	filter := repository.FabricFilter{
		Query:      strings.TrimSpace(q.Get("q")),
		Page:       page,
		PageSize:   pageSize,
		SortBy:     q.Get("sort"),
		SortOrder:  repository.SortOrder(strings.ToUpper(q.Get("order"))),
		ActiveOnly: q.Get("active") == "true",
	}
	if raw := q.Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		filter.CategoryID = &id
	}
	if raw := q.Get("max_stock"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid max_stock")
			return
		}
		filter.MaxStock = &n
	}

	fabrics, total, err := h.svc.Catalog.ListFabrics(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list fabrics")
		return
	}
	respondList(w, fabrics, total, page, pageSize)
}

func (h *AdminHandler) GetFabric(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	fabric, err := h.svc.Catalog.GetFabric(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get fabric")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, fabric)
}

func (h *AdminHandler) CreateFabric(w http.ResponseWriter, r *http.Request) {
	var req FabricRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	fabric, err := h.svc.Catalog.CreateFabric(r.Context(), req.input())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create fabric")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, fabric)
}

func (h *AdminHandler) UpdateFabric(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req FabricRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	fabric, err := h.svc.Catalog.UpdateFabric(r.Context(), id, req.input())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update fabric")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, fabric)
}

func (h *AdminHandler) DeleteFabric(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Catalog.DeleteFabric(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete fabric")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage accepts a multipart form with the file in the "image" field.
// The content type is sniffed from the bytes rather than taken from the client.
func (h *AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+multipartOverhead)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondServiceError(w, h.logger, storage.ErrTooLarge, "failed to upload image")
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	buffered := bufio.NewReaderSize(file, 512)
	head, _ := buffered.Peek(512)
	contentType := http.DetectContentType(head)

	fabric, err := h.svc.Catalog.UploadImage(r.Context(), id, buffered, header.Size, contentType)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to upload image")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, fabric)
}

func (h *AdminHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req RemoveImageRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	fabric, err := h.svc.Catalog.RemoveImage(r.Context(), id, req.URL)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to remove image")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, fabric)
}

func (h *AdminHandler) BulkUpdateFabrics(w http.ResponseWriter, r *http.Request) {
	var req BulkFabricRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	patch := repository.FabricPatch{
		PriceNGN:   req.PriceNGN,
		PriceUSD:   req.PriceUSD,
		Stock:      req.Stock,
		IsActive:   req.IsActive,
		IsFeatured: req.IsFeatured,
	}
	if req.CategoryID != nil {
		id := uuid.MustParse(*req.CategoryID)
		patch.CategoryID = &id
	}

	n, err := h.svc.Admin.BulkUpdateFabrics(r.Context(), mustParseIDs(req.IDs), patch)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update fabrics")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *AdminHandler) BulkDeleteFabrics(w http.ResponseWriter, r *http.Request) {
	var req BulkIDsRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	n, err := h.svc.Admin.BulkDeleteFabrics(r.Context(), mustParseIDs(req.IDs))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to delete fabrics")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	category, err := h.svc.Catalog.CreateCategory(r.Context(), service.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create category")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

func (h *AdminHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	category, err := h.svc.Catalog.UpdateCategory(r.Context(), id, service.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update category")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Catalog.DeleteCategory(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	filter := repository.OrderFilter{
		Status:   domain.OrderStatus(r.URL.Query().Get("status")),
		Page:     page,
		PageSize: pageSize,
	}

	orders, total, err := h.svc.Orders.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list orders")
		return
	}
	respondList(w, orders, total, page, pageSize)
}

func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.svc.Orders.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get order")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// GetOrderByReference finds the order quoted in a customer's WhatsApp message.
func (h *AdminHandler) GetOrderByReference(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Orders.GetByReference(r.Context(), strings.ToUpper(chi.URLParam(r, "reference")))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get order")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req OrderStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	order, err := h.svc.Orders.UpdateStatus(r.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update order")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *AdminHandler) BulkUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkOrderStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	n, err := h.svc.Orders.BulkUpdateStatus(r.Context(), mustParseIDs(req.IDs), domain.OrderStatus(req.Status))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update orders")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (h *AdminHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Orders.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	approved, ok := parseBool(q.Get("approved"))
	if !ok {
		middleware.RespondWithError(w, http.StatusBadRequest, "approved must be true or false")
		return
	}

	page, pageSize := pagination(r)
	filter := repository.ReviewFilter{Approved: approved, Page: page, PageSize: pageSize}
	if raw := q.Get("fabric_id"); raw != "" {
		fabricID, err := uuid.Parse(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "fabric_id must be a uuid")
			return
		}
		filter.FabricID = &fabricID
	}

	reviews, total, err := h.svc.Reviews.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list reviews")
		return
	}
	respondList(w, reviews, total, page, pageSize)
}

func (h *AdminHandler) ListPendingReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.svc.Reviews.ListPending(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list reviews")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, reviews)
}

func (h *AdminHandler) ApproveReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Reviews.Approve(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to approve review")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Reviews.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete review")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	codes, err := h.svc.Discounts.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list discount codes")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, codes)
}

func (h *AdminHandler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	code, err := h.svc.Discounts.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get discount code")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, code)
}

func (h *AdminHandler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req DiscountRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	code, err := h.svc.Discounts.Create(r.Context(), req.input())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create discount code")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, code)
}

func (h *AdminHandler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req DiscountRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	code, err := h.svc.Discounts.Update(r.Context(), id, req.input())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update discount code")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, code)
}

func (h *AdminHandler) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Discounts.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete discount code")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

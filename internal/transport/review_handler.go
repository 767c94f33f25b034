package transport

import (
	"net/http"

	"textile-store/internal/middleware"
	"textile-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateReviewRequest struct {
	FabricID string `json:"fabric_id" validate:"required,uuid"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Comment  string `json:"comment" validate:"max=2000"`
}

// ReviewHandler serves approved reviews and accepts new ones
type ReviewHandler struct {
	reviews service.ReviewService
	logger  *zap.Logger
}

func NewReviewHandler(reviews service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

func (h *ReviewHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/reviews", func(r chi.Router) {
		r.Get("/fabric/{fabricID}", h.ListForFabric)
		r.With(authMiddleware).Post("/", h.Create)
	})
}

func (h *ReviewHandler) ListForFabric(w http.ResponseWriter, r *http.Request) {
	fabricID, ok := pathUUID(w, r, "fabricID")
	if !ok {
		return
	}

	reviews, err := h.reviews.ListForFabric(r.Context(), fabricID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list reviews")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, reviews)
}

// Create stores a review; it appears publicly once an admin approves it.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req CreateReviewRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	review, err := h.reviews.Create(r.Context(), userID, uuid.MustParse(req.FabricID), req.Rating, req.Comment)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to save review")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, review)
}

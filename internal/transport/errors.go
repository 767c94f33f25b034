package transport

import (
	"errors"
	"net/http"

	"textile-store/internal/middleware"
	"textile-store/internal/pricing"
	"textile-store/internal/repository"
	"textile-store/internal/service"
	"textile-store/internal/storage"

	"go.uber.org/zap"
)

type errorStatus struct {
	err    error
	status int
}

// errorStatuses maps the sentinel errors a handler may see to the status
// and message the client receives. The first match wins.
var errorStatuses = []errorStatus{
	{repository.ErrUserNotFound, http.StatusNotFound},
	{repository.ErrCategoryNotFound, http.StatusNotFound},
	{repository.ErrFabricNotFound, http.StatusNotFound},
	{repository.ErrCartItemNotFound, http.StatusNotFound},
	{repository.ErrDiscountNotFound, http.StatusNotFound},
	{repository.ErrOrderNotFound, http.StatusNotFound},
	{repository.ErrReviewNotFound, http.StatusNotFound},
	{service.ErrImageNotFound, http.StatusNotFound},

	{repository.ErrUserAlreadyExists, http.StatusConflict},
	{repository.ErrCategoryAlreadyExists, http.StatusConflict},
	{repository.ErrFabricSlugTaken, http.StatusConflict},
	{repository.ErrDiscountExists, http.StatusConflict},
	{repository.ErrReviewExists, http.StatusConflict},
	{repository.ErrDiscountExhausted, http.StatusConflict},
	{repository.ErrInsufficientStock, http.StatusConflict},
	{service.ErrQuantityExceedsStock, http.StatusConflict},
	{service.ErrFabricUnavailable, http.StatusConflict},

	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrInvalidToken, http.StatusUnauthorized},
	{service.ErrTokenExpired, http.StatusUnauthorized},
	{service.ErrInvalidLink, http.StatusUnauthorized},

	{storage.ErrTooLarge, http.StatusRequestEntityTooLarge},
	{storage.ErrUnsupportedType, http.StatusUnsupportedMediaType},

	{service.ErrCheckoutDisabled, http.StatusServiceUnavailable},

	{storage.ErrEmpty, http.StatusBadRequest},
	{pricing.ErrUnknownCurrency, http.StatusBadRequest},
	{repository.ErrEmptyFabricPatch, http.StatusBadRequest},
	{repository.ErrUnknownFabricFilter, http.StatusBadRequest},
	{service.ErrInvalidPrice, http.StatusUnprocessableEntity},
	{service.ErrInvalidStock, http.StatusUnprocessableEntity},
	{service.ErrInvalidName, http.StatusUnprocessableEntity},
	{service.ErrInvalidQuantity, http.StatusUnprocessableEntity},
	{service.ErrEmptyCart, http.StatusUnprocessableEntity},
	{service.ErrMissingCustomer, http.StatusUnprocessableEntity},
	{service.ErrInvalidDiscount, http.StatusUnprocessableEntity},
	{service.ErrDiscountInactive, http.StatusUnprocessableEntity},
	{service.ErrDiscountExpired, http.StatusUnprocessableEntity},
	{service.ErrInvalidRating, http.StatusUnprocessableEntity},
	{service.ErrCommentTooLong, http.StatusUnprocessableEntity},
	{service.ErrInvalidStatus, http.StatusUnprocessableEntity},
}

// respondServiceError writes the client-facing form of err. Errors with no
// mapping are logged and reported as a 500 carrying fallback.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var missing *service.MissingIDsError
	if errors.As(err, &missing) {
		middleware.RespondWithErrorDetails(w, http.StatusNotFound, missing.Kind.Error(), map[string]any{
			"ids": missing.IDs,
		})
		return
	}

	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			middleware.RespondWithError(w, m.status, m.err.Error())
			return
		}
	}

	logger.Error(fallback, zap.Error(err))
	middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
}

package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/logging"
)

// writeServiceError maps service-layer errors to HTTP responses. Storage
// failures surface as 503 so callers know the privacy core failed closed
// rather than completed without its audit trail.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	message := logging.SanitizeError(err)

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		_ = ErrorResponse(w, http.StatusBadRequest, "validation_failed", message)
	case errors.Is(err, apperrors.ErrSelfReview):
		_ = ErrorResponse(w, http.StatusForbidden, "self_review_forbidden", message)
	case errors.Is(err, apperrors.ErrForbidden):
		_ = ErrorResponse(w, http.StatusForbidden, "forbidden", message)
	case errors.Is(err, apperrors.ErrGrantRequired):
		_ = ErrorResponse(w, http.StatusForbidden, "grant_required", message)
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", message)
	case errors.Is(err, apperrors.ErrStateConflict):
		_ = ErrorResponse(w, http.StatusConflict, "state_conflict", message)
	case errors.Is(err, apperrors.ErrStorage):
		logger.Error("Storage failure", zap.String("error", message))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "storage_unavailable", "Operation failed; no data was disclosed")
	default:
		logger.Error("Unhandled service error", zap.String("error", message))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

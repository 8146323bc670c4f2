package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/auth"
	"github.com/digikawsay/kawsay-engine/pkg/models"
	"github.com/digikawsay/kawsay-engine/pkg/services"
)

// defaultSummaryDays is the audit summary window when none is given.
const defaultSummaryDays = 30

// AuditHandler exposes read access to the audit log.
type AuditHandler struct {
	service services.AuditService
	logger  *zap.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(service services.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger.Named("audit-handler"),
	}
}

// RegisterRoutes registers the audit routes on the given mux.
func (h *AuditHandler) RegisterRoutes(mux *http.ServeMux, protect Middleware) {
	mux.HandleFunc("GET /api/audit", protect(h.List))
	mux.HandleFunc("GET /api/audit/summary", protect(h.Summary))
}

// List handles GET /api/audit.
// Supports query parameters: action, actor, limit, offset.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	filter := models.AuditFilter{
		Action:      r.URL.Query().Get("action"),
		ActorUserID: r.URL.Query().Get("actor"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
			return
		}
		filter.Offset = offset
	}

	entries, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response := map[string]interface{}{"entries": entries}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Summary handles GET /api/audit/summary?days=N.
func (h *AuditHandler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	days := defaultSummaryDays
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_days", "days must be an integer")
			return
		}
		days = parsed
	}

	summary, err := h.service.Summary(r.Context(), actor, days)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, summary); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

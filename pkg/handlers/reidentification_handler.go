package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/auth"
	"github.com/digikawsay/kawsay-engine/pkg/services"
)

// ReidentificationHandler exposes the reidentification approval workflow.
type ReidentificationHandler struct {
	service services.ReidentificationService
	logger  *zap.Logger
}

// NewReidentificationHandler creates a new ReidentificationHandler.
func NewReidentificationHandler(service services.ReidentificationService, logger *zap.Logger) *ReidentificationHandler {
	return &ReidentificationHandler{
		service: service,
		logger:  logger.Named("reidentification-handler"),
	}
}

// RegisterRoutes registers the reidentification routes on the given mux.
func (h *ReidentificationHandler) RegisterRoutes(mux *http.ServeMux, protect Middleware) {
	mux.HandleFunc("POST /api/reidentification/requests", protect(h.CreateRequest))
	mux.HandleFunc("GET /api/reidentification/pending", protect(h.ListPending))
	mux.HandleFunc("POST /api/reidentification/requests/{rid}/review", protect(h.Review))
	mux.HandleFunc("POST /api/reidentification/requests/{rid}/resolve", protect(h.Resolve))
}

type createRequestBody struct {
	PseudonymID   string `json:"pseudonym_id"`
	ReasonCode    string `json:"reason_code"`
	Justification string `json:"justification"`
}

// CreateRequest handles POST /api/reidentification/requests.
func (h *ReidentificationHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	request, err := h.service.CreateRequest(r.Context(), actor, body.PseudonymID, body.ReasonCode, body.Justification)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, request); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListPending handles GET /api/reidentification/pending.
func (h *ReidentificationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	requests, err := h.service.ListPending(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response := map[string]interface{}{"requests": requests}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type reviewRequestBody struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// Review handles POST /api/reidentification/requests/{rid}/review.
func (h *ReidentificationHandler) Review(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}
	requestID, ok := ParseRequestID(w, r, h.logger)
	if !ok {
		return
	}

	var body reviewRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	request, err := h.service.Review(r.Context(), actor, requestID, body.Approve, body.Notes)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, request); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Resolve handles POST /api/reidentification/requests/{rid}/resolve.
func (h *ReidentificationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}
	requestID, ok := ParseRequestID(w, r, h.logger)
	if !ok {
		return
	}

	identity, err := h.service.Resolve(r.Context(), actor, requestID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, identity); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

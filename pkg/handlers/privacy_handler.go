// Package handlers contains the HTTP layer of the privacy core. Handlers
// decode requests, resolve the acting user from JWT claims, delegate to
// services and map errors to status codes. No business rules live here.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/auth"
	"github.com/digikawsay/kawsay-engine/pkg/services"
)

// Middleware wraps a handler with authentication and tenant scoping.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// PrivacyHandler exposes pseudonymization, suppression and vault erasure.
type PrivacyHandler struct {
	pseudonymization services.PseudonymizationService
	suppression      services.SuppressionService
	vault            services.VaultService
	logger           *zap.Logger
}

// NewPrivacyHandler creates a new PrivacyHandler.
func NewPrivacyHandler(
	pseudonymization services.PseudonymizationService,
	suppression services.SuppressionService,
	vault services.VaultService,
	logger *zap.Logger,
) *PrivacyHandler {
	return &PrivacyHandler{
		pseudonymization: pseudonymization,
		suppression:      suppression,
		vault:            vault,
		logger:           logger.Named("privacy-handler"),
	}
}

// RegisterRoutes registers the privacy routes on the given mux.
func (h *PrivacyHandler) RegisterRoutes(mux *http.ServeMux, protect Middleware) {
	mux.HandleFunc("POST /api/privacy/pseudonymize", protect(h.Pseudonymize))
	mux.HandleFunc("POST /api/privacy/transcripts/{tid}/pseudonymize", protect(h.PseudonymizeTranscript))
	mux.HandleFunc("POST /api/privacy/campaigns/{cid}/suppress", protect(h.RunSuppression))
	mux.HandleFunc("GET /api/privacy/campaigns/{cid}/suppression-status", protect(h.SuppressionStatus))
	mux.HandleFunc("GET /api/privacy/campaigns/{cid}/insights", protect(h.ListInsights))
	mux.HandleFunc("GET /api/privacy/mappings/{pid}", protect(h.GetMapping))
	mux.HandleFunc("DELETE /api/privacy/mappings/{pid}", protect(h.DeleteMapping))
}

type pseudonymizeRequest struct {
	CampaignID string `json:"campaign_id"`
	Text       string `json:"text"`
}

// Pseudonymize handles POST /api/privacy/pseudonymize.
func (h *PrivacyHandler) Pseudonymize(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req pseudonymizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	result, err := h.pseudonymization.Pseudonymize(r.Context(), actor.TenantID, req.CampaignID, req.Text)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// PseudonymizeTranscript handles POST /api/privacy/transcripts/{tid}/pseudonymize.
func (h *PrivacyHandler) PseudonymizeTranscript(w http.ResponseWriter, r *http.Request) {
	transcriptID := r.PathValue("tid")
	if transcriptID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_transcript_id", "Transcript ID is required")
		return
	}

	transcript, replaced, err := h.pseudonymization.PseudonymizeTranscript(r.Context(), transcriptID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response := map[string]interface{}{
		"transcript":   transcript,
		"replacements": replaced,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RunSuppression handles POST /api/privacy/campaigns/{cid}/suppress.
func (h *PrivacyHandler) RunSuppression(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}
	campaignID, ok := ParseCampaignID(w, r, h.logger)
	if !ok {
		return
	}

	counts, err := h.suppression.Run(r.Context(), actor, campaignID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, counts); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SuppressionStatus handles GET /api/privacy/campaigns/{cid}/suppression-status.
func (h *PrivacyHandler) SuppressionStatus(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := ParseCampaignID(w, r, h.logger)
	if !ok {
		return
	}

	counts, err := h.suppression.Status(r.Context(), campaignID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, counts); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListInsights handles GET /api/privacy/campaigns/{cid}/insights.
func (h *PrivacyHandler) ListInsights(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}
	campaignID, ok := ParseCampaignID(w, r, h.logger)
	if !ok {
		return
	}

	insights, err := h.suppression.VisibleInsights(r.Context(), actor, campaignID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response := map[string]interface{}{"insights": insights}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetMapping handles GET /api/privacy/mappings/{pid}.
// Returns mapping metadata only; never the original value.
func (h *PrivacyHandler) GetMapping(w http.ResponseWriter, r *http.Request) {
	pseudonymID, ok := ParsePseudonymID(w, r, h.logger)
	if !ok {
		return
	}

	mapping, err := h.vault.GetMapping(r.Context(), pseudonymID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, mapping); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// DeleteMapping handles DELETE /api/privacy/mappings/{pid}.
func (h *PrivacyHandler) DeleteMapping(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}
	pseudonymID, ok := ParsePseudonymID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.vault.DeleteMapping(r.Context(), actor, pseudonymID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

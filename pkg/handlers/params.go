package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/models"
)

// ParseRequestID extracts and validates the reidentification request ID from
// the request path. Returns the parsed UUID and true on success, or uuid.Nil
// and false on error (after writing an error response).
// Expects path parameter: rid
func ParseRequestID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue("rid")
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request_id", "Invalid request ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// ParseCampaignID extracts the campaign ID from the request path.
// Expects path parameter: cid
func ParseCampaignID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	campaignID := r.PathValue("cid")
	if campaignID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_campaign_id", "Campaign ID is required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return campaignID, true
}

// ParsePseudonymID extracts and validates the pseudonym token from the
// request path. Expects path parameter: pid
func ParsePseudonymID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	pseudonymID := r.PathValue("pid")
	if !models.IsValidPseudonymID(pseudonymID) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_pseudonym_id", "Invalid pseudonym ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return pseudonymID, true
}

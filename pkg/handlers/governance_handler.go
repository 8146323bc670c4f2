package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/auth"
)

// GovernanceHandler reports what the acting user's role permits. The UI uses
// this to hide controls the backend would reject anyway; enforcement always
// happens server side.
type GovernanceHandler struct {
	logger *zap.Logger
}

// NewGovernanceHandler creates a new GovernanceHandler.
func NewGovernanceHandler(logger *zap.Logger) *GovernanceHandler {
	return &GovernanceHandler{logger: logger.Named("governance-handler")}
}

// RegisterRoutes registers the governance routes on the given mux.
func (h *GovernanceHandler) RegisterRoutes(mux *http.ServeMux, protect Middleware) {
	mux.HandleFunc("GET /api/governance/permissions", protect(h.Permissions))
}

// Permissions handles GET /api/governance/permissions.
func (h *GovernanceHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	response := map[string]interface{}{
		"role": actor.Role,
		"permissions": map[string]bool{
			"request_reidentification": auth.CanRequestReidentification(actor.Role),
			"review_reidentification":  auth.CanReview(actor.Role),
			"resolve_reidentification": auth.CanResolve(actor.Role),
			"view_suppressed":          auth.CanViewSuppressed(actor.Role),
			"view_audit":               auth.CanViewAudit(actor.Role),
			"erase_mappings":           auth.CanErase(actor.Role),
			"run_suppression":          auth.CanRunSuppression(actor.Role),
		},
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

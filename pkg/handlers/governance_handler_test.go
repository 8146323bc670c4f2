package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/models"
)

func TestPermissionsEndpoint(t *testing.T) {
	h := NewGovernanceHandler(zap.NewNop())

	analyst := models.Actor{ID: "user-2", Role: models.RoleAnalyst, TenantID: "tenant-1"}
	r := withActor(httptest.NewRequest(http.MethodGet, "/api/governance/permissions", nil), analyst)
	recorder := serveWithRoutes(h.RegisterRoutes, r)

	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Role        string          `json:"role"`
		Permissions map[string]bool `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, models.RoleAnalyst, response.Role)
	assert.False(t, response.Permissions["request_reidentification"])
	assert.False(t, response.Permissions["view_audit"])
}

func TestPermissionsEndpoint_SecurityOfficer(t *testing.T) {
	h := NewGovernanceHandler(zap.NewNop())

	r := withActor(httptest.NewRequest(http.MethodGet, "/api/governance/permissions", nil), testActor)
	recorder := serveWithRoutes(h.RegisterRoutes, r)

	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Permissions map[string]bool `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.True(t, response.Permissions["resolve_reidentification"])
	assert.True(t, response.Permissions["view_suppressed"])
	assert.False(t, response.Permissions["erase_mappings"])
}

func TestPermissionsEndpoint_Unauthenticated(t *testing.T) {
	h := NewGovernanceHandler(zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/api/governance/permissions", nil)
	recorder := serveWithRoutes(h.RegisterRoutes, r)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

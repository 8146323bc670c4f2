package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/models"
)

func TestAuditListEndpoint(t *testing.T) {
	stub := &stubAuditService{
		listFn: func(ctx context.Context, actor models.Actor, filter models.AuditFilter) ([]*models.AuditLogEntry, error) {
			assert.Equal(t, models.AuditActionReidentificationResolve, filter.Action)
			assert.Equal(t, "user-9", filter.ActorUserID)
			assert.Equal(t, 50, filter.Limit)
			assert.Equal(t, 10, filter.Offset)
			return []*models.AuditLogEntry{{Action: filter.Action, ActorUserID: filter.ActorUserID, Success: true}}, nil
		},
	}
	h := NewAuditHandler(stub, zap.NewNop())

	url := "/api/audit?action=reidentification_resolve&actor=user-9&limit=50&offset=10"
	r := withActor(httptest.NewRequest(http.MethodGet, url, nil), testActor)
	recorder := serveWithRoutes(h.RegisterRoutes, r)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"entries"`)
}

func TestAuditListEndpoint_BadLimit(t *testing.T) {
	h := NewAuditHandler(&stubAuditService{}, zap.NewNop())

	r := withActor(httptest.NewRequest(http.MethodGet, "/api/audit?limit=abc", nil), testActor)
	recorder := serveWithRoutes(h.RegisterRoutes, r)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAuditListEndpoint_Forbidden(t *testing.T) {
	stub := &stubAuditService{
		listFn: func(ctx context.Context, actor models.Actor, filter models.AuditFilter) ([]*models.AuditLogEntry, error) {
			return nil, fmt.Errorf("%w: role denied", apperrors.ErrForbidden)
		},
	}
	h := NewAuditHandler(stub, zap.NewNop())

	r := withActor(httptest.NewRequest(http.MethodGet, "/api/audit", nil), testActor)
	recorder := serveWithRoutes(h.RegisterRoutes, r)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestAuditSummaryEndpoint(t *testing.T) {
	stub := &stubAuditService{
		summaryFn: func(ctx context.Context, actor models.Actor, days int) (*models.AuditSummary, error) {
			assert.Equal(t, 7, days)
			return &models.AuditSummary{Days: days, Total: 12}, nil
		},
	}
	h := NewAuditHandler(stub, zap.NewNop())

	r := withActor(httptest.NewRequest(http.MethodGet, "/api/audit/summary?days=7", nil), testActor)
	recorder := serveWithRoutes(h.RegisterRoutes, r)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"total":12`)
}

func TestAuditSummaryEndpoint_DefaultDays(t *testing.T) {
	stub := &stubAuditService{
		summaryFn: func(ctx context.Context, actor models.Actor, days int) (*models.AuditSummary, error) {
			assert.Equal(t, defaultSummaryDays, days)
			return &models.AuditSummary{Days: days}, nil
		},
	}
	h := NewAuditHandler(stub, zap.NewNop())

	r := withActor(httptest.NewRequest(http.MethodGet, "/api/audit/summary", nil), testActor)
	recorder := serveWithRoutes(h.RegisterRoutes, r)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

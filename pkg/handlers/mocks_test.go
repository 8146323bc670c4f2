package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/digikawsay/kawsay-engine/pkg/auth"
	"github.com/digikawsay/kawsay-engine/pkg/models"
	"github.com/digikawsay/kawsay-engine/pkg/services"
)

// Stub services with function fields so each test controls behavior.

type stubPseudonymizationService struct {
	pseudonymizeFn           func(ctx context.Context, tenantID, campaignID, text string) (*services.PseudonymizationResult, error)
	pseudonymizeTranscriptFn func(ctx context.Context, transcriptID string) (*models.Transcript, int, error)
}

func (s *stubPseudonymizationService) Pseudonymize(ctx context.Context, tenantID, campaignID, text string) (*services.PseudonymizationResult, error) {
	return s.pseudonymizeFn(ctx, tenantID, campaignID, text)
}

func (s *stubPseudonymizationService) PseudonymizeTranscript(ctx context.Context, transcriptID string) (*models.Transcript, int, error) {
	return s.pseudonymizeTranscriptFn(ctx, transcriptID)
}

type stubSuppressionService struct {
	runFn     func(ctx context.Context, actor models.Actor, campaignID string) (*models.SuppressionCounts, error)
	statusFn  func(ctx context.Context, campaignID string) (*models.SuppressionCounts, error)
	visibleFn func(ctx context.Context, actor models.Actor, campaignID string) ([]*models.Insight, error)
}

func (s *stubSuppressionService) Evaluate(sourceCount int) bool { return sourceCount < 5 }

func (s *stubSuppressionService) Run(ctx context.Context, actor models.Actor, campaignID string) (*models.SuppressionCounts, error) {
	return s.runFn(ctx, actor, campaignID)
}

func (s *stubSuppressionService) Status(ctx context.Context, campaignID string) (*models.SuppressionCounts, error) {
	return s.statusFn(ctx, campaignID)
}

func (s *stubSuppressionService) VisibleInsights(ctx context.Context, actor models.Actor, campaignID string) ([]*models.Insight, error) {
	return s.visibleFn(ctx, actor, campaignID)
}

type stubVaultService struct {
	getMappingFn    func(ctx context.Context, pseudonymID string) (*models.PseudonymMapping, error)
	deleteMappingFn func(ctx context.Context, actor models.Actor, pseudonymID string) error
}

func (s *stubVaultService) CreateMapping(ctx context.Context, tenantID, campaignID string, entityType models.EntityType, value string) (*models.PseudonymMapping, error) {
	return nil, nil
}

func (s *stubVaultService) GetMapping(ctx context.Context, pseudonymID string) (*models.PseudonymMapping, error) {
	return s.getMappingFn(ctx, pseudonymID)
}

func (s *stubVaultService) ResolveIdentity(ctx context.Context, grant services.ResolveGrant) (string, error) {
	return "", nil
}

func (s *stubVaultService) DeleteMapping(ctx context.Context, actor models.Actor, pseudonymID string) error {
	return s.deleteMappingFn(ctx, actor, pseudonymID)
}

type stubReidentificationService struct {
	createFn      func(ctx context.Context, actor models.Actor, pseudonymID, reasonCode, justification string) (*models.ReidentificationRequest, error)
	listPendingFn func(ctx context.Context, actor models.Actor) ([]*models.ReidentificationRequest, error)
	reviewFn      func(ctx context.Context, actor models.Actor, requestID uuid.UUID, approve bool, notes string) (*models.ReidentificationRequest, error)
	resolveFn     func(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*services.DisclosedIdentity, error)
}

func (s *stubReidentificationService) CreateRequest(ctx context.Context, actor models.Actor, pseudonymID, reasonCode, justification string) (*models.ReidentificationRequest, error) {
	return s.createFn(ctx, actor, pseudonymID, reasonCode, justification)
}

func (s *stubReidentificationService) ListPending(ctx context.Context, actor models.Actor) ([]*models.ReidentificationRequest, error) {
	return s.listPendingFn(ctx, actor)
}

func (s *stubReidentificationService) Review(ctx context.Context, actor models.Actor, requestID uuid.UUID, approve bool, notes string) (*models.ReidentificationRequest, error) {
	return s.reviewFn(ctx, actor, requestID, approve, notes)
}

func (s *stubReidentificationService) Resolve(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*services.DisclosedIdentity, error) {
	return s.resolveFn(ctx, actor, requestID)
}

type stubAuditService struct {
	listFn    func(ctx context.Context, actor models.Actor, filter models.AuditFilter) ([]*models.AuditLogEntry, error)
	summaryFn func(ctx context.Context, actor models.Actor, days int) (*models.AuditSummary, error)
}

func (s *stubAuditService) Log(ctx context.Context, entry *models.AuditLogEntry) error { return nil }

func (s *stubAuditService) List(ctx context.Context, actor models.Actor, filter models.AuditFilter) ([]*models.AuditLogEntry, error) {
	return s.listFn(ctx, actor, filter)
}

func (s *stubAuditService) Summary(ctx context.Context, actor models.Actor, days int) (*models.AuditSummary, error) {
	return s.summaryFn(ctx, actor, days)
}

// withActor attaches JWT claims for the given actor to the request context,
// the way the auth middleware would.
func withActor(r *http.Request, actor models.Actor) *http.Request {
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: actor.ID},
		TenantID:         actor.TenantID,
		Role:             actor.Role,
	}
	ctx := context.WithValue(r.Context(), auth.ClaimsKey, claims)
	return r.WithContext(ctx)
}

// serveWithRoutes runs a request through a mux with the handler's routes
// registered behind a pass-through middleware.
func serveWithRoutes(register func(mux *http.ServeMux, protect Middleware), r *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	register(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, r)
	return recorder
}

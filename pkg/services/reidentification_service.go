package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/audit"
	"github.com/digikawsay/kawsay-engine/pkg/auth"
	"github.com/digikawsay/kawsay-engine/pkg/detect"
	"github.com/digikawsay/kawsay-engine/pkg/models"
	"github.com/digikawsay/kawsay-engine/pkg/repositories"
)

// minJustificationLength is the minimum number of characters a requester must
// provide to justify a reidentification request.
const minJustificationLength = 10

// disclosureWarning accompanies every resolved identity.
const disclosureWarning = "This disclosure has been permanently recorded in the audit log."

// ReidentificationService runs the approval workflow that gates reversing a
// pseudonym back to an identity. Every decision point, successful or not, is
// written to the audit log; the final disclosure is only made after its audit
// entry has been committed.
type ReidentificationService interface {
	// CreateRequest opens a pending reidentification request.
	CreateRequest(ctx context.Context, actor models.Actor, pseudonymID, reasonCode, justification string) (*models.ReidentificationRequest, error)

	// ListPending returns requests awaiting review.
	ListPending(ctx context.Context, actor models.Actor) ([]*models.ReidentificationRequest, error)

	// Review approves or denies a request. The requester can never review
	// their own request, and under dual control the two approvals must come
	// from different reviewers.
	Review(ctx context.Context, actor models.Actor, requestID uuid.UUID, approve bool, notes string) (*models.ReidentificationRequest, error)

	// Resolve discloses the identity behind an approved, unexpired request.
	Resolve(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*DisclosedIdentity, error)
}

type reidentificationService struct {
	requiredApprovals int
	approvalTTL       time.Duration
	repo              repositories.ReidentificationRepository
	auditRepo         repositories.AuditRepository
	vault             VaultService
	detectors         []detect.Detector
	security          *audit.SecurityAuditor
	logger            *zap.Logger
}

// NewReidentificationService creates a new ReidentificationService.
// requiredApprovals is 1 for single distinct-reviewer approval or 2 for dual
// control. detectors screen request justifications for embedded PII.
func NewReidentificationService(
	requiredApprovals int,
	approvalTTL time.Duration,
	repo repositories.ReidentificationRepository,
	auditRepo repositories.AuditRepository,
	vault VaultService,
	detectors []detect.Detector,
	security *audit.SecurityAuditor,
	logger *zap.Logger,
) ReidentificationService {
	return &reidentificationService{
		requiredApprovals: requiredApprovals,
		approvalTTL:       approvalTTL,
		repo:              repo,
		auditRepo:         auditRepo,
		vault:             vault,
		detectors:         detectors,
		security:          security,
		logger:            logger.Named("reidentification-service"),
	}
}

var _ ReidentificationService = (*reidentificationService)(nil)

func (s *reidentificationService) CreateRequest(ctx context.Context, actor models.Actor, pseudonymID, reasonCode, justification string) (*models.ReidentificationRequest, error) {
	if !auth.CanRequestReidentification(actor.Role) {
		return nil, fmt.Errorf("%w: role %s cannot request reidentification", apperrors.ErrForbidden, actor.Role)
	}
	if !models.IsValidPseudonymID(pseudonymID) {
		return nil, fmt.Errorf("%w: malformed pseudonym ID", apperrors.ErrValidation)
	}
	if !models.IsValidReasonCode(reasonCode) {
		return nil, fmt.Errorf("%w: unknown reason code %q", apperrors.ErrValidation, reasonCode)
	}
	if len(justification) < minJustificationLength {
		return nil, fmt.Errorf("%w: justification must be at least %d characters", apperrors.ErrValidation, minJustificationLength)
	}
	if s.justificationContainsPII(justification) {
		return nil, fmt.Errorf("%w: justification must not contain personal data; refer to pseudonyms instead", apperrors.ErrValidation)
	}

	// The pseudonym must exist; requests against erased or unknown tokens
	// are rejected up front.
	if _, err := s.vault.GetMapping(ctx, pseudonymID); err != nil {
		return nil, err
	}

	request := &models.ReidentificationRequest{
		TenantID:      actor.TenantID,
		PseudonymID:   pseudonymID,
		ReasonCode:    reasonCode,
		Justification: justification,
		RequestedBy:   actor.ID,
		Status:        models.RequestStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", apperrors.ErrStorage, err)
	}

	entry := s.auditEntry(actor, models.AuditActionReidentificationRequest, request.ID.String(), true, map[string]any{
		"pseudonym_id": pseudonymID,
		"reason_code":  reasonCode,
	})
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to audit reidentification request", zap.Error(err), zap.String("request_id", request.ID.String()))
		return nil, fmt.Errorf("%w: audit write failed", apperrors.ErrStorage)
	}

	return request, nil
}

func (s *reidentificationService) ListPending(ctx context.Context, actor models.Actor) ([]*models.ReidentificationRequest, error) {
	if !auth.CanReview(actor.Role) {
		return nil, fmt.Errorf("%w: role %s cannot review reidentification requests", apperrors.ErrForbidden, actor.Role)
	}
	requests, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list pending requests: %v", apperrors.ErrStorage, err)
	}
	return requests, nil
}

func (s *reidentificationService) Review(ctx context.Context, actor models.Actor, requestID uuid.UUID, approve bool, notes string) (*models.ReidentificationRequest, error) {
	if !auth.CanReview(actor.Role) {
		s.auditFailure(ctx, actor, models.AuditActionReidentificationApprove, requestID.String(), "role_denied")
		return nil, fmt.Errorf("%w: role %s cannot review reidentification requests", apperrors.ErrForbidden, actor.Role)
	}

	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to load request: %v", apperrors.ErrStorage, err)
	}

	if actor.ID == request.RequestedBy {
		s.auditFailure(ctx, actor, models.AuditActionReidentificationApprove, requestID.String(), "self_review")
		return nil, apperrors.ErrSelfReview
	}

	if request.Status != models.RequestStatusPending && request.Status != models.RequestStatusFirstApproved {
		s.auditFailure(ctx, actor, models.AuditActionReidentificationApprove, requestID.String(), "invalid_state")
		return nil, fmt.Errorf("%w: request is %s", apperrors.ErrStateConflict, request.Status)
	}

	expectedStatus := request.Status
	now := time.Now()

	switch {
	case !approve:
		request.Status = models.RequestStatusDenied
		if expectedStatus == models.RequestStatusFirstApproved {
			request.SecondReviewedBy = &actor.ID
			request.SecondReviewNotes = &notes
			request.SecondReviewedAt = &now
		} else {
			request.ReviewedBy = &actor.ID
			request.ReviewNotes = &notes
			request.ReviewedAt = &now
		}

	case expectedStatus == models.RequestStatusPending:
		request.ReviewedBy = &actor.ID
		request.ReviewNotes = &notes
		request.ReviewedAt = &now
		if s.requiredApprovals >= 2 {
			request.Status = models.RequestStatusFirstApproved
		} else {
			request.Status = models.RequestStatusApproved
			expiresAt := now.Add(s.approvalTTL)
			request.ExpiresAt = &expiresAt
		}

	default: // second approval under dual control
		if request.ReviewedBy != nil && *request.ReviewedBy == actor.ID {
			s.auditFailure(ctx, actor, models.AuditActionReidentificationApprove, requestID.String(), "duplicate_reviewer")
			return nil, fmt.Errorf("%w: second approval requires a different reviewer", apperrors.ErrForbidden)
		}
		request.Status = models.RequestStatusApproved
		request.SecondReviewedBy = &actor.ID
		request.SecondReviewNotes = &notes
		request.SecondReviewedAt = &now
		expiresAt := now.Add(s.approvalTTL)
		request.ExpiresAt = &expiresAt
	}

	if err := s.repo.UpdateReview(ctx, request, expectedStatus); err != nil {
		if errors.Is(err, apperrors.ErrStateConflict) {
			s.auditFailure(ctx, actor, models.AuditActionReidentificationApprove, requestID.String(), "concurrent_update")
			return nil, apperrors.ErrStateConflict
		}
		return nil, fmt.Errorf("%w: failed to update request: %v", apperrors.ErrStorage, err)
	}

	entry := s.auditEntry(actor, models.AuditActionReidentificationApprove, requestID.String(), true, map[string]any{
		"approved":   approve,
		"new_status": request.Status,
	})
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to audit review decision", zap.Error(err), zap.String("request_id", requestID.String()))
		return nil, fmt.Errorf("%w: audit write failed", apperrors.ErrStorage)
	}

	return request, nil
}

func (s *reidentificationService) Resolve(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*DisclosedIdentity, error) {
	if !auth.CanResolve(actor.Role) {
		s.auditFailure(ctx, actor, models.AuditActionReidentificationResolve, requestID.String(), "role_denied")
		return nil, fmt.Errorf("%w: role %s cannot resolve reidentification requests", apperrors.ErrForbidden, actor.Role)
	}

	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to load request: %v", apperrors.ErrStorage, err)
	}

	if request.Status != models.RequestStatusApproved {
		s.auditFailure(ctx, actor, models.AuditActionReidentificationResolve, requestID.String(), "not_approved")
		return nil, fmt.Errorf("%w: request is %s, not approved", apperrors.ErrStateConflict, request.Status)
	}

	if request.ExpiresAt != nil && time.Now().After(*request.ExpiresAt) {
		if err := s.repo.MarkExpired(ctx, requestID); err != nil && !errors.Is(err, apperrors.ErrStateConflict) {
			s.logger.Error("Failed to mark request expired", zap.Error(err), zap.String("request_id", requestID.String()))
		}
		s.auditFailure(ctx, actor, models.AuditActionReidentificationResolve, requestID.String(), "approval_expired")
		return nil, fmt.Errorf("%w: approval has expired", apperrors.ErrStateConflict)
	}

	mapping, err := s.vault.GetMapping(ctx, request.PseudonymID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.auditFailure(ctx, actor, models.AuditActionReidentificationResolve, requestID.String(), "mapping_erased")
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	now := time.Now()
	request.ResolvedBy = &actor.ID
	request.ResolvedAt = &now

	entry := s.auditEntry(actor, models.AuditActionReidentificationResolve, requestID.String(), true, map[string]any{
		"pseudonym_id": request.PseudonymID,
		"reason_code":  request.ReasonCode,
		"requested_by": request.RequestedBy,
	})

	// Status flip and disclosure audit commit together; if either fails the
	// identity is not disclosed.
	if err := s.repo.ResolveWithAudit(ctx, request, entry); err != nil {
		if errors.Is(err, apperrors.ErrStateConflict) {
			s.auditFailure(ctx, actor, models.AuditActionReidentificationResolve, requestID.String(), "concurrent_update")
			return nil, apperrors.ErrStateConflict
		}
		return nil, fmt.Errorf("%w: failed to resolve request: %v", apperrors.ErrStorage, err)
	}

	grant := newResolveGrant(request.ID, request.PseudonymID)
	value, err := s.vault.ResolveIdentity(ctx, grant)
	if err != nil {
		return nil, err
	}
	s.security.LogIdentityDisclosure(actor, requestID.String())

	return &DisclosedIdentity{
		PseudonymID: request.PseudonymID,
		EntityType:  mapping.EntityType,
		Value:       value,
		Warning:     disclosureWarning,
	}, nil
}

// justificationContainsPII screens free text with the same detectors the
// pseudonymization engine uses. Justifications must refer to pseudonyms, not
// to the people behind them.
func (s *reidentificationService) justificationContainsPII(justification string) bool {
	// Spans inside pseudonym tokens are not PII; the token alphabet can trip
	// the digit heuristics.
	tokens := pseudonymTokenRe.FindAllStringIndex(justification, -1)
	insideToken := func(start, end int) bool {
		for _, loc := range tokens {
			if start >= loc[0] && end <= loc[1] {
				return true
			}
		}
		return false
	}

	for _, d := range s.detectors {
		spans, err := d.Detect(justification)
		if err != nil {
			continue
		}
		for _, span := range spans {
			if !insideToken(span.Start, span.End) {
				return true
			}
		}
	}
	return false
}

func (s *reidentificationService) auditEntry(actor models.Actor, action, resourceID string, success bool, details map[string]any) *models.AuditLogEntry {
	return &models.AuditLogEntry{
		TenantID:     actor.TenantID,
		ActorUserID:  actor.ID,
		ActorRole:    actor.Role,
		Action:       action,
		ResourceType: models.AuditResourceReidentification,
		ResourceID:   resourceID,
		Details:      details,
		Success:      success,
	}
}

// auditFailure records a denied or invalid attempt. Failures to write these
// entries are logged but do not mask the original error.
func (s *reidentificationService) auditFailure(ctx context.Context, actor models.Actor, action, resourceID, reason string) {
	s.security.LogAccessDenied(actor, resourceID, reason)
	entry := s.auditEntry(actor, action, resourceID, false, map[string]any{"reason": reason})
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to audit denied attempt",
			zap.Error(err),
			zap.String("action", action),
			zap.String("resource_id", resourceID))
	}
}

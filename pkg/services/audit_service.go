package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/auth"
	"github.com/digikawsay/kawsay-engine/pkg/models"
	"github.com/digikawsay/kawsay-engine/pkg/repositories"
)

// maxAuditPageSize caps one page of audit log results.
const maxAuditPageSize = 500

// AuditService provides read access to the append-only audit log and a
// write path for other services and pipelines recording sensitive access.
type AuditService interface {
	// Log appends an audit entry.
	Log(ctx context.Context, entry *models.AuditLogEntry) error

	// List returns audit entries matching the filter, newest first.
	List(ctx context.Context, actor models.Actor, filter models.AuditFilter) ([]*models.AuditLogEntry, error)

	// Summary aggregates audit activity over the trailing number of days.
	Summary(ctx context.Context, actor models.Actor, days int) (*models.AuditSummary, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Log(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.Action == "" || entry.ActorUserID == "" {
		return fmt.Errorf("%w: audit entry requires action and actor", apperrors.ErrValidation)
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to write audit entry", zap.Error(err), zap.String("action", entry.Action))
		return fmt.Errorf("%w: audit write failed", apperrors.ErrStorage)
	}
	return nil
}

func (s *auditService) List(ctx context.Context, actor models.Actor, filter models.AuditFilter) ([]*models.AuditLogEntry, error) {
	if !auth.CanViewAudit(actor.Role) {
		return nil, fmt.Errorf("%w: role %s cannot view the audit log", apperrors.ErrForbidden, actor.Role)
	}
	if filter.Limit < 0 || filter.Limit > maxAuditPageSize {
		return nil, fmt.Errorf("%w: limit must be between 0 and %d", apperrors.ErrValidation, maxAuditPageSize)
	}
	if filter.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", apperrors.ErrValidation)
	}

	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list audit entries: %v", apperrors.ErrStorage, err)
	}
	return entries, nil
}

func (s *auditService) Summary(ctx context.Context, actor models.Actor, days int) (*models.AuditSummary, error) {
	if !auth.CanViewAudit(actor.Role) {
		return nil, fmt.Errorf("%w: role %s cannot view the audit log", apperrors.ErrForbidden, actor.Role)
	}
	if days < 1 || days > 365 {
		return nil, fmt.Errorf("%w: days must be between 1 and 365", apperrors.ErrValidation)
	}

	summary, err := s.repo.Summary(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to summarize audit log: %v", apperrors.ErrStorage, err)
	}
	return summary, nil
}

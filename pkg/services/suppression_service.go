package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/auth"
	"github.com/digikawsay/kawsay-engine/pkg/models"
	"github.com/digikawsay/kawsay-engine/pkg/repositories"
)

// suppressionCacheTTL bounds how stale cached suppression counts can get.
const suppressionCacheTTL = 5 * time.Minute

// SuppressionService enforces k-anonymity over campaign insights: any insight
// backed by fewer distinct sources than the configured minimum group size is
// suppressed from ordinary views.
type SuppressionService interface {
	// Evaluate reports whether an insight with the given source count must be
	// suppressed. The threshold is strict: exactly the minimum is visible.
	Evaluate(sourceCount int) bool

	// Run re-evaluates every insight in a campaign and updates suppressed
	// flags. The run is audited and the resulting counts are cached.
	Run(ctx context.Context, actor models.Actor, campaignID string) (*models.SuppressionCounts, error)

	// Status returns suppression counts for a campaign, served from cache
	// when fresh.
	Status(ctx context.Context, campaignID string) (*models.SuppressionCounts, error)

	// VisibleInsights returns the insights the actor may see. Roles without
	// the suppressed-view capability receive the filtered set as if the
	// suppressed records did not exist.
	VisibleInsights(ctx context.Context, actor models.Actor, campaignID string) ([]*models.Insight, error)
}

type suppressionService struct {
	minGroupSize int
	insightRepo  repositories.InsightRepository
	auditRepo    repositories.AuditRepository
	cache        *redis.Client
	logger       *zap.Logger
}

// NewSuppressionService creates a new SuppressionService. cache may be nil,
// in which case counts are always computed from the database.
func NewSuppressionService(
	minGroupSize int,
	insightRepo repositories.InsightRepository,
	auditRepo repositories.AuditRepository,
	cache *redis.Client,
	logger *zap.Logger,
) SuppressionService {
	return &suppressionService{
		minGroupSize: minGroupSize,
		insightRepo:  insightRepo,
		auditRepo:    auditRepo,
		cache:        cache,
		logger:       logger.Named("suppression-service"),
	}
}

var _ SuppressionService = (*suppressionService)(nil)

func (s *suppressionService) Evaluate(sourceCount int) bool {
	return sourceCount < s.minGroupSize
}

func (s *suppressionService) Run(ctx context.Context, actor models.Actor, campaignID string) (*models.SuppressionCounts, error) {
	if !auth.CanRunSuppression(actor.Role) {
		return nil, fmt.Errorf("%w: role %s cannot run suppression", apperrors.ErrForbidden, actor.Role)
	}
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaign_id must not be empty", apperrors.ErrValidation)
	}

	insights, err := s.insightRepo.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list insights: %v", apperrors.ErrStorage, err)
	}

	counts := &models.SuppressionCounts{Total: len(insights)}
	for _, insight := range insights {
		suppressed := s.Evaluate(insight.SourceCount)
		if suppressed {
			counts.Suppressed++
		} else {
			counts.Visible++
		}
		if suppressed == insight.Suppressed {
			continue
		}
		if err := s.insightRepo.SetSuppressed(ctx, insight.ID.String(), suppressed); err != nil {
			return nil, fmt.Errorf("%w: failed to update suppression flag: %v", apperrors.ErrStorage, err)
		}
	}

	s.cacheCounts(ctx, actor.TenantID, campaignID, counts)

	entry := &models.AuditLogEntry{
		TenantID:     actor.TenantID,
		ActorUserID:  actor.ID,
		ActorRole:    actor.Role,
		Action:       models.AuditActionSuppressionRun,
		ResourceType: models.AuditResourceCampaign,
		ResourceID:   campaignID,
		Details: map[string]any{
			"min_group_size": s.minGroupSize,
			"total":          counts.Total,
			"visible":        counts.Visible,
			"suppressed":     counts.Suppressed,
		},
		Success: true,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to audit suppression run", zap.Error(err), zap.String("campaign_id", campaignID))
		return nil, fmt.Errorf("%w: audit write failed", apperrors.ErrStorage)
	}

	s.logger.Info("Suppression run complete",
		zap.String("campaign_id", campaignID),
		zap.Int("total", counts.Total),
		zap.Int("suppressed", counts.Suppressed))

	return counts, nil
}

func (s *suppressionService) Status(ctx context.Context, campaignID string) (*models.SuppressionCounts, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaign_id must not be empty", apperrors.ErrValidation)
	}

	actor, _ := auth.ActorFromContext(ctx)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, suppressionCacheKey(actor.TenantID, campaignID)).Result()
		if err == nil {
			var counts models.SuppressionCounts
			if err := json.Unmarshal([]byte(cached), &counts); err == nil {
				return &counts, nil
			}
		}
	}

	counts, err := s.insightRepo.Counts(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count insights: %v", apperrors.ErrStorage, err)
	}

	s.cacheCounts(ctx, actor.TenantID, campaignID, counts)
	return counts, nil
}

func (s *suppressionService) VisibleInsights(ctx context.Context, actor models.Actor, campaignID string) ([]*models.Insight, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaign_id must not be empty", apperrors.ErrValidation)
	}

	if auth.CanViewSuppressed(actor.Role) {
		insights, err := s.insightRepo.ListByCampaign(ctx, campaignID)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list insights: %v", apperrors.ErrStorage, err)
		}
		return insights, nil
	}

	insights, err := s.insightRepo.ListVisible(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list insights: %v", apperrors.ErrStorage, err)
	}
	return insights, nil
}

// cacheCounts best-effort writes counts to the cache. Cache failures are
// logged and ignored; the database remains the source of truth.
func (s *suppressionService) cacheCounts(ctx context.Context, tenantID, campaignID string, counts *models.SuppressionCounts) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(counts)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, suppressionCacheKey(tenantID, campaignID), payload, suppressionCacheTTL).Err(); err != nil {
		s.logger.Warn("Failed to cache suppression counts", zap.Error(err))
	}
}

func suppressionCacheKey(tenantID, campaignID string) string {
	return fmt.Sprintf("suppression:%s:%s", tenantID, campaignID)
}

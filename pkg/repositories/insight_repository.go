package repositories

import (
	"context"
	"fmt"

	"github.com/digikawsay/kawsay-engine/pkg/database"
	"github.com/digikawsay/kawsay-engine/pkg/models"
)

// InsightRepository provides read and suppression-flag access to insights.
// Insight content is owned by the insight pipeline; this core only reads
// source_count and maintains the suppressed flag.
type InsightRepository interface {
	// ListByCampaign returns all insights for a campaign, suppressed or not.
	ListByCampaign(ctx context.Context, campaignID string) ([]*models.Insight, error)

	// ListVisible returns only insights that are not suppressed.
	ListVisible(ctx context.Context, campaignID string) ([]*models.Insight, error)

	// SetSuppressed updates the suppressed flag on one insight.
	SetSuppressed(ctx context.Context, insightID string, suppressed bool) error

	// Counts returns total, visible and suppressed counts for a campaign.
	Counts(ctx context.Context, campaignID string) (*models.SuppressionCounts, error)
}

type insightRepository struct{}

// NewInsightRepository creates a new InsightRepository.
func NewInsightRepository() InsightRepository {
	return &insightRepository{}
}

var _ InsightRepository = (*insightRepository)(nil)

const insightColumns = `id, tenant_id, campaign_id, title, summary, source_count, suppressed, updated_at`

func (r *insightRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*models.Insight, error) {
	return r.list(ctx, `
		SELECT `+insightColumns+`
		FROM insights
		WHERE campaign_id = $1
		ORDER BY updated_at DESC`, campaignID)
}

func (r *insightRepository) ListVisible(ctx context.Context, campaignID string) ([]*models.Insight, error) {
	return r.list(ctx, `
		SELECT `+insightColumns+`
		FROM insights
		WHERE campaign_id = $1 AND NOT suppressed
		ORDER BY updated_at DESC`, campaignID)
}

func (r *insightRepository) list(ctx context.Context, query string, campaignID string) ([]*models.Insight, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer rows.Close()

	var insights []*models.Insight
	for rows.Next() {
		var insight models.Insight
		err := rows.Scan(
			&insight.ID,
			&insight.TenantID,
			&insight.CampaignID,
			&insight.Title,
			&insight.Summary,
			&insight.SourceCount,
			&insight.Suppressed,
			&insight.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		insights = append(insights, &insight)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating insights: %w", err)
	}

	return insights, nil
}

func (r *insightRepository) SetSuppressed(ctx context.Context, insightID string, suppressed bool) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `UPDATE insights SET suppressed = $1, updated_at = NOW() WHERE id = $2`
	if _, err := scope.Conn.Exec(ctx, query, suppressed, insightID); err != nil {
		return fmt.Errorf("failed to update suppressed flag: %w", err)
	}
	return nil
}

func (r *insightRepository) Counts(ctx context.Context, campaignID string) (*models.SuppressionCounts, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT suppressed), COUNT(*) FILTER (WHERE suppressed)
		FROM insights
		WHERE campaign_id = $1`

	var counts models.SuppressionCounts
	err := scope.Conn.QueryRow(ctx, query, campaignID).Scan(&counts.Total, &counts.Visible, &counts.Suppressed)
	if err != nil {
		return nil, fmt.Errorf("failed to count insights: %w", err)
	}
	return &counts, nil
}

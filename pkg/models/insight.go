package models

import (
	"time"

	"github.com/google/uuid"
)

// Insight is an aggregated finding derived from pseudonymized transcripts.
// The record itself is owned by the insight pipeline; this core only reads
// source_count and derives the suppressed flag. Suppressed is recomputable
// at any time and carries no history.
type Insight struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	CampaignID  string    `json:"campaign_id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	SourceCount int       `json:"source_count"`
	Suppressed  bool      `json:"suppressed"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SuppressionCounts summarizes a suppression run over a campaign.
type SuppressionCounts struct {
	Total      int `json:"total_insights"`
	Visible    int `json:"visible_insights"`
	Suppressed int `json:"suppressed_insights"`
}

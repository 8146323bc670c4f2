package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction values recorded by the privacy core.
const (
	AuditActionReidentificationRequest = "reidentification_request"
	AuditActionReidentificationApprove = "reidentification_approve"
	AuditActionReidentificationResolve = "reidentification_resolve"
	AuditActionViewTranscript          = "view_transcript"
	AuditActionExportData              = "export_data"
	AuditActionDataDeleted             = "data_deleted"
	AuditActionSuppressionRun          = "suppression_run"
)

// AuditResourceType values for the resource_type column.
const (
	AuditResourceReidentification = "reidentification"
	AuditResourceVaultMapping     = "vault_mapping"
	AuditResourceCampaign         = "campaign"
	AuditResourceTranscript       = "transcript"
)

// AuditLogEntry is one append-only record of a privacy-sensitive access.
// Entries are never mutated or deleted by this core; retention is an
// external policy concern. Stored in audit_log table.
type AuditLogEntry struct {
	ID           uuid.UUID      `json:"id"`
	TenantID     string         `json:"tenant_id"`
	ActorUserID  string         `json:"actor_user_id"`
	ActorRole    string         `json:"actor_role"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      map[string]any `json:"details,omitempty"`
	Success      bool           `json:"success"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	Action      string
	ActorUserID string
	Limit       int
	Offset      int
}

// AuditActionCount is one row of an audit summary.
type AuditActionCount struct {
	Action   string `json:"action"`
	Count    int    `json:"count"`
	Failures int    `json:"failures"`
}

// AuditSummary aggregates audit activity over a trailing window.
type AuditSummary struct {
	Days     int                `json:"days"`
	Total    int                `json:"total"`
	ByAction []AuditActionCount `json:"by_action"`
}

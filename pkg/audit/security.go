// Package audit provides security event logging for SIEM consumption.
// These events mirror the database audit log for the subset of actions a
// security team wants alerting on; the audit_log table remains the record
// of truth.
package audit

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/models"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventAccessDenied is logged when a role or self-review check rejects
	// a privacy operation.
	EventAccessDenied SecurityEventType = "access_denied"
	// EventIdentityDisclosure is logged when a reidentification resolve
	// discloses an identity.
	EventIdentityDisclosure SecurityEventType = "identity_disclosure"
	// EventVaultErasure is logged when a vault mapping is erased.
	EventVaultErasure SecurityEventType = "vault_erasure"
)

// SecurityEvent represents an auditable security event with all relevant
// context for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  SecurityEventType `json:"event_type"`
	TenantID   string            `json:"tenant_id"`
	UserID     string            `json:"user_id"`
	Role       string            `json:"role"`
	ResourceID string            `json:"resource_id,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Severity   string            `json:"severity"` // info, warning, critical
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogAccessDenied records a rejected privacy operation. Logged at WARN level;
// repeated denials for one actor are an alerting signal.
func (a *SecurityAuditor) LogAccessDenied(actor models.Actor, resourceID, reason string) {
	a.log("Privacy operation denied", SecurityEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  EventAccessDenied,
		TenantID:   actor.TenantID,
		UserID:     actor.ID,
		Role:       actor.Role,
		ResourceID: resourceID,
		Reason:     reason,
		Severity:   "warning",
	})
}

// LogIdentityDisclosure records a completed reidentification resolve.
// Logged at WARN level so every disclosure is visible in monitoring.
func (a *SecurityAuditor) LogIdentityDisclosure(actor models.Actor, requestID string) {
	a.log("Identity disclosed", SecurityEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  EventIdentityDisclosure,
		TenantID:   actor.TenantID,
		UserID:     actor.ID,
		Role:       actor.Role,
		ResourceID: requestID,
		Severity:   "critical",
	})
}

// LogVaultErasure records a compliance-driven vault deletion.
func (a *SecurityAuditor) LogVaultErasure(actor models.Actor, pseudonymID string) {
	a.log("Vault mapping erased", SecurityEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  EventVaultErasure,
		TenantID:   actor.TenantID,
		UserID:     actor.ID,
		Role:       actor.Role,
		ResourceID: pseudonymID,
		Severity:   "info",
	})
}

func (a *SecurityAuditor) log(message string, event SecurityEvent) {
	// Serialize event to JSON for SIEM ingestion.
	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	fields := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(event.EventType)),
		zap.String("tenant_id", event.TenantID),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	}

	switch event.Severity {
	case "critical", "warning":
		a.logger.Warn(message, fields...)
	default:
		a.logger.Info(message, fields...)
	}
}

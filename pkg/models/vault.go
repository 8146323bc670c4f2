package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType classifies a detected PII span.
type EntityType string

const (
	EntityTypeEmail   EntityType = "email"
	EntityTypePhone   EntityType = "phone"
	EntityTypeName    EntityType = "name"
	EntityTypeAddress EntityType = "address"
	EntityTypeOther   EntityType = "other"
)

// PseudonymIDPattern matches well-formed pseudonym tokens. The token alphabet
// (uppercase hex behind the P- prefix) is chosen so that tokens never match
// any entity detector, which makes re-pseudonymization a no-op.
var PseudonymIDPattern = regexp.MustCompile(`^P-[0-9A-F]{8}$`)

// PseudonymMapping is the vault's authoritative pseudonym -> identity record.
// The original value is stored encrypted and only ever leaves the vault
// through an approved reidentification resolve. Stored in pii_vault table.
//
// Exactly one mapping exists per distinct (value, campaign, type) within a
// tenant; the storage layer enforces this with a unique constraint over the
// value digest so concurrent creates converge to a single pseudonym.
type PseudonymMapping struct {
	PseudonymID    string     `json:"pseudonym_id"`
	TenantID       string     `json:"tenant_id"`
	CampaignID     string     `json:"campaign_id"`
	EntityType     EntityType `json:"entity_type"`
	EncryptedValue string     `json:"-"`
	ValueDigest    string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewPseudonymID generates a fresh pseudonym token.
func NewPseudonymID() string {
	return "P-" + strings.ToUpper(uuid.NewString()[:8])
}

// IsValidPseudonymID reports whether s is a well-formed pseudonym token.
func IsValidPseudonymID(s string) bool {
	return PseudonymIDPattern.MatchString(s)
}

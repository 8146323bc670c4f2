package models

import (
	"time"

	"github.com/google/uuid"
)

// Reidentification request status values. denied, resolved and expired are
// terminal; first_approved only occurs under the dual-control policy.
const (
	RequestStatusPending       = "pending"
	RequestStatusFirstApproved = "first_approved"
	RequestStatusApproved      = "approved"
	RequestStatusDenied        = "denied"
	RequestStatusResolved      = "resolved"
	RequestStatusExpired       = "expired"
)

// Reason codes for requesting reidentification.
const (
	ReasonSafetyConcern   = "safety_concern"
	ReasonLegalCompliance = "legal_compliance"
	ReasonExplicitConsent = "explicit_consent"
	ReasonDataCorrection  = "data_correction"
)

// ValidReasonCodes contains all accepted reason codes.
var ValidReasonCodes = []string{
	ReasonSafetyConcern, ReasonLegalCompliance,
	ReasonExplicitConsent, ReasonDataCorrection,
}

// IsValidReasonCode checks if the given reason code is valid.
func IsValidReasonCode(code string) bool {
	for _, c := range ValidReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}

// ReidentificationRequest tracks the two-person-rule workflow that gates
// reversing a pseudonym back to an identity. Stored in
// reidentification_requests table.
type ReidentificationRequest struct {
	ID            uuid.UUID `json:"id"`
	TenantID      string    `json:"tenant_id"`
	PseudonymID   string    `json:"pseudonym_id"`
	ReasonCode    string    `json:"reason_code"`
	Justification string    `json:"justification"`
	RequestedBy   string    `json:"requested_by"`
	Status        string    `json:"status"`

	ReviewedBy  *string    `json:"reviewed_by,omitempty"`
	ReviewNotes *string    `json:"review_notes,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`

	// Second reviewer, set only under the dual-control policy.
	SecondReviewedBy  *string    `json:"second_reviewed_by,omitempty"`
	SecondReviewNotes *string    `json:"second_review_notes,omitempty"`
	SecondReviewedAt  *time.Time `json:"second_reviewed_at,omitempty"`

	ResolvedBy *string    `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// ExpiresAt is set when the request reaches approved; an approved
	// request past this point can no longer be resolved.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsTerminal reports whether the request can no longer change state.
func (r *ReidentificationRequest) IsTerminal() bool {
	switch r.Status {
	case RequestStatusDenied, RequestStatusResolved, RequestStatusExpired:
		return true
	}
	return false
}

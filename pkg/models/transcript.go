package models

import "time"

// Message roles within a transcript.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message is a single turn in a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript is the stored conversation for one session. Owned by the
// session pipeline; this core only rewrites message content during
// pseudonymization and flips IsPseudonymized. Once the flag is set the
// stored text contains pseudonym tokens only.
type Transcript struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	CampaignID      string     `json:"campaign_id"`
	SessionID       string     `json:"session_id"`
	Messages        []Message  `json:"messages"`
	IsPseudonymized bool       `json:"is_pseudonymized"`
	PseudonymizedAt *time.Time `json:"pseudonymized_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

package logging

import (
	"regexp"
)

const (
	// MaxSnippetLogLength is the maximum length of a text snippet to log
	MaxSnippetLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match email addresses
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// Pattern to match phone-like digit runs (with optional separators)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9()\-.\s]{6,}[0-9]`)

	// Pattern to match national identity document numbers (7-11 digits)
	documentPattern = regexp.MustCompile(`\b[0-9]{7,11}\b`)

	// Pattern to match potential passwords in connection strings
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// SanitizeText removes PII-shaped substrings from free text before logging.
// Log output must never become a side channel for values the vault protects,
// so anything email-, phone- or document-shaped is redacted wholesale.
func SanitizeText(text string) string {
	if text == "" {
		return ""
	}

	sanitized := emailPattern.ReplaceAllString(text, RedactedText)
	sanitized = phonePattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = documentPattern.ReplaceAllString(sanitized, RedactedText)

	if len(sanitized) > MaxSnippetLogLength {
		sanitized = sanitized[:MaxSnippetLogLength] + "..."
	}

	return sanitized
}

// SanitizeError sanitizes error messages that might contain sensitive data.
// Use this before logging any error from vault or detector operations.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	sanitized := emailPattern.ReplaceAllString(errStr, RedactedText)
	sanitized = phonePattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

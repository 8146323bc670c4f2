package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/database"
	"github.com/digikawsay/kawsay-engine/pkg/models"
)

// TranscriptRepository provides access to stored session transcripts.
// The session pipeline owns transcript creation; this core only reads them
// and rewrites message content during pseudonymization.
type TranscriptRepository interface {
	// GetByID returns a transcript by ID, or apperrors.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Transcript, error)

	// UpdateMessages replaces the stored messages and marks the transcript
	// pseudonymized.
	UpdateMessages(ctx context.Context, id string, messages []models.Message) error
}

type transcriptRepository struct{}

// NewTranscriptRepository creates a new TranscriptRepository.
func NewTranscriptRepository() TranscriptRepository {
	return &transcriptRepository{}
}

var _ TranscriptRepository = (*transcriptRepository)(nil)

func (r *transcriptRepository) GetByID(ctx context.Context, id string) (*models.Transcript, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, tenant_id, campaign_id, session_id, messages, is_pseudonymized, pseudonymized_at, created_at
		FROM transcripts
		WHERE id = $1`

	var transcript models.Transcript
	var messagesJSON []byte
	err := scope.Conn.QueryRow(ctx, query, id).Scan(
		&transcript.ID,
		&transcript.TenantID,
		&transcript.CampaignID,
		&transcript.SessionID,
		&messagesJSON,
		&transcript.IsPseudonymized,
		&transcript.PseudonymizedAt,
		&transcript.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	if len(messagesJSON) > 0 {
		if err := json.Unmarshal(messagesJSON, &transcript.Messages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transcript messages: %w", err)
		}
	}

	return &transcript, nil
}

func (r *transcriptRepository) UpdateMessages(ctx context.Context, id string, messages []models.Message) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript messages: %w", err)
	}

	query := `
		UPDATE transcripts
		SET messages = $1, is_pseudonymized = TRUE, pseudonymized_at = $2
		WHERE id = $3`

	tag, err := scope.Conn.Exec(ctx, query, messagesJSON, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update transcript messages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/database"
	"github.com/digikawsay/kawsay-engine/pkg/models"
)

// ReidentificationRepository provides data access for the
// reidentification_requests table.
type ReidentificationRepository interface {
	// Create inserts a new request in pending state.
	Create(ctx context.Context, request *models.ReidentificationRequest) error

	// GetByID returns a request by ID, or apperrors.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReidentificationRequest, error)

	// ListPending returns requests awaiting review (pending or
	// first_approved), oldest first.
	ListPending(ctx context.Context) ([]*models.ReidentificationRequest, error)

	// UpdateReview transitions a request out of review. The update is guarded
	// on the expected current status; apperrors.ErrStateConflict is returned
	// if the row was concurrently moved to another state.
	UpdateReview(ctx context.Context, request *models.ReidentificationRequest, expectedStatus string) error

	// MarkExpired flips an approved request to expired. Guarded the same way
	// as UpdateReview.
	MarkExpired(ctx context.Context, id uuid.UUID) error

	// ResolveWithAudit atomically transitions an approved request to resolved
	// and writes the disclosure audit entry in the same transaction. If the
	// audit write fails the status flip rolls back, so a disclosure can never
	// happen without its audit record.
	ResolveWithAudit(ctx context.Context, request *models.ReidentificationRequest, entry *models.AuditLogEntry) error
}

type reidentificationRepository struct{}

// NewReidentificationRepository creates a new ReidentificationRepository.
func NewReidentificationRepository() ReidentificationRepository {
	return &reidentificationRepository{}
}

var _ ReidentificationRepository = (*reidentificationRepository)(nil)

const reidentificationColumns = `id, tenant_id, pseudonym_id, reason_code, justification, requested_by, status,
		reviewed_by, review_notes, reviewed_at, second_reviewed_by, second_review_notes, second_reviewed_at,
		resolved_by, resolved_at, expires_at, created_at`

func (r *reidentificationRepository) Create(ctx context.Context, request *models.ReidentificationRequest) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO reidentification_requests (
			id, tenant_id, pseudonym_id, reason_code, justification, requested_by, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := scope.Conn.Exec(ctx, query,
		request.ID,
		request.TenantID,
		request.PseudonymID,
		request.ReasonCode,
		request.Justification,
		request.RequestedBy,
		request.Status,
		request.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reidentification request: %w", err)
	}

	return nil
}

func (r *reidentificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReidentificationRequest, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + reidentificationColumns + `
		FROM reidentification_requests
		WHERE id = $1`

	request, err := scanReidentificationRequest(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return request, nil
}

func (r *reidentificationRepository) ListPending(ctx context.Context) ([]*models.ReidentificationRequest, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + reidentificationColumns + `
		FROM reidentification_requests
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC`

	rows, err := scope.Conn.Query(ctx, query, models.RequestStatusPending, models.RequestStatusFirstApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.ReidentificationRequest
	for rows.Next() {
		request, err := scanReidentificationRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending requests: %w", err)
	}

	return requests, nil
}

func (r *reidentificationRepository) UpdateReview(ctx context.Context, request *models.ReidentificationRequest, expectedStatus string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE reidentification_requests
		SET status = $1,
		    reviewed_by = $2,
		    review_notes = $3,
		    reviewed_at = $4,
		    second_reviewed_by = $5,
		    second_review_notes = $6,
		    second_reviewed_at = $7,
		    expires_at = $8
		WHERE id = $9 AND status = $10`

	tag, err := scope.Conn.Exec(ctx, query,
		request.Status,
		request.ReviewedBy,
		request.ReviewNotes,
		request.ReviewedAt,
		request.SecondReviewedBy,
		request.SecondReviewNotes,
		request.SecondReviewedAt,
		request.ExpiresAt,
		request.ID,
		expectedStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update reidentification request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStateConflict
	}
	return nil
}

func (r *reidentificationRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE reidentification_requests
		SET status = $1
		WHERE id = $2 AND status = $3`

	tag, err := scope.Conn.Exec(ctx, query, models.RequestStatusExpired, id, models.RequestStatusApproved)
	if err != nil {
		return fmt.Errorf("failed to expire reidentification request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStateConflict
	}
	return nil
}

func (r *reidentificationRepository) ResolveWithAudit(ctx context.Context, request *models.ReidentificationRequest, entry *models.AuditLogEntry) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin resolve transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updateQuery := `
		UPDATE reidentification_requests
		SET status = $1, resolved_by = $2, resolved_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, updateQuery,
		models.RequestStatusResolved,
		request.ResolvedBy,
		request.ResolvedAt,
		request.ID,
		models.RequestStatusApproved,
	)
	if err != nil {
		return fmt.Errorf("failed to mark request resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStateConflict
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var detailsJSON []byte
	if len(entry.Details) > 0 {
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	auditQuery := `
		INSERT INTO audit_log (
			id, tenant_id, actor_user_id, actor_role, action, resource_type, resource_id, details, success, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.Exec(ctx, auditQuery,
		entry.ID,
		entry.TenantID,
		entry.ActorUserID,
		entry.ActorRole,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		detailsJSON,
		entry.Success,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write disclosure audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit resolve transaction: %w", err)
	}

	request.Status = models.RequestStatusResolved
	return nil
}

func scanReidentificationRequest(row pgx.Row) (*models.ReidentificationRequest, error) {
	var request models.ReidentificationRequest
	err := row.Scan(
		&request.ID,
		&request.TenantID,
		&request.PseudonymID,
		&request.ReasonCode,
		&request.Justification,
		&request.RequestedBy,
		&request.Status,
		&request.ReviewedBy,
		&request.ReviewNotes,
		&request.ReviewedAt,
		&request.SecondReviewedBy,
		&request.SecondReviewNotes,
		&request.SecondReviewedAt,
		&request.ResolvedBy,
		&request.ResolvedAt,
		&request.ExpiresAt,
		&request.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan reidentification request: %w", err)
	}
	return &request, nil
}

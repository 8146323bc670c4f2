// Package repositories provides pgx-backed data access for the privacy core.
// Every repository reads the tenant scope from context; row level security
// on the scoped connection enforces tenant isolation.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/digikawsay/kawsay-engine/pkg/database"
	"github.com/digikawsay/kawsay-engine/pkg/models"
)

// AuditRepository provides data access for the append-only audit log.
// There is no update or delete; entries are immutable once written.
type AuditRepository interface {
	// Create inserts a new audit log entry.
	Create(ctx context.Context, entry *models.AuditLogEntry) error

	// List returns audit log entries matching the filter, newest first.
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLogEntry, error)

	// Summary aggregates entries per action over the trailing number of days.
	Summary(ctx context.Context, days int) (*models.AuditSummary, error)
}

type auditRepository struct{}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var detailsJSON []byte
	var err error
	if len(entry.Details) > 0 {
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_log (
			id, tenant_id, actor_user_id, actor_role, action, resource_type, resource_id, details, success, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = scope.Conn.Exec(ctx, query,
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
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}

	return nil
}

func (r *auditRepository) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLogEntry, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, tenant_id, actor_user_id, actor_role, action, resource_type, resource_id, details, success, created_at
		FROM audit_log
		WHERE ($1 = '' OR action = $1)
		  AND ($2 = '' OR actor_user_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := scope.Conn.Query(ctx, query, filter.Action, filter.ActorUserID, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log entries: %w", err)
	}

	return entries, nil
}

func (r *auditRepository) Summary(ctx context.Context, days int) (*models.AuditSummary, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT action, COUNT(*), COUNT(*) FILTER (WHERE NOT success)
		FROM audit_log
		WHERE created_at >= NOW() - ($1 || ' days')::interval
		GROUP BY action
		ORDER BY COUNT(*) DESC`

	rows, err := scope.Conn.Query(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit summary: %w", err)
	}
	defer rows.Close()

	summary := &models.AuditSummary{Days: days}
	for rows.Next() {
		var count models.AuditActionCount
		if err := rows.Scan(&count.Action, &count.Count, &count.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan audit summary row: %w", err)
		}
		summary.ByAction = append(summary.ByAction, count)
		summary.Total += count.Count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit summary rows: %w", err)
	}

	return summary, nil
}

func scanAuditLogEntry(row pgx.Row) (*models.AuditLogEntry, error) {
	var entry models.AuditLogEntry
	var detailsJSON []byte

	err := row.Scan(
		&entry.ID,
		&entry.TenantID,
		&entry.ActorUserID,
		&entry.ActorRole,
		&entry.Action,
		&entry.ResourceType,
		&entry.ResourceID,
		&detailsJSON,
		&entry.Success,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
	}

	if len(detailsJSON) > 0 && string(detailsJSON) != "null" {
		if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}
	}

	return &entry, nil
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/database"
	"github.com/digikawsay/kawsay-engine/pkg/models"
)

// VaultRepository provides data access for the pii_vault table.
//
// The table carries UNIQUE(tenant_id, campaign_id, entity_type, value_digest),
// which is what makes pseudonym assignment deterministic under concurrency:
// the first insert wins and everyone else reads the winner back.
type VaultRepository interface {
	// Create inserts a new mapping. If a mapping for the same
	// (campaign, entity type, digest) already exists, the existing row is
	// returned instead and the generated pseudonym is discarded.
	Create(ctx context.Context, mapping *models.PseudonymMapping) (*models.PseudonymMapping, error)

	// GetByDigest looks up a mapping by its value digest.
	GetByDigest(ctx context.Context, campaignID string, entityType models.EntityType, digest string) (*models.PseudonymMapping, error)

	// GetByPseudonym looks up a mapping by pseudonym token.
	GetByPseudonym(ctx context.Context, pseudonymID string) (*models.PseudonymMapping, error)

	// Delete removes a mapping. Returns apperrors.ErrNotFound if no row
	// matched.
	Delete(ctx context.Context, pseudonymID string) error
}

type vaultRepository struct{}

// NewVaultRepository creates a new VaultRepository.
func NewVaultRepository() VaultRepository {
	return &vaultRepository{}
}

var _ VaultRepository = (*vaultRepository)(nil)

const vaultColumns = `pseudonym_id, tenant_id, campaign_id, entity_type, encrypted_value, value_digest, created_at`

func (r *vaultRepository) Create(ctx context.Context, mapping *models.PseudonymMapping) (*models.PseudonymMapping, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO pii_vault (` + vaultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, campaign_id, entity_type, value_digest) DO NOTHING`

	tag, err := scope.Conn.Exec(ctx, query,
		mapping.PseudonymID,
		mapping.TenantID,
		mapping.CampaignID,
		mapping.EntityType,
		mapping.EncryptedValue,
		mapping.ValueDigest,
		mapping.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault mapping: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return mapping, nil
	}

	// Lost the insert race; read back whichever mapping won.
	existing, err := r.GetByDigest(ctx, mapping.CampaignID, mapping.EntityType, mapping.ValueDigest)
	if err != nil {
		return nil, fmt.Errorf("failed to read back existing vault mapping: %w", err)
	}
	return existing, nil
}

func (r *vaultRepository) GetByDigest(ctx context.Context, campaignID string, entityType models.EntityType, digest string) (*models.PseudonymMapping, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + vaultColumns + `
		FROM pii_vault
		WHERE campaign_id = $1 AND entity_type = $2 AND value_digest = $3`

	mapping, err := scanVaultMapping(scope.Conn.QueryRow(ctx, query, campaignID, entityType, digest))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return mapping, nil
}

func (r *vaultRepository) GetByPseudonym(ctx context.Context, pseudonymID string) (*models.PseudonymMapping, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + vaultColumns + `
		FROM pii_vault
		WHERE pseudonym_id = $1`

	mapping, err := scanVaultMapping(scope.Conn.QueryRow(ctx, query, pseudonymID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return mapping, nil
}

func (r *vaultRepository) Delete(ctx context.Context, pseudonymID string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM pii_vault WHERE pseudonym_id = $1`, pseudonymID)
	if err != nil {
		return fmt.Errorf("failed to delete vault mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanVaultMapping(row pgx.Row) (*models.PseudonymMapping, error) {
	var mapping models.PseudonymMapping
	err := row.Scan(
		&mapping.PseudonymID,
		&mapping.TenantID,
		&mapping.CampaignID,
		&mapping.EntityType,
		&mapping.EncryptedValue,
		&mapping.ValueDigest,
		&mapping.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan vault mapping: %w", err)
	}
	return &mapping, nil
}

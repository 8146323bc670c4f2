// Package services contains the business logic of the privacy core. Services
// validate input, enforce role capabilities, write audit entries and delegate
// persistence to repositories.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/audit"
	"github.com/digikawsay/kawsay-engine/pkg/auth"
	"github.com/digikawsay/kawsay-engine/pkg/crypto"
	"github.com/digikawsay/kawsay-engine/pkg/models"
	"github.com/digikawsay/kawsay-engine/pkg/repositories"
)

// ResolveGrant is the capability that unlocks a vault identity. Its fields
// are unexported so a grant can only be minted inside this package, by the
// reidentification service after the approval workflow completes. Handlers
// and other packages cannot construct one, which makes "no resolve without
// an approved request" a compile-time property rather than a convention.
type ResolveGrant struct {
	requestID   uuid.UUID
	pseudonymID string
}

func newResolveGrant(requestID uuid.UUID, pseudonymID string) ResolveGrant {
	return ResolveGrant{requestID: requestID, pseudonymID: pseudonymID}
}

// DisclosedIdentity is the result of an approved reidentification resolve.
type DisclosedIdentity struct {
	PseudonymID string            `json:"pseudonym_id"`
	EntityType  models.EntityType `json:"entity_type"`
	Value       string            `json:"value"`
	Warning     string            `json:"warning"`
}

// VaultService manages pseudonym mappings. Original identity values go in
// through CreateMapping and only ever come out through ResolveIdentity,
// which requires a ResolveGrant.
type VaultService interface {
	// CreateMapping returns the pseudonym mapping for a detected value,
	// creating one if none exists. The same value in the same campaign and
	// entity type always yields the same pseudonym.
	CreateMapping(ctx context.Context, tenantID, campaignID string, entityType models.EntityType, value string) (*models.PseudonymMapping, error)

	// GetMapping returns mapping metadata by pseudonym token. The original
	// value is never populated on the returned struct.
	GetMapping(ctx context.Context, pseudonymID string) (*models.PseudonymMapping, error)

	// ResolveIdentity decrypts the original value behind a pseudonym. The
	// grant must have been minted by a completed approval workflow.
	ResolveIdentity(ctx context.Context, grant ResolveGrant) (string, error)

	// DeleteMapping erases a mapping for compliance. The deletion is audited;
	// any later resolve against the pseudonym fails with not found.
	DeleteMapping(ctx context.Context, actor models.Actor, pseudonymID string) error
}

type vaultService struct {
	vaultRepo repositories.VaultRepository
	auditRepo repositories.AuditRepository
	encryptor *crypto.IdentityEncryptor
	security  *audit.SecurityAuditor
	logger    *zap.Logger
}

// NewVaultService creates a new VaultService.
func NewVaultService(
	vaultRepo repositories.VaultRepository,
	auditRepo repositories.AuditRepository,
	encryptor *crypto.IdentityEncryptor,
	security *audit.SecurityAuditor,
	logger *zap.Logger,
) VaultService {
	return &vaultService{
		vaultRepo: vaultRepo,
		auditRepo: auditRepo,
		encryptor: encryptor,
		security:  security,
		logger:    logger.Named("vault-service"),
	}
}

var _ VaultService = (*vaultService)(nil)

func (s *vaultService) CreateMapping(ctx context.Context, tenantID, campaignID string, entityType models.EntityType, value string) (*models.PseudonymMapping, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: value must not be empty", apperrors.ErrValidation)
	}
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaign_id must not be empty", apperrors.ErrValidation)
	}

	digest := crypto.ValueDigest(value)

	// Fast path: the value has been seen before in this campaign.
	existing, err := s.vaultRepo.GetByDigest(ctx, campaignID, entityType, digest)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: vault lookup failed: %v", apperrors.ErrStorage, err)
	}

	encrypted, err := s.encryptor.Encrypt(value)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encrypt identity value: %v", apperrors.ErrStorage, err)
	}

	mapping := &models.PseudonymMapping{
		PseudonymID:    models.NewPseudonymID(),
		TenantID:       tenantID,
		CampaignID:     campaignID,
		EntityType:     entityType,
		EncryptedValue: encrypted,
		ValueDigest:    digest,
	}

	created, err := s.vaultRepo.Create(ctx, mapping)
	if err != nil {
		return nil, fmt.Errorf("%w: vault insert failed: %v", apperrors.ErrStorage, err)
	}
	return created, nil
}

func (s *vaultService) GetMapping(ctx context.Context, pseudonymID string) (*models.PseudonymMapping, error) {
	if !models.IsValidPseudonymID(pseudonymID) {
		return nil, fmt.Errorf("%w: malformed pseudonym ID", apperrors.ErrValidation)
	}

	mapping, err := s.vaultRepo.GetByPseudonym(ctx, pseudonymID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: vault lookup failed: %v", apperrors.ErrStorage, err)
	}

	// Metadata only; the encrypted value stays inside the vault boundary.
	mapping.EncryptedValue = ""
	return mapping, nil
}

func (s *vaultService) ResolveIdentity(ctx context.Context, grant ResolveGrant) (string, error) {
	if grant.pseudonymID == "" || grant.requestID == uuid.Nil {
		return "", apperrors.ErrGrantRequired
	}

	mapping, err := s.vaultRepo.GetByPseudonym(ctx, grant.pseudonymID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("%w: vault lookup failed: %v", apperrors.ErrStorage, err)
	}

	value, err := s.encryptor.Decrypt(mapping.EncryptedValue)
	if err != nil {
		s.logger.Error("Failed to decrypt vault value",
			zap.String("pseudonym_id", grant.pseudonymID),
			zap.String("request_id", grant.requestID.String()))
		return "", fmt.Errorf("%w: decryption failed", apperrors.ErrStorage)
	}

	return value, nil
}

func (s *vaultService) DeleteMapping(ctx context.Context, actor models.Actor, pseudonymID string) error {
	if !auth.CanErase(actor.Role) {
		s.security.LogAccessDenied(actor, pseudonymID, "role_denied")
		return fmt.Errorf("%w: role %s cannot erase vault mappings", apperrors.ErrForbidden, actor.Role)
	}
	if !models.IsValidPseudonymID(pseudonymID) {
		return fmt.Errorf("%w: malformed pseudonym ID", apperrors.ErrValidation)
	}

	if err := s.vaultRepo.Delete(ctx, pseudonymID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("%w: vault delete failed: %v", apperrors.ErrStorage, err)
	}

	entry := &models.AuditLogEntry{
		TenantID:     actor.TenantID,
		ActorUserID:  actor.ID,
		ActorRole:    actor.Role,
		Action:       models.AuditActionDataDeleted,
		ResourceType: models.AuditResourceVaultMapping,
		ResourceID:   pseudonymID,
		Success:      true,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to audit vault erasure", zap.Error(err), zap.String("pseudonym_id", pseudonymID))
		return fmt.Errorf("%w: audit write failed", apperrors.ErrStorage)
	}
	s.security.LogVaultErasure(actor, pseudonymID)

	return nil
}

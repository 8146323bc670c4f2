package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/audit"
	"github.com/digikawsay/kawsay-engine/pkg/crypto"
	"github.com/digikawsay/kawsay-engine/pkg/models"
)

func newTestVaultService(t *testing.T) (VaultService, *fakeVaultRepo, *fakeAuditRepo) {
	t.Helper()
	encryptor, err := crypto.NewIdentityEncryptor("test-vault-key")
	require.NoError(t, err)
	vaultRepo := newFakeVaultRepo()
	auditRepo := &fakeAuditRepo{}
	return NewVaultService(vaultRepo, auditRepo, encryptor, audit.NewSecurityAuditor(zap.NewNop()), zap.NewNop()), vaultRepo, auditRepo
}

func TestVaultService_CreateMapping_Deterministic(t *testing.T) {
	svc, _, _ := newTestVaultService(t)
	ctx := context.Background()

	first, err := svc.CreateMapping(ctx, "tenant-1", "campaign-1", models.EntityTypeEmail, "maria@example.com")
	require.NoError(t, err)
	assert.True(t, models.IsValidPseudonymID(first.PseudonymID))

	second, err := svc.CreateMapping(ctx, "tenant-1", "campaign-1", models.EntityTypeEmail, "maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.PseudonymID, second.PseudonymID)
}

func TestVaultService_CreateMapping_CampaignScoped(t *testing.T) {
	svc, _, _ := newTestVaultService(t)
	ctx := context.Background()

	first, err := svc.CreateMapping(ctx, "tenant-1", "campaign-1", models.EntityTypeEmail, "maria@example.com")
	require.NoError(t, err)

	other, err := svc.CreateMapping(ctx, "tenant-1", "campaign-2", models.EntityTypeEmail, "maria@example.com")
	require.NoError(t, err)

	// Same value in a different campaign must not link across campaigns.
	assert.NotEqual(t, first.PseudonymID, other.PseudonymID)
}

func TestVaultService_CreateMapping_Validation(t *testing.T) {
	svc, _, _ := newTestVaultService(t)
	ctx := context.Background()

	_, err := svc.CreateMapping(ctx, "tenant-1", "campaign-1", models.EntityTypeEmail, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateMapping(ctx, "tenant-1", "", models.EntityTypeEmail, "maria@example.com")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestVaultService_CreateMapping_EncryptsAtRest(t *testing.T) {
	svc, vaultRepo, _ := newTestVaultService(t)
	ctx := context.Background()

	mapping, err := svc.CreateMapping(ctx, "tenant-1", "campaign-1", models.EntityTypePhone, "987654321")
	require.NoError(t, err)

	stored := vaultRepo.mappings[mapping.PseudonymID]
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.EncryptedValue)
	assert.NotContains(t, stored.EncryptedValue, "987654321")
}

func TestVaultService_GetMapping_StripsEncryptedValue(t *testing.T) {
	svc, _, _ := newTestVaultService(t)
	ctx := context.Background()

	created, err := svc.CreateMapping(ctx, "tenant-1", "campaign-1", models.EntityTypeName, "María López")
	require.NoError(t, err)

	mapping, err := svc.GetMapping(ctx, created.PseudonymID)
	require.NoError(t, err)
	assert.Empty(t, mapping.EncryptedValue)
	assert.Equal(t, models.EntityTypeName, mapping.EntityType)
}

func TestVaultService_GetMapping_Errors(t *testing.T) {
	svc, _, _ := newTestVaultService(t)
	ctx := context.Background()

	_, err := svc.GetMapping(ctx, "not-a-pseudonym")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.GetMapping(ctx, "P-DEADBEEF")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestVaultService_ResolveIdentity_RequiresGrant(t *testing.T) {
	svc, _, _ := newTestVaultService(t)

	_, err := svc.ResolveIdentity(context.Background(), ResolveGrant{})
	assert.ErrorIs(t, err, apperrors.ErrGrantRequired)
}

func TestVaultService_ResolveIdentity_RoundTrip(t *testing.T) {
	svc, _, _ := newTestVaultService(t)
	ctx := context.Background()

	created, err := svc.CreateMapping(ctx, "tenant-1", "campaign-1", models.EntityTypeEmail, "maria@example.com")
	require.NoError(t, err)

	grant := newResolveGrant(uuid.New(), created.PseudonymID)
	value, err := svc.ResolveIdentity(ctx, grant)
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", value)
}

func TestVaultService_DeleteMapping(t *testing.T) {
	svc, _, auditRepo := newTestVaultService(t)
	ctx := context.Background()
	steward := models.Actor{ID: "user-1", Role: models.RoleDataSteward, TenantID: "tenant-1"}

	created, err := svc.CreateMapping(ctx, "tenant-1", "campaign-1", models.EntityTypeEmail, "maria@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMapping(ctx, steward, created.PseudonymID))

	// Erasure is audited and later resolves fail.
	entry := auditRepo.lastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditActionDataDeleted, entry.Action)
	assert.True(t, entry.Success)

	grant := newResolveGrant(uuid.New(), created.PseudonymID)
	_, err = svc.ResolveIdentity(ctx, grant)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestVaultService_DeleteMapping_RoleDenied(t *testing.T) {
	svc, _, _ := newTestVaultService(t)
	analyst := models.Actor{ID: "user-2", Role: models.RoleAnalyst, TenantID: "tenant-1"}

	err := svc.DeleteMapping(context.Background(), analyst, "P-DEADBEEF")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/audit"
	"github.com/digikawsay/kawsay-engine/pkg/crypto"
	"github.com/digikawsay/kawsay-engine/pkg/detect"
	"github.com/digikawsay/kawsay-engine/pkg/models"
)

func newTestPseudonymizationService(t *testing.T) (PseudonymizationService, *fakeVaultRepo, *fakeTranscriptRepo) {
	t.Helper()
	encryptor, err := crypto.NewIdentityEncryptor("test-vault-key")
	require.NoError(t, err)
	vaultRepo := newFakeVaultRepo()
	transcriptRepo := newFakeTranscriptRepo()
	vault := NewVaultService(vaultRepo, &fakeAuditRepo{}, encryptor, audit.NewSecurityAuditor(zap.NewNop()), zap.NewNop())
	svc := NewPseudonymizationService(detect.DefaultDetectors(), vault, transcriptRepo, zap.NewNop())
	return svc, vaultRepo, transcriptRepo
}

func TestPseudonymize_ReplacesDetectedPII(t *testing.T) {
	svc, _, _ := newTestPseudonymizationService(t)

	result, err := svc.Pseudonymize(context.Background(), "tenant-1", "campaign-1",
		"Contactar a maria@example.com o al 987-654-321")
	require.NoError(t, err)

	assert.NotContains(t, result.Text, "maria@example.com")
	assert.NotContains(t, result.Text, "987-654-321")
	require.Len(t, result.Replacements, 2)
	for _, r := range result.Replacements {
		assert.True(t, models.IsValidPseudonymID(r.PseudonymID))
	}
}

func TestPseudonymize_Deterministic(t *testing.T) {
	svc, _, _ := newTestPseudonymizationService(t)
	ctx := context.Background()

	first, err := svc.Pseudonymize(ctx, "tenant-1", "campaign-1", "Escribir a maria@example.com")
	require.NoError(t, err)
	second, err := svc.Pseudonymize(ctx, "tenant-1", "campaign-1", "Responder a maria@example.com")
	require.NoError(t, err)

	require.Len(t, first.Replacements, 1)
	require.Len(t, second.Replacements, 1)
	assert.Equal(t, first.Replacements[0].PseudonymID, second.Replacements[0].PseudonymID)
}

func TestPseudonymize_Idempotent(t *testing.T) {
	svc, _, _ := newTestPseudonymizationService(t)
	ctx := context.Background()

	first, err := svc.Pseudonymize(ctx, "tenant-1", "campaign-1",
		"La participante María López (maria@example.com, DNI 12345678) vive en Calle Falsa 123")
	require.NoError(t, err)
	require.NotEmpty(t, first.Replacements)

	// Running the engine on its own output must change nothing.
	second, err := svc.Pseudonymize(ctx, "tenant-1", "campaign-1", first.Text)
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)
	assert.Empty(t, second.Replacements)
}

func TestPseudonymize_CollidingSpansStillRedacted(t *testing.T) {
	svc, _, _ := newTestPseudonymizationService(t)

	// The greedy address pattern runs into the email span here; the address
	// must keep its unclaimed prefix rather than survive in clear text.
	result, err := svc.Pseudonymize(context.Background(), "tenant-1", "campaign-1",
		"Vivo en Av. 28 de Julio y mi correo es juan@example.com")
	require.NoError(t, err)

	assert.NotContains(t, result.Text, "28 de Julio")
	assert.NotContains(t, result.Text, "juan@example.com")
	require.Len(t, result.Replacements, 2)
}

func TestPseudonymize_EmptyText(t *testing.T) {
	svc, _, _ := newTestPseudonymizationService(t)

	result, err := svc.Pseudonymize(context.Background(), "tenant-1", "campaign-1", "")
	require.NoError(t, err)
	assert.Empty(t, result.Text)
	assert.Empty(t, result.Replacements)
}

func TestPseudonymize_MissingCampaign(t *testing.T) {
	svc, _, _ := newTestPseudonymizationService(t)

	_, err := svc.Pseudonymize(context.Background(), "tenant-1", "", "hola")
	assert.Error(t, err)
}

func TestPseudonymize_VaultFailureRedacts(t *testing.T) {
	svc, vaultRepo, _ := newTestPseudonymizationService(t)
	vaultRepo.failCreate = true

	result, err := svc.Pseudonymize(context.Background(), "tenant-1", "campaign-1",
		"Escribir a maria@example.com")
	require.NoError(t, err)

	// A span that cannot be vaulted must still not survive in clear text.
	assert.NotContains(t, result.Text, "maria@example.com")
	assert.Contains(t, result.Text, "[REDACTED]")
	assert.Empty(t, result.Replacements)
}

func TestPseudonymizeTranscript(t *testing.T) {
	svc, _, transcriptRepo := newTestPseudonymizationService(t)
	transcriptRepo.transcripts["tr-1"] = &models.Transcript{
		ID:         "tr-1",
		TenantID:   "tenant-1",
		CampaignID: "campaign-1",
		SessionID:  "session-1",
		Messages: []models.Message{
			{Role: models.MessageRoleAssistant, Content: "Escribe a soporte@digikawsay.org si tienes dudas"},
			{Role: models.MessageRoleUser, Content: "Mi correo es maria@example.com"},
		},
	}

	transcript, replaced, err := svc.PseudonymizeTranscript(context.Background(), "tr-1")
	require.NoError(t, err)
	assert.Equal(t, 1, replaced)
	assert.True(t, transcript.IsPseudonymized)
	assert.NotNil(t, transcript.PseudonymizedAt)
	assert.NotContains(t, transcript.Messages[1].Content, "maria@example.com")

	// Scripted facilitator turns are not participant PII and stay as written.
	assert.Equal(t, "Escribe a soporte@digikawsay.org si tienes dudas", transcript.Messages[0].Content)

	// Second run is a no-op.
	again, replaced, err := svc.PseudonymizeTranscript(context.Background(), "tr-1")
	require.NoError(t, err)
	assert.Equal(t, 0, replaced)
	assert.Equal(t, transcript.Messages, again.Messages)
}

func TestPseudonymizeTranscript_NotFound(t *testing.T) {
	svc, _, _ := newTestPseudonymizationService(t)

	_, _, err := svc.PseudonymizeTranscript(context.Background(), "missing")
	assert.Error(t, err)
}

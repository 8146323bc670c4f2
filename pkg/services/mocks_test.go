package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/models"
)

// In-memory fakes for the repository interfaces. Error injection is done
// through the fail* flags.

type fakeVaultRepo struct {
	mappings   map[string]*models.PseudonymMapping // by pseudonym ID
	failCreate bool
}

func newFakeVaultRepo() *fakeVaultRepo {
	return &fakeVaultRepo{mappings: make(map[string]*models.PseudonymMapping)}
}

func (f *fakeVaultRepo) Create(ctx context.Context, mapping *models.PseudonymMapping) (*models.PseudonymMapping, error) {
	if f.failCreate {
		return nil, errors.New("insert failed")
	}
	for _, m := range f.mappings {
		if m.CampaignID == mapping.CampaignID && m.EntityType == mapping.EntityType && m.ValueDigest == mapping.ValueDigest {
			return m, nil
		}
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now()
	}
	f.mappings[mapping.PseudonymID] = mapping
	return mapping, nil
}

func (f *fakeVaultRepo) GetByDigest(ctx context.Context, campaignID string, entityType models.EntityType, digest string) (*models.PseudonymMapping, error) {
	for _, m := range f.mappings {
		if m.CampaignID == campaignID && m.EntityType == entityType && m.ValueDigest == digest {
			return m, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeVaultRepo) GetByPseudonym(ctx context.Context, pseudonymID string) (*models.PseudonymMapping, error) {
	if m, ok := f.mappings[pseudonymID]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeVaultRepo) Delete(ctx context.Context, pseudonymID string) error {
	if _, ok := f.mappings[pseudonymID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.mappings, pseudonymID)
	return nil
}

type fakeAuditRepo struct {
	entries    []*models.AuditLogEntry
	failCreate bool
}

func (f *fakeAuditRepo) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	if f.failCreate {
		return errors.New("audit insert failed")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLogEntry, error) {
	var result []*models.AuditLogEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.ActorUserID != "" && e.ActorUserID != filter.ActorUserID {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (f *fakeAuditRepo) Summary(ctx context.Context, days int) (*models.AuditSummary, error) {
	byAction := make(map[string]*models.AuditActionCount)
	summary := &models.AuditSummary{Days: days}
	for _, e := range f.entries {
		count, ok := byAction[e.Action]
		if !ok {
			count = &models.AuditActionCount{Action: e.Action}
			byAction[e.Action] = count
		}
		count.Count++
		if !e.Success {
			count.Failures++
		}
		summary.Total++
	}
	for _, count := range byAction {
		summary.ByAction = append(summary.ByAction, *count)
	}
	return summary, nil
}

// lastEntry returns the most recent audit entry, or nil.
func (f *fakeAuditRepo) lastEntry() *models.AuditLogEntry {
	if len(f.entries) == 0 {
		return nil
	}
	return f.entries[len(f.entries)-1]
}

type fakeReidentificationRepo struct {
	requests    map[uuid.UUID]*models.ReidentificationRequest
	audit       *fakeAuditRepo
	failResolve bool
}

func newFakeReidentificationRepo(audit *fakeAuditRepo) *fakeReidentificationRepo {
	return &fakeReidentificationRepo{
		requests: make(map[uuid.UUID]*models.ReidentificationRequest),
		audit:    audit,
	}
}

func (f *fakeReidentificationRepo) Create(ctx context.Context, request *models.ReidentificationRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now()
	}
	copied := *request
	f.requests[request.ID] = &copied
	return nil
}

func (f *fakeReidentificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ReidentificationRequest, error) {
	if r, ok := f.requests[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeReidentificationRepo) ListPending(ctx context.Context) ([]*models.ReidentificationRequest, error) {
	var result []*models.ReidentificationRequest
	for _, r := range f.requests {
		if r.Status == models.RequestStatusPending || r.Status == models.RequestStatusFirstApproved {
			copied := *r
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (f *fakeReidentificationRepo) UpdateReview(ctx context.Context, request *models.ReidentificationRequest, expectedStatus string) error {
	stored, ok := f.requests[request.ID]
	if !ok || stored.Status != expectedStatus {
		return apperrors.ErrStateConflict
	}
	copied := *request
	f.requests[request.ID] = &copied
	return nil
}

func (f *fakeReidentificationRepo) MarkExpired(ctx context.Context, id uuid.UUID) error {
	stored, ok := f.requests[id]
	if !ok || stored.Status != models.RequestStatusApproved {
		return apperrors.ErrStateConflict
	}
	stored.Status = models.RequestStatusExpired
	return nil
}

func (f *fakeReidentificationRepo) ResolveWithAudit(ctx context.Context, request *models.ReidentificationRequest, entry *models.AuditLogEntry) error {
	if f.failResolve {
		return errors.New("transaction failed")
	}
	stored, ok := f.requests[request.ID]
	if !ok || stored.Status != models.RequestStatusApproved {
		return apperrors.ErrStateConflict
	}
	stored.Status = models.RequestStatusResolved
	stored.ResolvedBy = request.ResolvedBy
	stored.ResolvedAt = request.ResolvedAt
	request.Status = models.RequestStatusResolved
	return f.audit.Create(ctx, entry)
}

type fakeInsightRepo struct {
	insights []*models.Insight
}

func (f *fakeInsightRepo) ListByCampaign(ctx context.Context, campaignID string) ([]*models.Insight, error) {
	var result []*models.Insight
	for _, i := range f.insights {
		if i.CampaignID == campaignID {
			result = append(result, i)
		}
	}
	return result, nil
}

func (f *fakeInsightRepo) ListVisible(ctx context.Context, campaignID string) ([]*models.Insight, error) {
	var result []*models.Insight
	for _, i := range f.insights {
		if i.CampaignID == campaignID && !i.Suppressed {
			result = append(result, i)
		}
	}
	return result, nil
}

func (f *fakeInsightRepo) SetSuppressed(ctx context.Context, insightID string, suppressed bool) error {
	for _, i := range f.insights {
		if i.ID.String() == insightID {
			i.Suppressed = suppressed
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (f *fakeInsightRepo) Counts(ctx context.Context, campaignID string) (*models.SuppressionCounts, error) {
	counts := &models.SuppressionCounts{}
	for _, i := range f.insights {
		if i.CampaignID != campaignID {
			continue
		}
		counts.Total++
		if i.Suppressed {
			counts.Suppressed++
		} else {
			counts.Visible++
		}
	}
	return counts, nil
}

type fakeTranscriptRepo struct {
	transcripts map[string]*models.Transcript
}

func newFakeTranscriptRepo() *fakeTranscriptRepo {
	return &fakeTranscriptRepo{transcripts: make(map[string]*models.Transcript)}
}

func (f *fakeTranscriptRepo) GetByID(ctx context.Context, id string) (*models.Transcript, error) {
	if t, ok := f.transcripts[id]; ok {
		copied := *t
		copied.Messages = append([]models.Message(nil), t.Messages...)
		return &copied, nil
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeTranscriptRepo) UpdateMessages(ctx context.Context, id string, messages []models.Message) error {
	t, ok := f.transcripts[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	t.Messages = messages
	t.IsPseudonymized = true
	t.PseudonymizedAt = &now
	return nil
}

package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/apperrors"
	"github.com/digikawsay/kawsay-engine/pkg/detect"
	"github.com/digikawsay/kawsay-engine/pkg/logging"
	"github.com/digikawsay/kawsay-engine/pkg/models"
	"github.com/digikawsay/kawsay-engine/pkg/repositories"
)

// pseudonymTokenRe matches pseudonym tokens already embedded in text. Token
// spans are claimed before any detector runs, which is what makes
// pseudonymization idempotent even for the digit-heavy hex tokens that could
// otherwise trip the phone or document heuristics.
var pseudonymTokenRe = regexp.MustCompile(`P-[0-9A-F]{8}`)

// Replacement records one substitution made during pseudonymization.
// Offsets refer to the original input text.
type Replacement struct {
	PseudonymID string            `json:"pseudonym_id"`
	EntityType  models.EntityType `json:"entity_type"`
	Start       int               `json:"start"`
	End         int               `json:"end"`
}

// PseudonymizationResult is the outcome of pseudonymizing one text.
type PseudonymizationResult struct {
	Text         string        `json:"text"`
	Replacements []Replacement `json:"replacements"`
}

// PseudonymizationService rewrites free text so that every detected PII span
// is replaced by its vault pseudonym before the text reaches any analysis or
// storage downstream of the privacy boundary.
type PseudonymizationService interface {
	// Pseudonymize detects PII in text and replaces each span with its
	// campaign-scoped pseudonym. Running it on its own output is a no-op.
	Pseudonymize(ctx context.Context, tenantID, campaignID, text string) (*PseudonymizationResult, error)

	// PseudonymizeTranscript rewrites the participant-authored messages of
	// a stored transcript and marks it pseudonymized. Already-pseudonymized
	// transcripts are returned unchanged. The int is the total number of
	// replacements made.
	PseudonymizeTranscript(ctx context.Context, transcriptID string) (*models.Transcript, int, error)
}

type pseudonymizationService struct {
	detectors      []detect.Detector
	vault          VaultService
	transcriptRepo repositories.TranscriptRepository
	logger         *zap.Logger
}

// NewPseudonymizationService creates a new PseudonymizationService with the
// given ordered detector set.
func NewPseudonymizationService(
	detectors []detect.Detector,
	vault VaultService,
	transcriptRepo repositories.TranscriptRepository,
	logger *zap.Logger,
) PseudonymizationService {
	return &pseudonymizationService{
		detectors:      detectors,
		vault:          vault,
		transcriptRepo: transcriptRepo,
		logger:         logger.Named("pseudonymization-service"),
	}
}

var _ PseudonymizationService = (*pseudonymizationService)(nil)

func (s *pseudonymizationService) Pseudonymize(ctx context.Context, tenantID, campaignID, text string) (*PseudonymizationResult, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaign_id must not be empty", apperrors.ErrValidation)
	}

	type claimedSpan struct {
		start, end int
		entityType models.EntityType
		value      string
		token      bool
	}

	// Existing pseudonym tokens claim their spans up front.
	var claimed []claimedSpan
	for _, loc := range pseudonymTokenRe.FindAllStringIndex(text, -1) {
		claimed = append(claimed, claimedSpan{start: loc[0], end: loc[1], token: true})
	}

	// clip shrinks a span to the part not already claimed. A greedy pattern
	// that runs into an earlier detector's span keeps its unclaimed prefix
	// instead of being dropped whole, so the collision never leaves raw PII
	// behind. Returns start >= end when nothing is left.
	clip := func(start, end int) (int, int) {
		for moved := true; moved; {
			moved = false
			for _, c := range claimed {
				if c.start <= start && start < c.end {
					start = c.end
					moved = true
				}
			}
		}
		for _, c := range claimed {
			if c.start >= start && c.start < end {
				end = c.start
			}
		}
		for start < end && (text[start] == ' ' || text[start] == '\t' || text[start] == '\n') {
			start++
		}
		for end > start && (text[end-1] == ' ' || text[end-1] == '\t' || text[end-1] == '\n') {
			end--
		}
		return start, end
	}

	// Detectors run in declaration order; earlier detectors claim their
	// spans so looser patterns cannot split or reinterpret them.
	for _, d := range s.detectors {
		spans, err := d.Detect(text)
		if err != nil {
			s.logger.Warn("Detector failed, skipping",
				zap.String("entity_type", string(d.Type())),
				zap.Error(err))
			continue
		}
		for _, span := range spans {
			start, end := clip(span.Start, span.End)
			if start >= end {
				continue
			}
			claimed = append(claimed, claimedSpan{
				start:      start,
				end:        end,
				entityType: d.Type(),
				value:      text[start:end],
			})
		}
	}

	// Replace back to front so earlier offsets stay valid.
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start > claimed[j].start })

	result := &PseudonymizationResult{Text: text}
	for _, c := range claimed {
		if c.token {
			continue
		}

		replacement := logging.RedactedText
		mapping, err := s.vault.CreateMapping(ctx, tenantID, campaignID, c.entityType, c.value)
		if err != nil {
			// Fail closed: a span that cannot be vaulted must still not
			// survive in clear text.
			s.logger.Warn("Vault mapping failed, redacting span",
				zap.String("entity_type", string(c.entityType)),
				zap.Error(err))
		} else {
			replacement = mapping.PseudonymID
			result.Replacements = append(result.Replacements, Replacement{
				PseudonymID: mapping.PseudonymID,
				EntityType:  c.entityType,
				Start:       c.start,
				End:         c.end,
			})
		}

		result.Text = result.Text[:c.start] + replacement + result.Text[c.end:]
	}

	// Replacements were collected back to front.
	sort.Slice(result.Replacements, func(i, j int) bool {
		return result.Replacements[i].Start < result.Replacements[j].Start
	})

	return result, nil
}

func (s *pseudonymizationService) PseudonymizeTranscript(ctx context.Context, transcriptID string) (*models.Transcript, int, error) {
	transcript, err := s.transcriptRepo.GetByID(ctx, transcriptID)
	if err != nil {
		return nil, 0, err
	}

	if transcript.IsPseudonymized {
		return transcript, 0, nil
	}

	// Only participant-authored turns carry PII; facilitator prompts are
	// scripted and stay as written.
	total := 0
	messages := make([]models.Message, len(transcript.Messages))
	for i, msg := range transcript.Messages {
		if msg.Role != models.MessageRoleUser {
			messages[i] = msg
			continue
		}
		result, err := s.Pseudonymize(ctx, transcript.TenantID, transcript.CampaignID, msg.Content)
		if err != nil {
			return nil, 0, fmt.Errorf("message %d: %w", i, err)
		}
		messages[i] = models.Message{Role: msg.Role, Content: result.Text}
		total += len(result.Replacements)
	}

	if err := s.transcriptRepo.UpdateMessages(ctx, transcriptID, messages); err != nil {
		return nil, 0, err
	}

	now := time.Now()
	transcript.Messages = messages
	transcript.IsPseudonymized = true
	transcript.PseudonymizedAt = &now

	s.logger.Info("Transcript pseudonymized",
		zap.String("transcript_id", transcriptID),
		zap.Int("replacements", total))

	return transcript, total, nil
}

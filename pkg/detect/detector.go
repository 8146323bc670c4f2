// Package detect provides pattern-based PII entity detection for the
// pseudonymization engine. Detection is a strategy interface so the regex
// heuristics here can later be swapped for a real NER model without touching
// the vault or suppression contracts.
package detect

import (
	"fmt"
	"regexp"

	"github.com/digikawsay/kawsay-engine/pkg/models"
)

// Span is one detected PII occurrence within a text.
type Span struct {
	Start int
	End   int
	Value string
}

// Detector finds spans of one entity type in free text.
type Detector interface {
	// Type returns the entity type this detector finds.
	Type() models.EntityType
	// Detect returns all spans of this entity type in text, in order of
	// appearance. An error means this detector could not run at all; the
	// engine treats that as non-fatal.
	Detect(text string) ([]Span, error)
}

type regexDetector struct {
	entityType models.EntityType
	re         *regexp.Regexp
}

// NewRegexDetector builds a detector from a regular expression.
func NewRegexDetector(entityType models.EntityType, pattern string) (Detector, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile %s pattern: %w", entityType, err)
	}
	return &regexDetector{entityType: entityType, re: re}, nil
}

func (d *regexDetector) Type() models.EntityType {
	return d.entityType
}

func (d *regexDetector) Detect(text string) ([]Span, error) {
	var spans []Span
	for _, loc := range d.re.FindAllStringIndex(text, -1) {
		spans = append(spans, Span{Start: loc[0], End: loc[1], Value: text[loc[0]:loc[1]]})
	}
	return spans, nil
}

package detect

import "github.com/digikawsay/kawsay-engine/pkg/models"

// Heuristic patterns tuned for Spanish-language research transcripts.
const (
	emailPattern = `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`

	phonePattern = `\b(?:\+?[0-9]{1,3}[-.\s]?)?(?:\([0-9]{2,3}\)[-.\s]?)?[0-9]{3,4}[-.\s]?[0-9]{3,4}\b`

	// National identity documents (DNI, cédula): 7-11 digit runs.
	documentPattern = `\b[0-9]{7,11}\b`

	// Birth dates in day-first notation, two or four digit year.
	birthDatePattern = `\b(?:0?[1-9]|[12][0-9]|3[01])[/-](?:0?[1-9]|1[012])[/-](?:19|20)?\d{2}\b`

	addressPattern = `(?:Calle|Av\.|Avenida|Carrera|Jr\.|Jirón)\s+[A-Za-zÁÉÍÓÚÑáéíóúñ0-9][A-Za-zÁÉÍÓÚÑáéíóúñ0-9\s,#.-]*`

	titledNamePattern = `(?:Sr\.|Sra\.|Dr\.|Dra\.|Ing\.|Lic\.|Prof\.)\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+`

	fullNamePattern = `\b[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)?`
)

// DefaultDetectors returns the standard ordered detector set. Order matters:
// specific patterns (email) run before looser ones (names) so a name
// heuristic never mangles an email's local-part, and phone/document runs
// claim digit spans before the address heuristic can swallow them.
func DefaultDetectors() []Detector {
	specs := []struct {
		entityType models.EntityType
		pattern    string
	}{
		{models.EntityTypeEmail, emailPattern},
		{models.EntityTypePhone, phonePattern},
		{models.EntityTypeOther, documentPattern},
		{models.EntityTypeOther, birthDatePattern},
		{models.EntityTypeAddress, addressPattern},
		{models.EntityTypeName, titledNamePattern},
		{models.EntityTypeName, fullNamePattern},
	}

	detectors := make([]Detector, 0, len(specs))
	for _, s := range specs {
		d, err := NewRegexDetector(s.entityType, s.pattern)
		if err != nil {
			// Patterns are compile-time constants; a failure here is a
			// programming error.
			panic(err)
		}
		detectors = append(detectors, d)
	}
	return detectors
}

// Package docai consumes the document-understanding capability as an opaque
// service: classify raw document bytes into a document type with a confidence
// score, and extract structured candidate health records for a known type.
// The model itself is external; this package owns the contract, the HTTP
// client, and a deterministic stub for development.
package docai

import (
	"context"
	"encoding/json"
	"fmt"
)

// DocumentType is the classifier's best guess at the category of an upload.
type DocumentType string

const (
	DocTypeVaccinationRecord DocumentType = "vaccination_record"
	DocTypeVisitSummary      DocumentType = "visit_summary"
	DocTypeLabResults        DocumentType = "lab_results"
	DocTypePrescription      DocumentType = "prescription"
	DocTypeMedicationLabel   DocumentType = "medication_label"
	DocTypePetIDTag          DocumentType = "pet_id_tag"
	DocTypeOther             DocumentType = "other"
)

var validDocumentTypes = map[DocumentType]bool{
	DocTypeVaccinationRecord: true,
	DocTypeVisitSummary:      true,
	DocTypeLabResults:        true,
	DocTypePrescription:      true,
	DocTypeMedicationLabel:   true,
	DocTypePetIDTag:          true,
	DocTypeOther:             true,
}

func (d DocumentType) Valid() bool { return validDocumentTypes[d] }

// ConfidenceBand buckets a 0-100 confidence score for display.
type ConfidenceBand string

const (
	BandLow    ConfidenceBand = "low"    // < 50
	BandMedium ConfidenceBand = "medium" // 50-79
	BandHigh   ConfidenceBand = "high"   // >= 80
)

func BandFor(confidence int) ConfidenceBand {
	switch {
	case confidence >= 80:
		return BandHigh
	case confidence >= 50:
		return BandMedium
	default:
		return BandLow
	}
}

// Summary previews what extraction would find, by record count.
type Summary struct {
	MedicationsCount  int `json:"medications_count"`
	ConditionsCount   int `json:"conditions_count"`
	VaccinationsCount int `json:"vaccinations_count"`
	AllergiesCount    int `json:"allergies_count"`
}

// Classification is the result of one classify call. It is not persisted
// separately; the upload registry records it on the upload it annotates.
type Classification struct {
	DocumentType DocumentType   `json:"document_type"`
	Confidence   int            `json:"confidence"`
	Explanation  string         `json:"explanation,omitempty"`
	Summary      Summary        `json:"summary"`
	Band         ConfidenceBand `json:"band"`
}

// Validate enforces the classification invariants: confidence in [0,100],
// a known document type, non-negative counts, and a non-empty explanation
// whenever confidence is low.
func (c *Classification) Validate() error {
	if c.Confidence < 0 || c.Confidence > 100 {
		return fmt.Errorf("confidence %d out of range [0,100]", c.Confidence)
	}
	if !c.DocumentType.Valid() {
		return fmt.Errorf("unknown document type %q", c.DocumentType)
	}
	if c.Summary.MedicationsCount < 0 || c.Summary.ConditionsCount < 0 ||
		c.Summary.VaccinationsCount < 0 || c.Summary.AllergiesCount < 0 {
		return fmt.Errorf("summary counts must be non-negative")
	}
	if BandFor(c.Confidence) == BandLow && c.Explanation == "" {
		return fmt.Errorf("low-confidence classification requires an explanation")
	}
	return nil
}

// RecordKind identifies the health-record kind of a candidate record.
type RecordKind string

const (
	KindMedication       RecordKind = "medication"
	KindCondition        RecordKind = "condition"
	KindAllergy          RecordKind = "allergy"
	KindVaccination      RecordKind = "vaccination"
	KindVet              RecordKind = "vet"
	KindEmergencyContact RecordKind = "emergency_contact"
)

var validRecordKinds = map[RecordKind]bool{
	KindMedication:       true,
	KindCondition:        true,
	KindAllergy:          true,
	KindVaccination:      true,
	KindVet:              true,
	KindEmergencyContact: true,
}

func (k RecordKind) Valid() bool { return validRecordKinds[k] }

// CandidateRecord is one extracted, not-yet-committed structured fact. Data
// carries the kind-shaped payload (same field names as the persisted record,
// minus identity fields).
type CandidateRecord struct {
	Kind         RecordKind      `json:"kind"`
	Confidence   int             `json:"confidence"`
	NeedsReview  bool            `json:"needs_review"`
	ReviewFields []string        `json:"review_fields,omitempty"`
	Data         json.RawMessage `json:"data"`
}

// RecordSet is the full candidate output of one extract call.
type RecordSet struct {
	Records []CandidateRecord `json:"records"`
}

// Classifier produces a document-type guess for raw document bytes.
// Classification is read-only analysis; it never mutates health records.
type Classifier interface {
	Classify(ctx context.Context, content []byte, mimeType string) (*Classification, error)
}

// Extractor produces structured candidate records for a confirmed (or likely)
// document type.
type Extractor interface {
	Extract(ctx context.Context, content []byte, docType DocumentType) (*RecordSet, error)
}

// UpstreamError is a sanitized failure from the capability, safe to surface
// to the end user. Transport and service internals are logged, not returned.
type UpstreamError struct {
	Op      string // "classify" or "extract"
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

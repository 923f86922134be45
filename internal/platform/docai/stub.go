package docai

import (
	"context"
	"encoding/json"
	"strings"
)

// Stub is a deterministic Classifier/Extractor used in development and tests.
// PDFs classify as visit summaries, images as vaccination records, and very
// small files come back low-confidence so the review warning path is
// exercisable without the real service.
type Stub struct{}

func NewStub() *Stub { return &Stub{} }

const stubLowConfidenceThreshold = 100 // bytes

func (s *Stub) Classify(_ context.Context, content []byte, mimeType string) (*Classification, error) {
	if len(content) < stubLowConfidenceThreshold {
		return &Classification{
			DocumentType: DocTypeOther,
			Confidence:   35,
			Explanation:  "the file is too small to contain a readable document",
			Band:         BandLow,
		}, nil
	}

	if strings.HasPrefix(mimeType, "application/pdf") {
		return &Classification{
			DocumentType: DocTypeVisitSummary,
			Confidence:   78,
			Summary:      Summary{MedicationsCount: 1, ConditionsCount: 1},
			Band:         BandMedium,
		}, nil
	}

	return &Classification{
		DocumentType: DocTypeVaccinationRecord,
		Confidence:   92,
		Summary:      Summary{VaccinationsCount: 1},
		Band:         BandHigh,
	}, nil
}

func (s *Stub) Extract(_ context.Context, _ []byte, docType DocumentType) (*RecordSet, error) {
	switch docType {
	case DocTypeVaccinationRecord:
		return &RecordSet{Records: []CandidateRecord{
			candidate(KindVaccination, 94, false, nil, map[string]string{
				"name":              "Rabies",
				"administered_date": "2024-03-01",
				"vet_name":          "Dr. Stub",
			}),
		}}, nil
	case DocTypePrescription, DocTypeMedicationLabel:
		return &RecordSet{Records: []CandidateRecord{
			candidate(KindMedication, 88, false, nil, map[string]string{
				"name":      "Carprofen",
				"dosage":    "75mg",
				"frequency": "twice daily",
			}),
		}}, nil
	case DocTypeVisitSummary:
		return &RecordSet{Records: []CandidateRecord{
			candidate(KindCondition, 72, true, []string{"diagnosed_date"}, map[string]string{
				"name":   "Otitis externa",
				"status": "active",
			}),
			candidate(KindMedication, 81, false, nil, map[string]string{
				"name":      "Carprofen",
				"dosage":    "75mg",
				"frequency": "twice daily",
			}),
		}}, nil
	case DocTypeLabResults:
		return &RecordSet{Records: []CandidateRecord{
			candidate(KindCondition, 64, true, []string{"name"}, map[string]string{
				"name":   "Elevated ALT",
				"status": "active",
			}),
		}}, nil
	case DocTypePetIDTag:
		return &RecordSet{Records: []CandidateRecord{
			candidate(KindEmergencyContact, 70, true, []string{"phone"}, map[string]string{
				"name":  "Tag Owner",
				"phone": "555-0100",
			}),
		}}, nil
	default:
		return &RecordSet{}, nil
	}
}

func candidate(kind RecordKind, confidence int, needsReview bool, reviewFields []string, data map[string]string) CandidateRecord {
	raw, _ := json.Marshal(data)
	return CandidateRecord{
		Kind:         kind,
		Confidence:   confidence,
		NeedsReview:  needsReview,
		ReviewFields: reviewFields,
		Data:         raw,
	}
}

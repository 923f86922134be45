// Package uploads is the authoritative registry of uploaded documents and
// their processing state. It owns the pipeline state machine: uploads move
// pending -> classifying -> classified -> processing -> completed, with
// failed reachable from either in-flight state and retryable by the user.
package uploads

import (
	"time"

	"github.com/google/uuid"

	"github.com/pawvault/pawvault/internal/platform/docai"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusClassifying Status = "classifying"
	StatusClassified  Status = "classified"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// transitions is the closed set of legal moves. Everything else is an
// invalid-state error, enforced in one place rather than at call sites.
var transitions = map[Status][]Status{
	StatusPending:     {StatusClassifying, StatusProcessing},
	StatusClassifying: {StatusClassified, StatusFailed},
	StatusClassified:  {StatusProcessing},
	StatusProcessing:  {StatusCompleted, StatusFailed},
	StatusFailed:      {StatusClassifying, StatusProcessing},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusClassifying, StatusClassified,
		StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// InFlight reports whether a background task owns this upload right now.
func (s Status) InFlight() bool {
	return s == StatusClassifying || s == StatusProcessing
}

// FileType is the coarse format family, derived from the mime type.
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeImage FileType = "image"
)

type DocumentUpload struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PetID            uuid.UUID `db:"pet_id" json:"pet_id"`
	UploaderID       string    `db:"uploader_id" json:"uploader_id"`
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	MimeType         string    `db:"mime_type" json:"mime_type"`
	FileType         FileType  `db:"file_type" json:"file_type"`
	FileSizeBytes    int64     `db:"file_size_bytes" json:"file_size_bytes"`
	StorageKey       string    `db:"storage_key" json:"-"`
	PageCount        *int      `db:"page_count" json:"page_count,omitempty"`
	Status           Status    `db:"status" json:"status"`

	// Classification annotations, set once the upload has passed through
	// the classified state. They survive later failures so a retry does
	// not lose them.
	DetectedDocumentType *docai.DocumentType `db:"detected_document_type" json:"detected_document_type,omitempty"`
	ClassifyConfidence   *int                `db:"classify_confidence" json:"classify_confidence,omitempty"`
	ClassifyExplanation  *string             `db:"classify_explanation" json:"classify_explanation,omitempty"`
	SummaryMedications   int                 `db:"summary_medications" json:"summary_medications"`
	SummaryConditions    int                 `db:"summary_conditions" json:"summary_conditions"`
	SummaryVaccinations  int                 `db:"summary_vaccinations" json:"summary_vaccinations"`
	SummaryAllergies     int                 `db:"summary_allergies" json:"summary_allergies"`

	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ConfidenceBand derives the display band from the stored confidence.
func (u *DocumentUpload) ConfidenceBand() docai.ConfidenceBand {
	if u.ClassifyConfidence == nil {
		return ""
	}
	return docai.BandFor(*u.ClassifyConfidence)
}

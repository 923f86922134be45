// Package review holds extracted candidate records between extraction and
// user approval, and merges approved candidates into the permanent record
// store with duplicate detection and audit coverage.
package review

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pawvault/pawvault/internal/domain/records"
	"github.com/pawvault/pawvault/internal/platform/docai"
)

// CandidateRecord is one extracted fact awaiting a user decision. Payload
// carries the kind-shaped fields; identity and provenance live on the row.
type CandidateRecord struct {
	ID           uuid.UUID        `db:"id" json:"id"`
	UploadID     uuid.UUID        `db:"upload_id" json:"upload_id"`
	PetID        uuid.UUID        `db:"pet_id" json:"pet_id"`
	Kind         docai.RecordKind `db:"kind" json:"kind"`
	Payload      json.RawMessage  `db:"payload" json:"payload"`
	Confidence   int              `db:"confidence" json:"confidence"`
	NeedsReview  bool             `db:"needs_review" json:"needs_review"`
	ReviewFields []string         `db:"review_fields" json:"review_fields,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

type Decision string

const (
	DecisionApprove          Decision = "approve"
	DecisionApproveWithEdits Decision = "approve_with_edits"
	DecisionReject           Decision = "reject"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionApproveWithEdits || d == DecisionReject
}

// RecordDecision is one user verdict on one candidate. Edits, required for
// approve_with_edits, fully replaces the candidate payload.
type RecordDecision struct {
	CandidateID uuid.UUID       `json:"candidate_id"`
	Decision    Decision        `json:"decision"`
	Edits       json.RawMessage `json:"edits,omitempty"`
}

// Conflict reports a likely duplicate between a candidate and a committed
// record. The candidate stays persisted so the user can re-decide.
type Conflict struct {
	CandidateID uuid.UUID        `json:"candidate_id"`
	Kind        docai.RecordKind `json:"kind"`
	ExistingID  uuid.UUID        `json:"existing_id"`
	Reason      string           `json:"reason"`
}

// CommittedRecord names a record created by an approval batch.
type CommittedRecord struct {
	CandidateID uuid.UUID        `json:"candidate_id"`
	Kind        docai.RecordKind `json:"kind"`
	RecordID    uuid.UUID        `json:"record_id"`
}

// ApprovalResult is the outcome of one approval batch: what was written
// and what still needs the user's call.
type ApprovalResult struct {
	Committed []CommittedRecord `json:"committed"`
	Conflicts []Conflict        `json:"conflicts"`
}

// Candidate payloads mirror the persisted record shapes minus identity
// fields; dates travel as YYYY-MM-DD strings.

type medicationPayload struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type vaccinationPayload struct {
	Name             string `json:"name"`
	AdministeredDate string `json:"administered_date,omitempty"`
	ExpirationDate   string `json:"expiration_date,omitempty"`
	LotNumber        string `json:"lot_number,omitempty"`
	VetName          string `json:"vet_name,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

type conditionPayload struct {
	Name          string `json:"name"`
	DiagnosedDate string `json:"diagnosed_date,omitempty"`
	Status        string `json:"status,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type allergyPayload struct {
	Name     string `json:"name"`
	Severity string `json:"severity,omitempty"`
	Reaction string `json:"reaction,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type vetPayload struct {
	ClinicName string `json:"clinic_name"`
	VetName    string `json:"vet_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address,omitempty"`
}

type contactPayload struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship,omitempty"`
	Email        string `json:"email,omitempty"`
}

const dateLayout = "2006-01-02"

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return &t, nil
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// buildMedication and friends convert a decoded payload into the record
// the store persists, stamped with import provenance.

func buildMedication(petID, uploadID uuid.UUID, p medicationPayload) (*records.Medication, error) {
	start, err := parseDate(p.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(p.EndDate)
	if err != nil {
		return nil, err
	}
	return &records.Medication{
		PetID:          petID,
		Name:           strings.TrimSpace(p.Name),
		Dosage:         optStr(p.Dosage),
		Frequency:      optStr(p.Frequency),
		StartDate:      start,
		EndDate:        end,
		Notes:          optStr(p.Notes),
		Active:         true,
		Source:         records.SourcePDFImport,
		SourceUploadID: &uploadID,
	}, nil
}

func buildVaccination(petID, uploadID uuid.UUID, p vaccinationPayload) (*records.Vaccination, error) {
	administered, err := parseDate(p.AdministeredDate)
	if err != nil {
		return nil, err
	}
	expires, err := parseDate(p.ExpirationDate)
	if err != nil {
		return nil, err
	}
	return &records.Vaccination{
		PetID:            petID,
		Name:             strings.TrimSpace(p.Name),
		AdministeredDate: administered,
		ExpirationDate:   expires,
		LotNumber:        optStr(p.LotNumber),
		VetName:          optStr(p.VetName),
		Notes:            optStr(p.Notes),
		Source:           records.SourcePDFImport,
		SourceUploadID:   &uploadID,
	}, nil
}

func buildCondition(petID, uploadID uuid.UUID, p conditionPayload) (*records.Condition, error) {
	diagnosed, err := parseDate(p.DiagnosedDate)
	if err != nil {
		return nil, err
	}
	return &records.Condition{
		PetID:          petID,
		Name:           strings.TrimSpace(p.Name),
		DiagnosedDate:  diagnosed,
		Status:         p.Status,
		Notes:          optStr(p.Notes),
		Source:         records.SourcePDFImport,
		SourceUploadID: &uploadID,
	}, nil
}

func buildAllergy(petID, uploadID uuid.UUID, p allergyPayload) *records.Allergy {
	return &records.Allergy{
		PetID:          petID,
		Name:           strings.TrimSpace(p.Name),
		Severity:       optStr(p.Severity),
		Reaction:       optStr(p.Reaction),
		Notes:          optStr(p.Notes),
		Source:         records.SourcePDFImport,
		SourceUploadID: &uploadID,
	}
}

func buildVet(petID, uploadID uuid.UUID, p vetPayload) *records.Vet {
	return &records.Vet{
		PetID:          petID,
		ClinicName:     strings.TrimSpace(p.ClinicName),
		VetName:        optStr(p.VetName),
		Phone:          optStr(p.Phone),
		Email:          optStr(p.Email),
		Address:        optStr(p.Address),
		Source:         records.SourcePDFImport,
		SourceUploadID: &uploadID,
	}
}

func buildContact(petID, uploadID uuid.UUID, p contactPayload) *records.EmergencyContact {
	return &records.EmergencyContact{
		PetID:          petID,
		Name:           strings.TrimSpace(p.Name),
		Phone:          strings.TrimSpace(p.Phone),
		Relationship:   optStr(p.Relationship),
		Email:          optStr(p.Email),
		Source:         records.SourcePDFImport,
		SourceUploadID: &uploadID,
	}
}

// Package records owns the permanent health-record store: facts that have
// been committed for a pet, either manually or through the document import
// pipeline. Only the surface the pipeline needs is exposed here; the wider
// CRUD layer lives outside this service.
package records

import (
	"time"

	"github.com/google/uuid"
)

// Entity type identifiers used in audit entries.
const (
	EntityMedications       = "pet_medications"
	EntityVaccinations      = "pet_vaccinations"
	EntityConditions        = "pet_conditions"
	EntityAllergies         = "pet_allergies"
	EntityVets              = "pet_vets"
	EntityEmergencyContacts = "pet_emergency_contacts"
)

// Record provenance.
const (
	SourceManual    = "manual"
	SourcePDFImport = "pdf_import"
)

type Medication struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PetID          uuid.UUID  `db:"pet_id" json:"pet_id"`
	Name           string     `db:"name" json:"name"`
	Dosage         *string    `db:"dosage" json:"dosage,omitempty"`
	Frequency      *string    `db:"frequency" json:"frequency,omitempty"`
	StartDate      *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	Active         bool       `db:"active" json:"active"`
	Source         string     `db:"source" json:"source"`
	SourceUploadID *uuid.UUID `db:"source_upload_id" json:"source_upload_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type Vaccination struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PetID            uuid.UUID  `db:"pet_id" json:"pet_id"`
	Name             string     `db:"name" json:"name"`
	AdministeredDate *time.Time `db:"administered_date" json:"administered_date,omitempty"`
	ExpirationDate   *time.Time `db:"expiration_date" json:"expiration_date,omitempty"`
	LotNumber        *string    `db:"lot_number" json:"lot_number,omitempty"`
	VetName          *string    `db:"vet_name" json:"vet_name,omitempty"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	Source           string     `db:"source" json:"source"`
	SourceUploadID   *uuid.UUID `db:"source_upload_id" json:"source_upload_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

type Condition struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PetID          uuid.UUID  `db:"pet_id" json:"pet_id"`
	Name           string     `db:"name" json:"name"`
	DiagnosedDate  *time.Time `db:"diagnosed_date" json:"diagnosed_date,omitempty"`
	Status         string     `db:"status" json:"status"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	Source         string     `db:"source" json:"source"`
	SourceUploadID *uuid.UUID `db:"source_upload_id" json:"source_upload_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Valid condition statuses.
var validConditionStatuses = map[string]bool{
	"active": true, "resolved": true, "chronic": true,
}

type Allergy struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PetID          uuid.UUID  `db:"pet_id" json:"pet_id"`
	Name           string     `db:"name" json:"name"`
	Severity       *string    `db:"severity" json:"severity,omitempty"`
	Reaction       *string    `db:"reaction" json:"reaction,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	Source         string     `db:"source" json:"source"`
	SourceUploadID *uuid.UUID `db:"source_upload_id" json:"source_upload_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type Vet struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PetID          uuid.UUID  `db:"pet_id" json:"pet_id"`
	ClinicName     string     `db:"clinic_name" json:"clinic_name"`
	VetName        *string    `db:"vet_name" json:"vet_name,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Email          *string    `db:"email" json:"email,omitempty"`
	Address        *string    `db:"address" json:"address,omitempty"`
	Source         string     `db:"source" json:"source"`
	SourceUploadID *uuid.UUID `db:"source_upload_id" json:"source_upload_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type EmergencyContact struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PetID          uuid.UUID  `db:"pet_id" json:"pet_id"`
	Name           string     `db:"name" json:"name"`
	Phone          string     `db:"phone" json:"phone"`
	Relationship   *string    `db:"relationship" json:"relationship,omitempty"`
	Email          *string    `db:"email" json:"email,omitempty"`
	Source         string     `db:"source" json:"source"`
	SourceUploadID *uuid.UUID `db:"source_upload_id" json:"source_upload_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

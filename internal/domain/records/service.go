package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrValidation = errors.New("validation failed")
)

// Service validates and persists committed health records. The import
// pipeline is its main caller; every write carries provenance (source and,
// for imports, the originating upload).
type Service struct {
	Medications  MedicationRepository
	Vaccinations VaccinationRepository
	Conditions   ConditionRepository
	Allergies    AllergyRepository
	Vets         VetRepository
	Contacts     EmergencyContactRepository
}

func NewService(
	meds MedicationRepository,
	vaccs VaccinationRepository,
	conds ConditionRepository,
	allergies AllergyRepository,
	vets VetRepository,
	contacts EmergencyContactRepository,
) *Service {
	return &Service{
		Medications:  meds,
		Vaccinations: vaccs,
		Conditions:   conds,
		Allergies:    allergies,
		Vets:         vets,
		Contacts:     contacts,
	}
}

func validSource(source string) bool {
	return source == SourceManual || source == SourcePDFImport
}

func (s *Service) CreateMedication(ctx context.Context, m *Medication) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: medication name is required", ErrValidation)
	}
	if !validSource(m.Source) {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, m.Source)
	}
	if m.StartDate != nil && m.EndDate != nil && m.EndDate.Before(*m.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", ErrValidation)
	}
	return s.Medications.Create(ctx, m)
}

func (s *Service) CreateVaccination(ctx context.Context, v *Vaccination) error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("%w: vaccination name is required", ErrValidation)
	}
	if !validSource(v.Source) {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, v.Source)
	}
	if v.AdministeredDate != nil && v.ExpirationDate != nil && v.ExpirationDate.Before(*v.AdministeredDate) {
		return fmt.Errorf("%w: expiration precedes administration", ErrValidation)
	}
	return s.Vaccinations.Create(ctx, v)
}

func (s *Service) CreateCondition(ctx context.Context, c *Condition) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: condition name is required", ErrValidation)
	}
	if c.Status == "" {
		c.Status = "active"
	}
	if !validConditionStatuses[c.Status] {
		return fmt.Errorf("%w: unknown condition status %q", ErrValidation, c.Status)
	}
	if !validSource(c.Source) {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, c.Source)
	}
	return s.Conditions.Create(ctx, c)
}

func (s *Service) CreateAllergy(ctx context.Context, a *Allergy) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: allergy name is required", ErrValidation)
	}
	if !validSource(a.Source) {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, a.Source)
	}
	return s.Allergies.Create(ctx, a)
}

func (s *Service) CreateVet(ctx context.Context, v *Vet) error {
	if strings.TrimSpace(v.ClinicName) == "" {
		return fmt.Errorf("%w: clinic name is required", ErrValidation)
	}
	if !validSource(v.Source) {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, v.Source)
	}
	return s.Vets.Create(ctx, v)
}

func (s *Service) CreateEmergencyContact(ctx context.Context, e *EmergencyContact) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: contact name is required", ErrValidation)
	}
	if strings.TrimSpace(e.Phone) == "" {
		return fmt.Errorf("%w: contact phone is required", ErrValidation)
	}
	if !validSource(e.Source) {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, e.Source)
	}
	return s.Contacts.Create(ctx, e)
}

// ListMedications and friends exist for duplicate detection during import
// review; the full read API for health records lives in another service.

func (s *Service) ListMedications(ctx context.Context, petID uuid.UUID) ([]*Medication, error) {
	return s.Medications.ListByPet(ctx, petID)
}

func (s *Service) ListVaccinations(ctx context.Context, petID uuid.UUID) ([]*Vaccination, error) {
	return s.Vaccinations.ListByPet(ctx, petID)
}

func (s *Service) ListConditions(ctx context.Context, petID uuid.UUID) ([]*Condition, error) {
	return s.Conditions.ListByPet(ctx, petID)
}

func (s *Service) ListAllergies(ctx context.Context, petID uuid.UUID) ([]*Allergy, error) {
	return s.Allergies.ListByPet(ctx, petID)
}

func (s *Service) ListVets(ctx context.Context, petID uuid.UUID) ([]*Vet, error) {
	return s.Vets.ListByPet(ctx, petID)
}

func (s *Service) ListEmergencyContacts(ctx context.Context, petID uuid.UUID) ([]*EmergencyContact, error) {
	return s.Contacts.ListByPet(ctx, petID)
}

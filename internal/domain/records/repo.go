package records

import (
	"context"

	"github.com/google/uuid"
)

type MedicationRepository interface {
	Create(ctx context.Context, m *Medication) error
	ListByPet(ctx context.Context, petID uuid.UUID) ([]*Medication, error)
}

type VaccinationRepository interface {
	Create(ctx context.Context, v *Vaccination) error
	ListByPet(ctx context.Context, petID uuid.UUID) ([]*Vaccination, error)
}

type ConditionRepository interface {
	Create(ctx context.Context, c *Condition) error
	ListByPet(ctx context.Context, petID uuid.UUID) ([]*Condition, error)
}

type AllergyRepository interface {
	Create(ctx context.Context, a *Allergy) error
	ListByPet(ctx context.Context, petID uuid.UUID) ([]*Allergy, error)
}

type VetRepository interface {
	Create(ctx context.Context, v *Vet) error
	ListByPet(ctx context.Context, petID uuid.UUID) ([]*Vet, error)
}

type EmergencyContactRepository interface {
	Create(ctx context.Context, e *EmergencyContact) error
	ListByPet(ctx context.Context, petID uuid.UUID) ([]*EmergencyContact, error)
}

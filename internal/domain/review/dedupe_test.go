package review

import (
	"testing"
	"time"

	"github.com/pawvault/pawvault/internal/domain/records"
)

func strPtr(s string) *string { return &s }

func datePtr(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestFindDuplicateMedication(t *testing.T) {
	existing := []*records.Medication{
		{Name: "Carprofen", Dosage: strPtr("75mg"), Active: true},
		{Name: "Gabapentin", Dosage: strPtr("100mg"), Active: false},
	}

	cases := []struct {
		name string
		cand *records.Medication
		dup  bool
	}{
		{"same name and dosage", &records.Medication{Name: "carprofen", Dosage: strPtr("75MG")}, true},
		{"same name no details", &records.Medication{Name: "Carprofen"}, true},
		{"same name different dosage", &records.Medication{Name: "Carprofen", Dosage: strPtr("50mg")}, false},
		{"different name", &records.Medication{Name: "Meloxicam", Dosage: strPtr("75mg")}, false},
		{"matches inactive only", &records.Medication{Name: "Gabapentin", Dosage: strPtr("100mg")}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := findDuplicateMedication(existing, c.cand)
			if (got != nil) != c.dup {
				t.Errorf("duplicate = %v, want %v", got != nil, c.dup)
			}
		})
	}
}

func TestFindDuplicateVaccination(t *testing.T) {
	existing := []*records.Vaccination{
		{Name: "Rabies", AdministeredDate: datePtr("2024-03-01")},
		{Name: "Bordetella"},
	}

	cases := []struct {
		name string
		cand *records.Vaccination
		dup  bool
	}{
		{"same name same date", &records.Vaccination{Name: "rabies", AdministeredDate: datePtr("2024-03-01")}, true},
		{"same name different date", &records.Vaccination{Name: "Rabies", AdministeredDate: datePtr("2025-03-01")}, false},
		{"same name both undated", &records.Vaccination{Name: "Bordetella"}, true},
		{"dated vs undated", &records.Vaccination{Name: "Rabies"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := findDuplicateVaccination(existing, c.cand)
			if (got != nil) != c.dup {
				t.Errorf("duplicate = %v, want %v", got != nil, c.dup)
			}
		})
	}
}

func TestFindDuplicateCondition(t *testing.T) {
	existing := []*records.Condition{
		{Name: "Otitis externa", Status: "active"},
		{Name: "Kennel cough", Status: "resolved"},
	}

	if findDuplicateCondition(existing, &records.Condition{Name: "otitis externa"}) == nil {
		t.Error("active condition with same name not flagged")
	}
	if findDuplicateCondition(existing, &records.Condition{Name: "Kennel cough"}) != nil {
		t.Error("resolved condition blocked a new diagnosis")
	}
}

func TestFindDuplicateVetAndContact(t *testing.T) {
	vets := []*records.Vet{{ClinicName: "Oak Animal Hospital", Phone: strPtr("555-0100")}}
	if findDuplicateVet(vets, &records.Vet{ClinicName: "oak animal hospital", Phone: strPtr("555-0100")}) == nil {
		t.Error("same clinic and phone not flagged")
	}
	if findDuplicateVet(vets, &records.Vet{ClinicName: "Oak Animal Hospital", Phone: strPtr("555-0199")}) != nil {
		t.Error("different phone flagged")
	}

	contacts := []*records.EmergencyContact{{Name: "Sam Doe", Phone: "555-0100"}}
	if findDuplicateContact(contacts, &records.EmergencyContact{Name: "sam doe", Phone: "555-0100"}) == nil {
		t.Error("same name and phone not flagged")
	}
	if findDuplicateContact(contacts, &records.EmergencyContact{Name: "Sam Doe", Phone: "555-0111"}) != nil {
		t.Error("different phone flagged")
	}
}

package review

import (
	"github.com/pawvault/pawvault/internal/domain/records"
)

// Duplicate heuristics are deliberately conservative: a likely match is
// surfaced as a conflict for the user to resolve, never silently skipped
// or silently committed.

func sameOpt(a, b *string) bool {
	if a == nil || b == nil {
		return false
	}
	return normalize(*a) == normalize(*b)
}

// A medication duplicates an active one with the same name when the dosage
// or frequency also matches, or when the candidate carries neither detail
// to tell them apart.
func findDuplicateMedication(existing []*records.Medication, cand *records.Medication) *records.Medication {
	name := normalize(cand.Name)
	for _, m := range existing {
		if !m.Active || normalize(m.Name) != name {
			continue
		}
		if sameOpt(m.Dosage, cand.Dosage) || sameOpt(m.Frequency, cand.Frequency) {
			return m
		}
		if cand.Dosage == nil && cand.Frequency == nil {
			return m
		}
	}
	return nil
}

// A vaccination duplicates one with the same name given on the same date.
// Two undated entries with the same name also collide.
func findDuplicateVaccination(existing []*records.Vaccination, cand *records.Vaccination) *records.Vaccination {
	name := normalize(cand.Name)
	for _, v := range existing {
		if normalize(v.Name) != name {
			continue
		}
		switch {
		case v.AdministeredDate == nil && cand.AdministeredDate == nil:
			return v
		case v.AdministeredDate != nil && cand.AdministeredDate != nil &&
			v.AdministeredDate.Equal(*cand.AdministeredDate):
			return v
		}
	}
	return nil
}

// A condition duplicates any unresolved condition with the same name.
func findDuplicateCondition(existing []*records.Condition, cand *records.Condition) *records.Condition {
	name := normalize(cand.Name)
	for _, c := range existing {
		if c.Status != "resolved" && normalize(c.Name) == name {
			return c
		}
	}
	return nil
}

// An allergy duplicates any allergy with the same name.
func findDuplicateAllergy(existing []*records.Allergy, cand *records.Allergy) *records.Allergy {
	name := normalize(cand.Name)
	for _, a := range existing {
		if normalize(a.Name) == name {
			return a
		}
	}
	return nil
}

// A vet duplicates one at the same clinic with the same phone number.
func findDuplicateVet(existing []*records.Vet, cand *records.Vet) *records.Vet {
	clinic := normalize(cand.ClinicName)
	for _, v := range existing {
		if normalize(v.ClinicName) == clinic && sameOpt(v.Phone, cand.Phone) {
			return v
		}
	}
	return nil
}

// An emergency contact duplicates one with the same name and phone.
func findDuplicateContact(existing []*records.EmergencyContact, cand *records.EmergencyContact) *records.EmergencyContact {
	name := normalize(cand.Name)
	phone := normalize(cand.Phone)
	for _, c := range existing {
		if normalize(c.Name) == name && normalize(c.Phone) == phone {
			return c
		}
	}
	return nil
}

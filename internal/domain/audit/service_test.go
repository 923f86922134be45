package audit

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =========== Mock Repository ===========

type mockRepo struct {
	entries []*Entry
}

func newMockRepo() *mockRepo {
	return &mockRepo{}
}

func (m *mockRepo) Create(_ context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockRepo) ListByPet(_ context.Context, petID uuid.UUID, filter ListFilter, limit, offset int) ([]*Entry, int, error) {
	var matched []*Entry
	for _, e := range m.entries {
		if e.PetID != petID {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// =========== Tests ===========

func TestDiffFields(t *testing.T) {
	oldValues := json.RawMessage(`{"name":"Carprofen","dosage":"50mg","notes":"with food"}`)
	newValues := json.RawMessage(`{"name":"Carprofen","dosage":"75mg","frequency":"twice daily"}`)

	fields, err := DiffFields(oldValues, newValues)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"dosage", "frequency", "notes"}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("DiffFields = %v, want %v", fields, want)
	}
}

func TestDiffFieldsIdentical(t *testing.T) {
	v := json.RawMessage(`{"name":"Rabies"}`)
	fields, err := DiffFields(v, v)
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 0 {
		t.Errorf("identical snapshots diff = %v", fields)
	}
}

func TestEntryValidate(t *testing.T) {
	values := json.RawMessage(`{"name":"x"}`)

	cases := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{"create ok", Entry{Action: ActionCreate, NewValues: values}, false},
		{"create with old values", Entry{Action: ActionCreate, OldValues: values, NewValues: values}, true},
		{"create without new values", Entry{Action: ActionCreate}, true},
		{"delete ok", Entry{Action: ActionDelete, OldValues: values}, false},
		{"delete with new values", Entry{Action: ActionDelete, OldValues: values, NewValues: values}, true},
		{"update ok", Entry{Action: ActionUpdate, OldValues: values, NewValues: values}, false},
		{"update missing old", Entry{Action: ActionUpdate, NewValues: values}, true},
		{"unknown action", Entry{Action: "upsert", NewValues: values}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.entry.Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestServiceRecordCreate(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, zerolog.Nop())
	petID := uuid.New()
	entityID := uuid.New()

	record := map[string]string{"name": "Rabies"}
	if err := svc.RecordCreate(context.Background(), petID, "pet_vaccinations", entityID, record, "user-1", "pdf_import"); err != nil {
		t.Fatal(err)
	}

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.Action != ActionCreate || e.OldValues != nil || e.NewValues == nil {
		t.Errorf("create entry shape wrong: %+v", e)
	}
	if e.Source != "pdf_import" || e.ChangedByUserID != "user-1" {
		t.Errorf("provenance wrong: %+v", e)
	}
}

func TestServiceRecordUpdateComputesChangedFields(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, zerolog.Nop())
	petID := uuid.New()

	oldRec := map[string]string{"name": "Carprofen", "dosage": "50mg"}
	newRec := map[string]string{"name": "Carprofen", "dosage": "75mg"}
	if err := svc.RecordUpdate(context.Background(), petID, "pet_medications", uuid.New(), oldRec, newRec, "user-1", "manual"); err != nil {
		t.Fatal(err)
	}

	e := repo.entries[0]
	if !reflect.DeepEqual(e.ChangedFields, []string{"dosage"}) {
		t.Errorf("changed fields = %v, want [dosage]", e.ChangedFields)
	}
}

func TestServiceListFilters(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, zerolog.Nop())
	petID := uuid.New()
	ctx := context.Background()

	_ = svc.RecordCreate(ctx, petID, "pet_vaccinations", uuid.New(), map[string]string{"name": "Rabies"}, "u", "pdf_import")
	_ = svc.RecordCreate(ctx, petID, "pet_medications", uuid.New(), map[string]string{"name": "Carprofen"}, "u", "manual")
	_ = svc.RecordDelete(ctx, petID, "pet_medications", uuid.New(), map[string]string{"name": "Old"}, "u", "manual")

	items, total, err := svc.ListByPet(ctx, petID, ListFilter{EntityType: "pet_medications"}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("entity filter: total=%d len=%d, want 2/2", total, len(items))
	}

	items, total, err = svc.ListByPet(ctx, petID, ListFilter{Action: ActionDelete}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("action filter: total=%d len=%d, want 1/1", total, len(items))
	}

	if _, _, err := svc.ListByPet(ctx, petID, ListFilter{Action: "merge"}, 10, 0); err == nil {
		t.Error("unknown action filter accepted")
	}
}

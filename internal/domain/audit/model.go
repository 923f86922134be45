// Package audit records every mutation of a pet's health records in an
// append-only trail: who changed what, when, from which source, and the
// before/after snapshots. Entries are never updated or deleted.
package audit

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

type Entry struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	PetID           uuid.UUID       `db:"pet_id" json:"pet_id"`
	EntityType      string          `db:"entity_type" json:"entity_type"`
	EntityID        uuid.UUID       `db:"entity_id" json:"entity_id"`
	Action          Action          `db:"action" json:"action"`
	OldValues       json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues       json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	ChangedFields   []string        `db:"changed_fields" json:"changed_fields,omitempty"`
	ChangedByUserID string          `db:"changed_by_user_id" json:"changed_by_user_id"`
	Source          string          `db:"source" json:"source"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Validate enforces the shape invariants per action: creates carry only new
// values, deletes only old values, updates both plus the changed field list.
func (e *Entry) Validate() error {
	if !e.Action.Valid() {
		return fmt.Errorf("unknown action %q", e.Action)
	}
	switch e.Action {
	case ActionCreate:
		if e.OldValues != nil {
			return fmt.Errorf("create entries must not carry old values")
		}
		if e.NewValues == nil {
			return fmt.Errorf("create entries require new values")
		}
	case ActionDelete:
		if e.NewValues != nil {
			return fmt.Errorf("delete entries must not carry new values")
		}
		if e.OldValues == nil {
			return fmt.Errorf("delete entries require old values")
		}
	case ActionUpdate:
		if e.OldValues == nil || e.NewValues == nil {
			return fmt.Errorf("update entries require old and new values")
		}
	}
	return nil
}

// DiffFields returns the sorted set of top-level keys whose values differ
// between the two snapshots, including keys present on only one side.
func DiffFields(oldValues, newValues json.RawMessage) ([]string, error) {
	var oldMap, newMap map[string]interface{}
	if len(oldValues) > 0 {
		if err := json.Unmarshal(oldValues, &oldMap); err != nil {
			return nil, fmt.Errorf("decode old values: %w", err)
		}
	}
	if len(newValues) > 0 {
		if err := json.Unmarshal(newValues, &newMap); err != nil {
			return nil, fmt.Errorf("decode new values: %w", err)
		}
	}

	changed := map[string]bool{}
	for k, ov := range oldMap {
		nv, ok := newMap[k]
		if !ok || !reflect.DeepEqual(ov, nv) {
			changed[k] = true
		}
	}
	for k := range newMap {
		if _, ok := oldMap[k]; !ok {
			changed[k] = true
		}
	}

	fields := make([]string, 0, len(changed))
	for k := range changed {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields, nil
}

package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// RecordCreate appends a create entry snapshotting the new record.
func (s *Service) RecordCreate(ctx context.Context, petID uuid.UUID, entityType string, entityID uuid.UUID, newRecord interface{}, userID, source string) error {
	newValues, err := json.Marshal(newRecord)
	if err != nil {
		return fmt.Errorf("snapshot new record: %w", err)
	}
	return s.append(ctx, &Entry{
		PetID:           petID,
		EntityType:      entityType,
		EntityID:        entityID,
		Action:          ActionCreate,
		NewValues:       newValues,
		ChangedByUserID: userID,
		Source:          source,
	})
}

// RecordUpdate appends an update entry with both snapshots and the computed
// changed-field set.
func (s *Service) RecordUpdate(ctx context.Context, petID uuid.UUID, entityType string, entityID uuid.UUID, oldRecord, newRecord interface{}, userID, source string) error {
	oldValues, err := json.Marshal(oldRecord)
	if err != nil {
		return fmt.Errorf("snapshot old record: %w", err)
	}
	newValues, err := json.Marshal(newRecord)
	if err != nil {
		return fmt.Errorf("snapshot new record: %w", err)
	}
	changed, err := DiffFields(oldValues, newValues)
	if err != nil {
		return err
	}
	return s.append(ctx, &Entry{
		PetID:           petID,
		EntityType:      entityType,
		EntityID:        entityID,
		Action:          ActionUpdate,
		OldValues:       oldValues,
		NewValues:       newValues,
		ChangedFields:   changed,
		ChangedByUserID: userID,
		Source:          source,
	})
}

// RecordDelete appends a delete entry snapshotting the record as it was.
func (s *Service) RecordDelete(ctx context.Context, petID uuid.UUID, entityType string, entityID uuid.UUID, oldRecord interface{}, userID, source string) error {
	oldValues, err := json.Marshal(oldRecord)
	if err != nil {
		return fmt.Errorf("snapshot old record: %w", err)
	}
	return s.append(ctx, &Entry{
		PetID:           petID,
		EntityType:      entityType,
		EntityID:        entityID,
		Action:          ActionDelete,
		OldValues:       oldValues,
		ChangedByUserID: userID,
		Source:          source,
	})
}

func (s *Service) append(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid audit entry: %w", err)
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *Service) ListByPet(ctx context.Context, petID uuid.UUID, filter ListFilter, limit, offset int) ([]*Entry, int, error) {
	if filter.Action != "" && !filter.Action.Valid() {
		return nil, 0, fmt.Errorf("unknown action %q", filter.Action)
	}
	return s.repo.ListByPet(ctx, petID, filter, limit, offset)
}

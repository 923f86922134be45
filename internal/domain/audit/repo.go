package audit

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a pet's trail. Zero values mean "no filter".
type ListFilter struct {
	EntityType string
	Action     Action
}

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	ListByPet(ctx context.Context, petID uuid.UUID, filter ListFilter, limit, offset int) ([]*Entry, int, error)
}

package uploads

import (
	"context"

	"github.com/google/uuid"

	"github.com/pawvault/pawvault/internal/platform/docai"
)

type Repository interface {
	Create(ctx context.Context, u *DocumentUpload) error
	GetByID(ctx context.Context, id uuid.UUID) (*DocumentUpload, error)
	ListByPet(ctx context.Context, petID uuid.UUID, limit, offset int) ([]*DocumentUpload, int, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Transition performs a compare-and-set status move: the row changes to
	// `to` only if its current status is one of `from`. Returns false when
	// no row matched, which callers translate into an invalid-state or
	// already-in-progress error based on the live status.
	Transition(ctx context.Context, id uuid.UUID, from []Status, to Status) (bool, error)

	// SaveClassification records the classifier output and moves
	// classifying -> classified in one statement.
	SaveClassification(ctx context.Context, id uuid.UUID, c *docai.Classification) (bool, error)

	// MarkFailed moves an in-flight upload to failed with a user-facing
	// message. Classification annotations are left untouched.
	MarkFailed(ctx context.Context, id uuid.UUID, message string) (bool, error)

	// MarkCompleted moves processing -> completed and clears any error.
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)
}

// CandidateStore is the slice of the review layer the registry needs:
// replacing candidates after a successful extraction and discarding them
// when the upload is deleted.
type CandidateStore interface {
	ReplaceForUpload(ctx context.Context, uploadID, petID uuid.UUID, set *docai.RecordSet) error
	DeleteForUpload(ctx context.Context, uploadID uuid.UUID) error
}

package review

import (
	"context"

	"github.com/google/uuid"

	"github.com/pawvault/pawvault/internal/platform/docai"
)

type CandidateRepository interface {
	// ReplaceForUpload swaps the upload's candidate set atomically, so a
	// re-run of extraction never accumulates duplicates.
	ReplaceForUpload(ctx context.Context, uploadID, petID uuid.UUID, set *docai.RecordSet) error
	DeleteForUpload(ctx context.Context, uploadID uuid.UUID) error
	ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]*CandidateRecord, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
}

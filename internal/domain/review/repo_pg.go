package review

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pawvault/pawvault/internal/platform/db"
	"github.com/pawvault/pawvault/internal/platform/docai"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type candidateRepoPG struct{ pool *pgxpool.Pool }

func NewCandidateRepoPG(pool *pgxpool.Pool) CandidateRepository {
	return &candidateRepoPG{pool: pool}
}

func (r *candidateRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const candidateCols = `id, upload_id, pet_id, kind, payload, confidence,
	needs_review, review_fields, created_at`

func scanCandidate(row pgx.Row) (*CandidateRecord, error) {
	var c CandidateRecord
	err := row.Scan(&c.ID, &c.UploadID, &c.PetID, &c.Kind, &c.Payload,
		&c.Confidence, &c.NeedsReview, &c.ReviewFields, &c.CreatedAt)
	return &c, err
}

func (r *candidateRepoPG) ReplaceForUpload(ctx context.Context, uploadID, petID uuid.UUID, set *docai.RecordSet) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM import_candidate WHERE upload_id = $1`, uploadID); err != nil {
		return err
	}
	for _, rec := range set.Records {
		_, err := q.Exec(ctx, `
			INSERT INTO import_candidate (id, upload_id, pet_id, kind, payload,
				confidence, needs_review, review_fields)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			uuid.New(), uploadID, petID, rec.Kind, rec.Data,
			rec.Confidence, rec.NeedsReview, rec.ReviewFields)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *candidateRepoPG) DeleteForUpload(ctx context.Context, uploadID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM import_candidate WHERE upload_id = $1`, uploadID)
	return err
}

func (r *candidateRepoPG) ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]*CandidateRecord, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+candidateCols+` FROM import_candidate WHERE upload_id = $1 ORDER BY created_at`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CandidateRecord
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *candidateRepoPG) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM import_candidate WHERE id = ANY($1)`, ids)
	return err
}

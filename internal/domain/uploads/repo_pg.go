package uploads

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const uploadCols = `id, pet_id, uploader_id, original_filename, mime_type, file_type,
	file_size_bytes, storage_key, page_count, status,
	detected_document_type, classify_confidence, classify_explanation,
	summary_medications, summary_conditions, summary_vaccinations, summary_allergies,
	error_message, created_at, updated_at`

func scanUpload(row pgx.Row) (*DocumentUpload, error) {
	var u DocumentUpload
	err := row.Scan(&u.ID, &u.PetID, &u.UploaderID, &u.OriginalFilename, &u.MimeType, &u.FileType,
		&u.FileSizeBytes, &u.StorageKey, &u.PageCount, &u.Status,
		&u.DetectedDocumentType, &u.ClassifyConfidence, &u.ClassifyExplanation,
		&u.SummaryMedications, &u.SummaryConditions, &u.SummaryVaccinations, &u.SummaryAllergies,
		&u.ErrorMessage, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *repoPG) Create(ctx context.Context, u *DocumentUpload) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO document_upload (id, pet_id, uploader_id, original_filename,
			mime_type, file_type, file_size_bytes, storage_key, page_count, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		u.ID, u.PetID, u.UploaderID, u.OriginalFilename,
		u.MimeType, u.FileType, u.FileSizeBytes, u.StorageKey, u.PageCount, u.Status)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*DocumentUpload, error) {
	return scanUpload(r.conn(ctx).QueryRow(ctx,
		`SELECT `+uploadCols+` FROM document_upload WHERE id = $1`, id))
}

func (r *repoPG) ListByPet(ctx context.Context, petID uuid.UUID, limit, offset int) ([]*DocumentUpload, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM document_upload WHERE pet_id = $1`, petID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+uploadCols+` FROM document_upload WHERE pet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		petID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*DocumentUpload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM document_upload WHERE id = $1`, id)
	return err
}

func (r *repoPG) Transition(ctx context.Context, id uuid.UUID, from []Status, to Status) (bool, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	// A retry out of failed must also drop the stale error message, so the
	// failed <=> error_message pairing holds while the new task runs.
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE document_upload SET status = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)`,
		id, to, fromStrs)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) SaveClassification(ctx context.Context, id uuid.UUID, c *docai.Classification) (bool, error) {
	var explanation *string
	if c.Explanation != "" {
		explanation = &c.Explanation
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE document_upload SET
			status = $2, detected_document_type = $3, classify_confidence = $4,
			classify_explanation = $5, summary_medications = $6, summary_conditions = $7,
			summary_vaccinations = $8, summary_allergies = $9,
			error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $10`,
		id, StatusClassified, c.DocumentType, c.Confidence,
		explanation, c.Summary.MedicationsCount, c.Summary.ConditionsCount,
		c.Summary.VaccinationsCount, c.Summary.AllergiesCount,
		StatusClassifying)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) MarkFailed(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE document_upload SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)`,
		id, StatusFailed, message, []string{string(StatusClassifying), string(StatusProcessing)})
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE document_upload SET status = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		id, StatusCompleted, StatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

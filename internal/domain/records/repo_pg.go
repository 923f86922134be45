package records

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pawvault/pawvault/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Medications ===========

type medicationRepoPG struct{ pool *pgxpool.Pool }

func NewMedicationRepoPG(pool *pgxpool.Pool) MedicationRepository {
	return &medicationRepoPG{pool: pool}
}

const medCols = `id, pet_id, name, dosage, frequency, start_date, end_date,
	notes, active, source, source_upload_id, created_at, updated_at`

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.PetID, &m.Name, &m.Dosage, &m.Frequency,
		&m.StartDate, &m.EndDate, &m.Notes, &m.Active,
		&m.Source, &m.SourceUploadID, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *medicationRepoPG) Create(ctx context.Context, m *Medication) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO pet_medications (id, pet_id, name, dosage, frequency,
			start_date, end_date, notes, active, source, source_upload_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.PetID, m.Name, m.Dosage, m.Frequency,
		m.StartDate, m.EndDate, m.Notes, m.Active, m.Source, m.SourceUploadID)
	return err
}

func (r *medicationRepoPG) ListByPet(ctx context.Context, petID uuid.UUID) ([]*Medication, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+medCols+` FROM pet_medications WHERE pet_id = $1 ORDER BY created_at DESC`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// =========== Vaccinations ===========

type vaccinationRepoPG struct{ pool *pgxpool.Pool }

func NewVaccinationRepoPG(pool *pgxpool.Pool) VaccinationRepository {
	return &vaccinationRepoPG{pool: pool}
}

const vaccCols = `id, pet_id, name, administered_date, expiration_date,
	lot_number, vet_name, notes, source, source_upload_id, created_at, updated_at`

func scanVaccination(row pgx.Row) (*Vaccination, error) {
	var v Vaccination
	err := row.Scan(&v.ID, &v.PetID, &v.Name, &v.AdministeredDate, &v.ExpirationDate,
		&v.LotNumber, &v.VetName, &v.Notes,
		&v.Source, &v.SourceUploadID, &v.CreatedAt, &v.UpdatedAt)
	return &v, err
}

func (r *vaccinationRepoPG) Create(ctx context.Context, v *Vaccination) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO pet_vaccinations (id, pet_id, name, administered_date,
			expiration_date, lot_number, vet_name, notes, source, source_upload_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		v.ID, v.PetID, v.Name, v.AdministeredDate,
		v.ExpirationDate, v.LotNumber, v.VetName, v.Notes, v.Source, v.SourceUploadID)
	return err
}

func (r *vaccinationRepoPG) ListByPet(ctx context.Context, petID uuid.UUID) ([]*Vaccination, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+vaccCols+` FROM pet_vaccinations WHERE pet_id = $1 ORDER BY created_at DESC`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Vaccination
	for rows.Next() {
		v, err := scanVaccination(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

// =========== Conditions ===========

type conditionRepoPG struct{ pool *pgxpool.Pool }

func NewConditionRepoPG(pool *pgxpool.Pool) ConditionRepository {
	return &conditionRepoPG{pool: pool}
}

const condCols = `id, pet_id, name, diagnosed_date, status, notes,
	source, source_upload_id, created_at, updated_at`

func scanCondition(row pgx.Row) (*Condition, error) {
	var c Condition
	err := row.Scan(&c.ID, &c.PetID, &c.Name, &c.DiagnosedDate, &c.Status, &c.Notes,
		&c.Source, &c.SourceUploadID, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *conditionRepoPG) Create(ctx context.Context, c *Condition) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO pet_conditions (id, pet_id, name, diagnosed_date, status,
			notes, source, source_upload_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.PetID, c.Name, c.DiagnosedDate, c.Status,
		c.Notes, c.Source, c.SourceUploadID)
	return err
}

func (r *conditionRepoPG) ListByPet(ctx context.Context, petID uuid.UUID) ([]*Condition, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+condCols+` FROM pet_conditions WHERE pet_id = $1 ORDER BY created_at DESC`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Condition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// =========== Allergies ===========

type allergyRepoPG struct{ pool *pgxpool.Pool }

func NewAllergyRepoPG(pool *pgxpool.Pool) AllergyRepository {
	return &allergyRepoPG{pool: pool}
}

const allergyCols = `id, pet_id, name, severity, reaction, notes,
	source, source_upload_id, created_at, updated_at`

func scanAllergy(row pgx.Row) (*Allergy, error) {
	var a Allergy
	err := row.Scan(&a.ID, &a.PetID, &a.Name, &a.Severity, &a.Reaction, &a.Notes,
		&a.Source, &a.SourceUploadID, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *allergyRepoPG) Create(ctx context.Context, a *Allergy) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO pet_allergies (id, pet_id, name, severity, reaction,
			notes, source, source_upload_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.PetID, a.Name, a.Severity, a.Reaction,
		a.Notes, a.Source, a.SourceUploadID)
	return err
}

func (r *allergyRepoPG) ListByPet(ctx context.Context, petID uuid.UUID) ([]*Allergy, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+allergyCols+` FROM pet_allergies WHERE pet_id = $1 ORDER BY created_at DESC`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Allergy
	for rows.Next() {
		a, err := scanAllergy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// =========== Vets ===========

type vetRepoPG struct{ pool *pgxpool.Pool }

func NewVetRepoPG(pool *pgxpool.Pool) VetRepository {
	return &vetRepoPG{pool: pool}
}

const vetCols = `id, pet_id, clinic_name, vet_name, phone, email, address,
	source, source_upload_id, created_at, updated_at`

func scanVet(row pgx.Row) (*Vet, error) {
	var v Vet
	err := row.Scan(&v.ID, &v.PetID, &v.ClinicName, &v.VetName, &v.Phone, &v.Email,
		&v.Address, &v.Source, &v.SourceUploadID, &v.CreatedAt, &v.UpdatedAt)
	return &v, err
}

func (r *vetRepoPG) Create(ctx context.Context, v *Vet) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO pet_vets (id, pet_id, clinic_name, vet_name, phone, email,
			address, source, source_upload_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		v.ID, v.PetID, v.ClinicName, v.VetName, v.Phone, v.Email,
		v.Address, v.Source, v.SourceUploadID)
	return err
}

func (r *vetRepoPG) ListByPet(ctx context.Context, petID uuid.UUID) ([]*Vet, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+vetCols+` FROM pet_vets WHERE pet_id = $1 ORDER BY created_at DESC`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Vet
	for rows.Next() {
		v, err := scanVet(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

// =========== Emergency contacts ===========

type emergencyContactRepoPG struct{ pool *pgxpool.Pool }

func NewEmergencyContactRepoPG(pool *pgxpool.Pool) EmergencyContactRepository {
	return &emergencyContactRepoPG{pool: pool}
}

const contactCols = `id, pet_id, name, phone, relationship, email,
	source, source_upload_id, created_at, updated_at`

func scanContact(row pgx.Row) (*EmergencyContact, error) {
	var e EmergencyContact
	err := row.Scan(&e.ID, &e.PetID, &e.Name, &e.Phone, &e.Relationship, &e.Email,
		&e.Source, &e.SourceUploadID, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *emergencyContactRepoPG) Create(ctx context.Context, e *EmergencyContact) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO pet_emergency_contacts (id, pet_id, name, phone, relationship,
			email, source, source_upload_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.PetID, e.Name, e.Phone, e.Relationship,
		e.Email, e.Source, e.SourceUploadID)
	return err
}

func (r *emergencyContactRepoPG) ListByPet(ctx context.Context, petID uuid.UUID) ([]*EmergencyContact, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+contactCols+` FROM pet_emergency_contacts WHERE pet_id = $1 ORDER BY created_at DESC`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*EmergencyContact
	for rows.Next() {
		e, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

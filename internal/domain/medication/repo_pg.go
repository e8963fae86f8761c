package medication

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/db"
)

type repoPG struct {
	db   db.Querier
	kind Kind
}

// NewRepoPG returns the repository for one kind's table.
func NewRepoPG(q db.Querier, kind Kind) Repository {
	return &repoPG{db: q, kind: kind}
}

const cols = `id, patient_id, clinician_id, name, strength, amount, frequency, route, status, date, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Medication, error) {
	m := Medication{Kind: r.kind}
	err := row.Scan(&m.ID, &m.PatientID, &m.ClinicianID, &m.Name, &m.Strength, &m.Amount, &m.Frequency,
		&m.Route, &m.Status, &m.Date, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *repoPG) notFound(id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", r.kind, id, apperr.ErrNotFound)
}

func (r *repoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO `+r.kind.Table()+` (id, patient_id, clinician_id, name, strength, amount, frequency, route, status, date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.ClinicianID, m.Name, m.Strength, m.Amount, m.Frequency, m.Route, m.Status, m.Date,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Invalid("patient_id", "patient or clinician does not exist")
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := r.scan(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+cols+` FROM `+r.kind.Table()+` WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, r.notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *repoPG) Update(ctx context.Context, m *Medication) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE `+r.kind.Table()+` SET clinician_id=$2, name=$3, strength=$4, amount=$5, frequency=$6, route=$7,
			status=$8, date=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.ClinicianID, m.Name, m.Strength, m.Amount, m.Frequency, m.Route, m.Status, m.Date,
	).Scan(&m.UpdatedAt)
	if db.IsNoRows(err) {
		return r.notFound(m.ID)
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM `+r.kind.Table()+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.notFound(id)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Medication, int, error) {
	var total int
	if err := db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM `+r.kind.Table()+` WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.Conn(ctx, r.db).Query(ctx,
		`SELECT `+cols+` FROM `+r.kind.Table()+` WHERE patient_id = $1 ORDER BY date DESC, created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Medication
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

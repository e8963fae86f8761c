package laboratory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/db"
)

type repoPG struct{ db db.Querier }

func NewRepoPG(q db.Querier) Repository {
	return &repoPG{db: q}
}

const cols = `id, patient_id, test_name, result_summary, performed_at, fileurl, file_object, content_type, created_at`

func scan(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.PatientID, &r.TestName, &r.ResultSummary, &r.PerformedAt, &r.FileURL,
		&r.FileObject, &r.ContentType, &r.CreatedAt)
	return &r, err
}

func (p *repoPG) Create(ctx context.Context, r *Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	err := db.Conn(ctx, p.db).QueryRow(ctx, `
		INSERT INTO laboratory_records (id, patient_id, test_name, result_summary, performed_at, fileurl, file_object, content_type)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		r.ID, r.PatientID, r.TestName, r.ResultSummary, r.PerformedAt, r.FileURL, r.FileObject, r.ContentType,
	).Scan(&r.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Invalid("patient_id", "patient does not exist")
	}
	return err
}

func (p *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	r, err := scan(db.Conn(ctx, p.db).QueryRow(ctx, `SELECT `+cols+` FROM laboratory_records WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("laboratory record %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (p *repoPG) Update(ctx context.Context, r *Record) error {
	tag, err := db.Conn(ctx, p.db).Exec(ctx, `
		UPDATE laboratory_records SET test_name=$2, result_summary=$3, performed_at=$4 WHERE id = $1`,
		r.ID, r.TestName, r.ResultSummary, r.PerformedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("laboratory record %s: %w", r.ID, apperr.ErrNotFound)
	}
	return nil
}

func (p *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, p.db).Exec(ctx, `DELETE FROM laboratory_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("laboratory record %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (p *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := db.Conn(ctx, p.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM laboratory_records WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, p.db).Query(ctx,
		`SELECT `+cols+` FROM laboratory_records WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

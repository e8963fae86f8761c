package clinical

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/db"
)

type allergyRepoPG struct{ db db.Querier }

func NewAllergyRepoPG(q db.Querier) AllergyRepository {
	return &allergyRepoPG{db: q}
}

const allergyCols = `id, patient_id, allergen, reaction, severity, noted_at, created_at`

func scanAllergy(row pgx.Row) (*Allergy, error) {
	var a Allergy
	err := row.Scan(&a.ID, &a.PatientID, &a.Allergen, &a.Reaction, &a.Severity, &a.NotedAt, &a.CreatedAt)
	return &a, err
}

func (r *allergyRepoPG) Create(ctx context.Context, a *Allergy) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO allergy (id, patient_id, allergen, reaction, severity, noted_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		a.ID, a.PatientID, a.Allergen, a.Reaction, a.Severity, a.NotedAt,
	).Scan(&a.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Invalid("patient_id", "patient does not exist")
	}
	return err
}

func (r *allergyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Allergy, error) {
	a, err := scanAllergy(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+allergyCols+` FROM allergy WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("allergy %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *allergyRepoPG) Update(ctx context.Context, a *Allergy) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `
		UPDATE allergy SET allergen=$2, reaction=$3, severity=$4, noted_at=$5 WHERE id = $1`,
		a.ID, a.Allergen, a.Reaction, a.Severity, a.NotedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("allergy %s: %w", a.ID, apperr.ErrNotFound)
	}
	return nil
}

func (r *allergyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM allergy WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("allergy %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (r *allergyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Allergy, int, error) {
	var total int
	if err := db.Conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM allergy WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.db).Query(ctx,
		`SELECT `+allergyCols+` FROM allergy WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Allergy
	for rows.Next() {
		a, err := scanAllergy(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

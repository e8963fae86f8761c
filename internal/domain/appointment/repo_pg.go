package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/db"
)

type repoPG struct{ db db.Querier }

func NewRepoPG(q db.Querier) Repository {
	return &repoPG{db: q}
}

const cols = `id, patient_id, clinician_id, date, service, weight, gestational_age, status, payment_status, created_at, updated_at`

func scan(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.ClinicianID, &a.Date, &a.Service, &a.Weight, &a.GestationalAge,
		&a.Status, &a.PaymentStatus, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

// writeErr maps storage errors onto the appointment taxonomy. The partial
// unique index on the active slot surfaces as 23505.
func writeErr(id uuid.UUID, err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err):
		return apperr.Invalid("patient_id", "patient or clinician does not exist")
	case db.IsNoRows(err):
		return fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, clinician_id, date, service, weight, gestational_age, status, payment_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.ClinicianID, a.Date, a.Service, a.Weight, a.GestationalAge, a.Status, a.PaymentStatus,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return writeErr(a.ID, err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scan(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+cols+` FROM appointment WHERE id = $1`, id))
	if err != nil {
		return nil, writeErr(id, err)
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE appointment SET patient_id=$2, clinician_id=$3, date=$4, service=$5, weight=$6, gestational_age=$7,
			status=$8, payment_status=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.PatientID, a.ClinicianID, a.Date, a.Service, a.Weight, a.GestationalAge, a.Status, a.PaymentStatus,
	).Scan(&a.UpdatedAt)
	return writeErr(a.ID, err)
}

// Delete removes only the appointment row. Vitals keyed by the same id stay.
func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func whereClause(f ListFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.ClinicianID != nil {
		add("clinician_id = $%d", *f.ClinicianID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date < $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where, args := whereClause(f)

	var total int
	if err := db.Conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.db).Query(ctx,
		`SELECT `+cols+` FROM appointment`+where+fmt.Sprintf(` ORDER BY date DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) FindBySlot(ctx context.Context, slot Slot, excludeID uuid.UUID) (*Appointment, error) {
	a, err := scan(db.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT `+cols+` FROM appointment
		WHERE patient_id = $1 AND clinician_id = $2 AND date = $3 AND status <> 'Canceled' AND id <> $4
		LIMIT 1`,
		slot.PatientID, slot.ClinicianID, slot.Date, excludeID))
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find appointment by slot: %w", err)
	}
	return a, nil
}

func (r *repoPG) exec(ctx context.Context, id uuid.UUID, sql string, args ...any) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return writeErr(id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.exec(ctx, id, `UPDATE appointment SET status = $2, updated_at = NOW() WHERE id = $1`, status)
}

func (r *repoPG) SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.exec(ctx, id, `UPDATE appointment SET payment_status = $2, updated_at = NOW() WHERE id = $1`, status)
}

func (r *repoPG) SetMeasurements(ctx context.Context, id uuid.UUID, weight *float64, gestationalAge *int) error {
	return r.exec(ctx, id,
		`UPDATE appointment SET weight = $2, gestational_age = $3, updated_at = NOW() WHERE id = $1`,
		weight, gestationalAge)
}

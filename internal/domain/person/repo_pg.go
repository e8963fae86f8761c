package person

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/db"
)

// =========== Person Repository ===========

type personRepoPG struct{ db db.Querier }

func NewPersonRepoPG(q db.Querier) PersonRepository {
	return &personRepoPG{db: q}
}

const personCols = `id, first_name, middle_name, last_name, birth_date, sex, contact_number, email,
	address, status, profile_picture_url, created_at, updated_at`

func personDest(p *Person) []any {
	return []any{&p.ID, &p.FirstName, &p.MiddleName, &p.LastName, &p.BirthDate, &p.Sex, &p.ContactNumber,
		&p.Email, &p.Address, &p.Status, &p.ProfilePictureURL, &p.CreatedAt, &p.UpdatedAt}
}

func notFound(kind string, id uuid.UUID, err error) error {
	if db.IsNoRows(err) {
		return fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
	}
	return err
}

func (r *personRepoPG) Create(ctx context.Context, p *Person) error {
	p.ID = uuid.New()
	return db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO person (id, first_name, middle_name, last_name, birth_date, sex, contact_number, email, address, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.MiddleName, p.LastName, p.BirthDate, p.Sex, p.ContactNumber, p.Email, p.Address, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *personRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Person, error) {
	var p Person
	err := db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+personCols+` FROM person WHERE id = $1`, id).Scan(personDest(&p)...)
	if err != nil {
		return nil, notFound("person", id, err)
	}
	return &p, nil
}

func (r *personRepoPG) Update(ctx context.Context, p *Person) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE person SET first_name=$2, middle_name=$3, last_name=$4, birth_date=$5, sex=$6,
			contact_number=$7, email=$8, address=$9, status=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FirstName, p.MiddleName, p.LastName, p.BirthDate, p.Sex, p.ContactNumber, p.Email, p.Address, p.Status,
	).Scan(&p.UpdatedAt)
	return notFound("person", p.ID, err)
}

func (r *personRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM person WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("person %s is still referenced by appointments or records: %w", id, apperr.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("person %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (r *personRepoPG) SetProfilePicture(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx,
		`UPDATE person SET profile_picture_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("person %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// whereClause builds the shared name/status filter against the person alias p.
func whereClause(f ListFilter, args []any) (string, []any) {
	var conds []string
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, strings.ToLower(q)+"%")
		conds = append(conds, fmt.Sprintf("(LOWER(p.first_name) LIKE $%d OR LOWER(p.last_name) LIKE $%d)", len(args), len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("p.status = $%d", len(args)))
	}
	if f.Role != "" {
		args = append(args, f.Role)
		conds = append(conds, fmt.Sprintf("c.role = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// =========== Patient Repository ===========

type patientRepoPG struct{ db db.Querier }

func NewPatientRepoPG(q db.Querier) PatientRepository {
	return &patientRepoPG{db: q}
}

const patientSelect = `SELECT pt.id, pt.person_id, pt.blood_type, pt.gravidity, pt.parity, pt.lmp, pt.edd,
	p.id, p.first_name, p.middle_name, p.last_name, p.birth_date, p.sex, p.contact_number, p.email,
	p.address, p.status, p.profile_picture_url, p.created_at, p.updated_at
	FROM patients pt JOIN person p ON p.id = pt.person_id`

func scanPatient(row pgx.Row) (*Patient, error) {
	var pt Patient
	dest := append([]any{&pt.ID, &pt.PersonID, &pt.BloodType, &pt.Gravidity, &pt.Parity, &pt.LMP, &pt.EDD},
		personDest(&pt.Person)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &pt, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := db.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO patients (id, person_id, blood_type, gravidity, parity, lmp, edd)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.PersonID, p.BloodType, p.Gravidity, p.Parity, p.LMP, p.EDD)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.db).QueryRow(ctx, patientSelect+` WHERE pt.id = $1`, id))
	if err != nil {
		return nil, notFound("patient", id, err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `
		UPDATE patients SET blood_type=$2, gravidity=$3, parity=$4, lmp=$5, edd=$6
		WHERE id = $1`,
		p.ID, p.BloodType, p.Gravidity, p.Parity, p.LMP, p.EDD)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patient %s: %w", p.ID, apperr.ErrNotFound)
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	f.Role = ""
	where, args := whereClause(f, nil)

	var total int
	if err := db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients pt JOIN person p ON p.id = pt.person_id`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.db).Query(ctx,
		patientSelect+where+fmt.Sprintf(` ORDER BY p.last_name, p.first_name LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// =========== Clinician Repository ===========

type clinicianRepoPG struct{ db db.Querier }

func NewClinicianRepoPG(q db.Querier) ClinicianRepository {
	return &clinicianRepoPG{db: q}
}

const clinicianSelect = `SELECT c.id, c.person_id, c.role, c.specialization,
	p.id, p.first_name, p.middle_name, p.last_name, p.birth_date, p.sex, p.contact_number, p.email,
	p.address, p.status, p.profile_picture_url, p.created_at, p.updated_at
	FROM clinicians c JOIN person p ON p.id = c.person_id`

func scanClinician(row pgx.Row) (*Clinician, error) {
	var c Clinician
	dest := append([]any{&c.ID, &c.PersonID, &c.Role, &c.Specialization}, personDest(&c.Person)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clinicianRepoPG) Create(ctx context.Context, c *Clinician) error {
	c.ID = uuid.New()
	_, err := db.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO clinicians (id, person_id, role, specialization) VALUES ($1,$2,$3,$4)`,
		c.ID, c.PersonID, c.Role, c.Specialization)
	return err
}

func (r *clinicianRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	c, err := scanClinician(db.Conn(ctx, r.db).QueryRow(ctx, clinicianSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, notFound("clinician", id, err)
	}
	return c, nil
}

func (r *clinicianRepoPG) Update(ctx context.Context, c *Clinician) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx,
		`UPDATE clinicians SET role=$2, specialization=$3 WHERE id = $1`, c.ID, c.Role, c.Specialization)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("clinician %s: %w", c.ID, apperr.ErrNotFound)
	}
	return nil
}

func (r *clinicianRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Clinician, int, error) {
	where, args := whereClause(f, nil)

	var total int
	if err := db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM clinicians c JOIN person p ON p.id = c.person_id`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.db).Query(ctx,
		clinicianSelect+where+fmt.Sprintf(` ORDER BY p.last_name, p.first_name LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Clinician
	for rows.Next() {
		c, err := scanClinician(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

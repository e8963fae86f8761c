package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/matcare/matcare/internal/domain/medication"
	"github.com/matcare/matcare/internal/domain/person"
	"github.com/matcare/matcare/internal/domain/vitals"
	"github.com/matcare/matcare/internal/platform/db"
)

// DetailSource loads appointments with their related records.
type DetailSource interface {
	Load(ctx context.Context, f LoadFilter, sel Selection) ([]Detail, error)
}

// Loader reads export details from Postgres with one join for the
// appointment, patient, clinician and vitals, plus one query per medication
// kind when selected.
type Loader struct{ db db.Querier }

func NewLoader(q db.Querier) *Loader { return &Loader{db: q} }

const detailSelect = `SELECT
	a.id, a.patient_id, a.clinician_id, a.date, a.service, a.weight, a.gestational_age,
	a.status, a.payment_status, a.created_at, a.updated_at,
	pt.id, pt.person_id, pt.blood_type, pt.gravidity, pt.parity, pt.lmp, pt.edd,
	pp.id, pp.first_name, pp.middle_name, pp.last_name, pp.birth_date, pp.sex, pp.contact_number,
	pp.email, pp.address, pp.status,
	cl.id, cl.person_id, cl.role, cl.specialization,
	cp.id, cp.first_name, cp.middle_name, cp.last_name, cp.contact_number, cp.email, cp.status,
	v.id, v.temperature, v.pulse_rate, v.blood_pressure, v.respiration_rate, v.oxygen_saturation,
	v.created_at, v.updated_at
FROM appointment a
JOIN patients pt ON pt.id = a.patient_id
JOIN person pp ON pp.id = pt.person_id
JOIN clinicians cl ON cl.id = a.clinician_id
JOIN person cp ON cp.id = cl.person_id
LEFT JOIN vitals v ON v.id = a.id`

func loadWhere(f LoadFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if len(f.IDs) > 0 {
		add("a.id = ANY($%d)", f.IDs)
	}
	if f.ClinicianID != nil {
		add("a.clinician_id = $%d", *f.ClinicianID)
	}
	if f.From != nil {
		add("a.date >= $%d", *f.From)
	}
	if f.To != nil {
		add("a.date < $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanDetail(rows pgx.Rows) (Detail, error) {
	var d Detail
	pt := &person.Patient{}
	cl := &person.Clinician{}
	var (
		vID                    *uuid.UUID
		vTemp                  *float64
		vPulse, vResp, vOxygen *int
		vBP                    *string
		vCreatedAt, vUpdatedAt *time.Time
	)
	err := rows.Scan(
		&d.ID, &d.PatientID, &d.ClinicianID, &d.Date, &d.Service, &d.Weight, &d.GestationalAge,
		&d.Status, &d.PaymentStatus, &d.CreatedAt, &d.UpdatedAt,
		&pt.ID, &pt.PersonID, &pt.BloodType, &pt.Gravidity, &pt.Parity, &pt.LMP, &pt.EDD,
		&pt.Person.ID, &pt.Person.FirstName, &pt.Person.MiddleName, &pt.Person.LastName, &pt.Person.BirthDate,
		&pt.Person.Sex, &pt.Person.ContactNumber, &pt.Person.Email, &pt.Person.Address, &pt.Person.Status,
		&cl.ID, &cl.PersonID, &cl.Role, &cl.Specialization,
		&cl.Person.ID, &cl.Person.FirstName, &cl.Person.MiddleName, &cl.Person.LastName,
		&cl.Person.ContactNumber, &cl.Person.Email, &cl.Person.Status,
		&vID, &vTemp, &vPulse, &vBP, &vResp, &vOxygen, &vCreatedAt, &vUpdatedAt,
	)
	if err != nil {
		return d, err
	}
	d.Patient, d.Clinician = pt, cl
	if vID != nil {
		d.Vitals = &vitals.Vitals{
			ID:               *vID,
			Temperature:      vTemp,
			PulseRate:        vPulse,
			BloodPressure:    vBP,
			RespirationRate:  vResp,
			OxygenSaturation: vOxygen,
		}
		if vCreatedAt != nil {
			d.Vitals.CreatedAt = *vCreatedAt
		}
		if vUpdatedAt != nil {
			d.Vitals.UpdatedAt = *vUpdatedAt
		}
	}
	return d, nil
}

// Load returns matching details ordered by date. Prescriptions and
// supplements are attached per patient, so every appointment of a patient
// carries the same medication lists.
func (l *Loader) Load(ctx context.Context, f LoadFilter, sel Selection) ([]Detail, error) {
	where, args := loadWhere(f)
	rows, err := db.Conn(ctx, l.db).Query(ctx, detailSelect+where+" ORDER BY a.date", args...)
	if err != nil {
		return nil, fmt.Errorf("load export details: %w", err)
	}
	defer rows.Close()

	var out []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export detail: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	patients := make([]uuid.UUID, 0, len(out))
	seen := make(map[uuid.UUID]bool, len(out))
	for _, d := range out {
		if !seen[d.PatientID] {
			seen[d.PatientID] = true
			patients = append(patients, d.PatientID)
		}
	}

	if sel.Prescriptions {
		byPatient, err := l.medications(ctx, medication.KindPrescription, patients)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i].Prescriptions = byPatient[out[i].PatientID]
		}
	}
	if sel.Supplements {
		byPatient, err := l.medications(ctx, medication.KindSupplement, patients)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i].Supplements = byPatient[out[i].PatientID]
		}
	}
	return out, nil
}

func (l *Loader) medications(ctx context.Context, kind medication.Kind, patients []uuid.UUID) (map[uuid.UUID][]*medication.Medication, error) {
	table := kind.Table()
	rows, err := db.Conn(ctx, l.db).Query(ctx, `
		SELECT id, patient_id, clinician_id, name, strength, amount, frequency, route, status, date, created_at, updated_at
		FROM `+table+` WHERE patient_id = ANY($1) ORDER BY date DESC`, patients)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]*medication.Medication)
	for rows.Next() {
		m := &medication.Medication{Kind: kind}
		if err := rows.Scan(&m.ID, &m.PatientID, &m.ClinicianID, &m.Name, &m.Strength, &m.Amount, &m.Frequency,
			&m.Route, &m.Status, &m.Date, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out[m.PatientID] = append(out[m.PatientID], m)
	}
	return out, rows.Err()
}

package vitals

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/db"
)

type repoPG struct{ db db.Querier }

func NewRepoPG(q db.Querier) Repository {
	return &repoPG{db: q}
}

func (r *repoPG) Get(ctx context.Context, appointmentID uuid.UUID) (*Vitals, error) {
	var v Vitals
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, temperature, pulse_rate, blood_pressure, respiration_rate, oxygen_saturation, created_at, updated_at
		FROM vitals WHERE id = $1`, appointmentID,
	).Scan(&v.ID, &v.Temperature, &v.PulseRate, &v.BloodPressure, &v.RespirationRate, &v.OxygenSaturation,
		&v.CreatedAt, &v.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("vitals %s: %w", appointmentID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repoPG) Insert(ctx context.Context, v *Vitals) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO vitals (id, temperature, pulse_rate, blood_pressure, respiration_rate, oxygen_saturation)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		v.ID, v.Temperature, v.PulseRate, v.BloodPressure, v.RespirationRate, v.OxygenSaturation,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("vitals %s were recorded concurrently: %w", v.ID, apperr.ErrConflict)
	}
	return err
}

func (r *repoPG) Update(ctx context.Context, v *Vitals) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE vitals SET temperature=$2, pulse_rate=$3, blood_pressure=$4, respiration_rate=$5,
			oxygen_saturation=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		v.ID, v.Temperature, v.PulseRate, v.BloodPressure, v.RespirationRate, v.OxygenSaturation,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if db.IsNoRows(err) {
		return fmt.Errorf("vitals %s: %w", v.ID, apperr.ErrNotFound)
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM vitals WHERE id = $1`, appointmentID)
	return err
}

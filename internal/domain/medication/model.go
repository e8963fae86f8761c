package medication

import (
	"time"

	"github.com/google/uuid"
)

// Kind selects the prescriptions or supplements table. Both share one shape.
type Kind string

const (
	KindPrescription Kind = "prescription"
	KindSupplement   Kind = "supplement"
)

// Table is the storage table for the kind.
func (k Kind) Table() string {
	if k == KindSupplement {
		return "supplements"
	}
	return "prescriptions"
}

const (
	StatusActive       = "Active"
	StatusCompleted    = "Completed"
	StatusDiscontinued = "Discontinued"
)

// Medication maps to a row of prescriptions or supplements.
type Medication struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Kind        Kind      `db:"-" json:"kind"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	ClinicianID uuid.UUID `db:"clinician_id" json:"clinician_id"`
	Name        string    `db:"name" json:"name"`
	Strength    *string   `db:"strength" json:"strength,omitempty"`
	Amount      *string   `db:"amount" json:"amount,omitempty"`
	Frequency   *string   `db:"frequency" json:"frequency,omitempty"`
	Route       *string   `db:"route" json:"route,omitempty"`
	Status      string    `db:"status" json:"status"`
	Date        time.Time `db:"date" json:"date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

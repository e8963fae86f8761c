package vitals

import (
	"context"

	"github.com/google/uuid"

	"github.com/matcare/matcare/internal/domain/appointment"
)

type Repository interface {
	// Get returns apperr.ErrNotFound when the appointment has no vitals yet.
	Get(ctx context.Context, appointmentID uuid.UUID) (*Vitals, error)
	Insert(ctx context.Context, v *Vitals) error
	Update(ctx context.Context, v *Vitals) error
	Delete(ctx context.Context, appointmentID uuid.UUID) error
}

// AppointmentStore is the part of the appointment repository the recorder
// writes through.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	SetMeasurements(ctx context.Context, id uuid.UUID, weight *float64, gestationalAge *int) error
}

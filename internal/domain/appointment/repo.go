package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	// FindBySlot returns the active appointment holding slot, ignoring
	// excludeID. It returns nil, nil when the slot is free.
	FindBySlot(ctx context.Context, slot Slot, excludeID uuid.UUID) (*Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) error
	SetMeasurements(ctx context.Context, id uuid.UUID, weight *float64, gestationalAge *int) error
}

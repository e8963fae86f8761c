package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/db"
	"github.com/matcare/matcare/internal/platform/metrics"
)

type Service struct {
	repo    Repository
	loc     *time.Location
	metrics *metrics.Collector
}

// NewService builds the appointment service. Dates and times are combined in
// loc; a nil loc means time.Local.
func NewService(repo Repository, loc *time.Location, m *metrics.Collector) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, loc: loc, metrics: m}
}

// Location is the clinic location appointments are scheduled in.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) CreateAppointment(ctx context.Context, in Input) (*Appointment, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Invalid("patient_id", "is required")
	}
	if in.ClinicianID == uuid.Nil {
		return nil, apperr.Invalid("clinician_id", "is required")
	}
	if strings.TrimSpace(in.Date) == "" {
		return nil, apperr.Invalid("date", "is required")
	}
	if strings.TrimSpace(in.Time) == "" {
		return nil, apperr.Invalid("time", "is required")
	}
	when, err := s.combine(in.Date, in.Time)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:      in.PatientID,
		ClinicianID:    in.ClinicianID,
		Date:           when,
		Service:        strings.TrimSpace(in.Service),
		Weight:         in.Weight,
		GestationalAge: in.GestationalAge,
		Status:         StatusScheduled,
		PaymentStatus:  PaymentUnpaid,
	}
	if in.Status != "" {
		if a.Status, err = status(in.Status); err != nil {
			return nil, err
		}
	}
	if in.PaymentStatus != "" {
		if a.PaymentStatus, err = paymentStatus(in.PaymentStatus); err != nil {
			return nil, err
		}
	}
	if err := validate(a); err != nil {
		return nil, err
	}

	if err := s.checkSlot(ctx, a, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, s.writeErr(err)
	}
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" {
		st, err := status(f.Status)
		if err != nil {
			return nil, 0, err
		}
		f.Status = st
	}
	return s.repo.List(ctx, f, limit, offset)
}

// UpdateAppointment applies patch to the stored row. Changing either the date
// or the time re-merges both, using the stored value for the one not given.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, patch Patch) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.PatientID != nil {
		a.PatientID = *patch.PatientID
	}
	if patch.ClinicianID != nil {
		a.ClinicianID = *patch.ClinicianID
	}
	if patch.Date != nil || patch.Time != nil {
		local := a.Date.In(s.loc)
		date, clock := local.Format("2006-01-02"), local.Format("15:04")
		if patch.Date != nil {
			date = *patch.Date
		}
		if patch.Time != nil {
			clock = *patch.Time
		}
		if a.Date, err = s.combine(date, clock); err != nil {
			return nil, err
		}
	}
	if patch.Service != nil {
		a.Service = strings.TrimSpace(*patch.Service)
	}
	if patch.Weight != nil {
		a.Weight = patch.Weight
	}
	if patch.GestationalAge != nil {
		a.GestationalAge = patch.GestationalAge
	}
	if patch.Status != nil {
		if a.Status, err = status(*patch.Status); err != nil {
			return nil, err
		}
	}
	if patch.PaymentStatus != nil {
		if a.PaymentStatus, err = paymentStatus(*patch.PaymentStatus); err != nil {
			return nil, err
		}
	}
	if err := validate(a); err != nil {
		return nil, err
	}

	if err := s.checkSlot(ctx, a, a.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, s.writeErr(err)
	}
	return a, nil
}

// DeleteAppointment removes the appointment row only. Vitals, prescriptions
// and supplements that reference it are left in place.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// SetStatus sets Appointment.Status. Any status may follow any other.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, value string) (*Appointment, error) {
	st, err := status(value)
	if err != nil {
		return nil, err
	}
	return s.setField(ctx, id, "status", func() error { return s.repo.SetStatus(ctx, id, st) })
}

// SetPaymentStatus sets Appointment.PaymentStatus. Completed is stored as Paid.
func (s *Service) SetPaymentStatus(ctx context.Context, id uuid.UUID, value string) (*Appointment, error) {
	st, err := paymentStatus(value)
	if err != nil {
		return nil, err
	}
	return s.setField(ctx, id, "payment_status", func() error { return s.repo.SetPaymentStatus(ctx, id, st) })
}

func (s *Service) setField(ctx context.Context, id uuid.UUID, field string, write func() error) (*Appointment, error) {
	if err := write(); err != nil {
		s.metrics.StatusUpdate(field, "error")
		return nil, s.writeErr(err)
	}
	s.metrics.StatusUpdate(field, "ok")
	return s.repo.GetByID(ctx, id)
}

func (s *Service) combine(date, clock string) (time.Time, error) {
	d, err := ParseDate(date, s.loc)
	if err != nil {
		return time.Time{}, err
	}
	return CombineDateTime(d, clock, s.loc)
}

// checkSlot rejects a write when another active appointment holds the same
// slot. Canceled appointments never hold a slot.
func (s *Service) checkSlot(ctx context.Context, a *Appointment, self uuid.UUID) error {
	if a.Status == StatusCanceled {
		return nil
	}
	existing, err := s.repo.FindBySlot(ctx, Slot{PatientID: a.PatientID, ClinicianID: a.ClinicianID, Date: a.Date}, self)
	if err != nil {
		return err
	}
	if existing != nil {
		s.metrics.DuplicateRejected()
		return ErrDuplicate
	}
	return nil
}

func (s *Service) writeErr(err error) error {
	if err == ErrDuplicate {
		s.metrics.DuplicateRejected()
		return err
	}
	if db.IsUniqueViolation(err) {
		s.metrics.DuplicateRejected()
		return ErrDuplicate
	}
	return err
}

func validate(a *Appointment) error {
	if a.Service == "" {
		return apperr.Invalid("service", "is required")
	}
	if a.Weight != nil && *a.Weight < 0 {
		return apperr.Invalid("weight", "must not be negative")
	}
	if a.GestationalAge != nil && *a.GestationalAge < 0 {
		return apperr.Invalid("gestational_age", "must not be negative")
	}
	return nil
}

func status(v string) (string, error) {
	st, ok := NormalizeStatus(v)
	if !ok {
		return "", apperr.Invalid("status", "must be one of Scheduled, Completed, Canceled; got %q", v)
	}
	return st, nil
}

func paymentStatus(v string) (string, error) {
	st, ok := NormalizePaymentStatus(v)
	if !ok {
		return "", apperr.Invalid("payment_status", "must be one of Unpaid, Pending, Paid; got %q", v)
	}
	return st, nil
}

// ValidateStatus reports whether value is a known status for field, which is
// either "status" or "payment_status".
func ValidateStatus(field, value string) error {
	switch field {
	case "status":
		_, err := status(value)
		return err
	case "payment_status":
		_, err := paymentStatus(value)
		return err
	}
	return fmt.Errorf("unknown status field %q", field)
}

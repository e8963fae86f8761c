package vitals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/metrics"
)

const (
	stepVitals      = "vitals"
	stepAppointment = "appointment"
)

type Service struct {
	repo    Repository
	appts   AppointmentStore
	log     zerolog.Logger
	metrics *metrics.Collector
}

func NewService(repo Repository, appts AppointmentStore, log zerolog.Logger, m *metrics.Collector) *Service {
	return &Service{
		repo:    repo,
		appts:   appts,
		log:     log.With().Str("component", "vitals").Logger(),
		metrics: m,
	}
}

func (s *Service) GetVitals(ctx context.Context, appointmentID uuid.UUID) (*Vitals, error) {
	return s.repo.Get(ctx, appointmentID)
}

// SaveVitals upserts the vitals row keyed by appointment id and writes weight
// and gestational age onto the appointment. Both writes are started together
// and both are awaited. When exactly one fails, the other is undone and a
// *apperr.PartialFailureError is returned; nothing is retried.
func (s *Service) SaveVitals(ctx context.Context, appointmentID uuid.UUID, f Fields, af AppointmentFields) (*Result, error) {
	if err := Validate(f, af); err != nil {
		return nil, err
	}
	bp, err := NormalizeBloodPressure(f.BloodPressure)
	if err != nil {
		return nil, err
	}

	appt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	prev, err := s.repo.Get(ctx, appointmentID)
	inserted := errors.Is(err, apperr.ErrNotFound)
	if err != nil && !inserted {
		return nil, fmt.Errorf("load vitals: %w", err)
	}

	v := &Vitals{
		ID:               appointmentID,
		Temperature:      f.Temperature,
		PulseRate:        f.PulseRate,
		BloodPressure:    bp,
		RespirationRate:  f.RespirationRate,
		OxygenSaturation: f.OxygenSaturation,
	}
	weight, ga := appt.Weight, appt.GestationalAge
	if af.Weight != nil {
		weight = af.Weight
	}
	if af.GestationalAge != nil {
		ga = af.GestationalAge
	}

	var vitalsErr, apptErr error
	var g errgroup.Group
	g.Go(func() error {
		if inserted {
			vitalsErr = s.repo.Insert(ctx, v)
		} else {
			vitalsErr = s.repo.Update(ctx, v)
		}
		return vitalsErr
	})
	g.Go(func() error {
		apptErr = s.appts.SetMeasurements(ctx, appointmentID, weight, ga)
		return apptErr
	})
	_ = g.Wait()

	switch {
	case vitalsErr == nil && apptErr == nil:
		s.metrics.VitalsWrite("ok")
		appt.Weight, appt.GestationalAge = weight, ga
		return &Result{Vitals: v, Appointment: appt, Inserted: inserted}, nil

	case vitalsErr != nil && apptErr != nil:
		s.metrics.VitalsWrite("failed")
		return nil, fmt.Errorf("save vitals: %w", errors.Join(vitalsErr, apptErr))

	case apptErr != nil:
		return nil, s.partial(ctx, appointmentID, stepAppointment, apptErr, func(ctx context.Context) error {
			if inserted {
				return s.repo.Delete(ctx, appointmentID)
			}
			return s.repo.Update(ctx, prev)
		})

	default:
		return nil, s.partial(ctx, appointmentID, stepVitals, vitalsErr, func(ctx context.Context) error {
			return s.appts.SetMeasurements(ctx, appointmentID, appt.Weight, appt.GestationalAge)
		})
	}
}

// partial undoes the write that committed and reports the failed step. The
// undo runs even if ctx was cancelled.
func (s *Service) partial(ctx context.Context, id uuid.UUID, failed string, cause error, undo func(context.Context) error) error {
	pf := &apperr.PartialFailureError{
		Op:     "save vitals",
		Failed: []apperr.StepError{{Step: failed, Err: cause}},
	}
	undoErr := undo(context.WithoutCancel(ctx))
	if undoErr != nil {
		pf.Failed = append(pf.Failed, apperr.StepError{Step: "compensate", Err: undoErr})
		s.metrics.VitalsWrite("partial")
		s.log.Error().Err(cause).AnErr("compensation_error", undoErr).
			Str("appointment_id", id.String()).Str("failed_step", failed).
			Msg("vitals save left inconsistent state")
		return pf
	}
	pf.Compensated = true
	s.metrics.VitalsWrite("compensated")
	s.log.Warn().Err(cause).Str("appointment_id", id.String()).Str("failed_step", failed).
		Msg("vitals save failed, committed write compensated")
	return pf
}

package medication

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matcare/matcare/internal/platform/apperr"
)

type Service struct {
	repos map[Kind]Repository
	now   func() time.Time
}

func NewService(prescriptions, supplements Repository) *Service {
	return &Service{
		repos: map[Kind]Repository{KindPrescription: prescriptions, KindSupplement: supplements},
		now:   time.Now,
	}
}

var validStatuses = map[string]string{
	"active":       StatusActive,
	"completed":    StatusCompleted,
	"discontinued": StatusDiscontinued,
}

func (s *Service) repo(kind Kind) (Repository, error) {
	r, ok := s.repos[kind]
	if !ok || r == nil {
		return nil, apperr.Invalid("kind", "unknown medication kind %q", kind)
	}
	return r, nil
}

func (s *Service) validate(m *Medication) error {
	if m.PatientID == uuid.Nil {
		return apperr.Invalid("patient_id", "is required")
	}
	if m.ClinicianID == uuid.Nil {
		return apperr.Invalid("clinician_id", "is required")
	}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return apperr.Invalid("name", "is required")
	}
	if m.Status == "" {
		m.Status = StatusActive
	}
	st, ok := validStatuses[strings.ToLower(m.Status)]
	if !ok {
		return apperr.Invalid("status", "must be Active, Completed or Discontinued, got %q", m.Status)
	}
	m.Status = st
	if m.Date.IsZero() {
		m.Date = s.now()
	}
	return nil
}

func (s *Service) Create(ctx context.Context, m *Medication) error {
	r, err := s.repo(m.Kind)
	if err != nil {
		return err
	}
	if err := s.validate(m); err != nil {
		return err
	}
	return r.Create(ctx, m)
}

func (s *Service) Get(ctx context.Context, kind Kind, id uuid.UUID) (*Medication, error) {
	r, err := s.repo(kind)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Update replaces the editable fields. The patient link is fixed at creation.
func (s *Service) Update(ctx context.Context, m *Medication) error {
	r, err := s.repo(m.Kind)
	if err != nil {
		return err
	}
	existing, err := r.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	m.PatientID = existing.PatientID
	m.CreatedAt = existing.CreatedAt
	if m.ClinicianID == uuid.Nil {
		m.ClinicianID = existing.ClinicianID
	}
	if m.Date.IsZero() {
		m.Date = existing.Date
	}
	if err := s.validate(m); err != nil {
		return err
	}
	return r.Update(ctx, m)
}

func (s *Service) Delete(ctx context.Context, kind Kind, id uuid.UUID) error {
	r, err := s.repo(kind)
	if err != nil {
		return err
	}
	return r.Delete(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, kind Kind, patientID uuid.UUID, limit, offset int) ([]*Medication, int, error) {
	r, err := s.repo(kind)
	if err != nil {
		return nil, 0, err
	}
	return r.ListByPatient(ctx, patientID, limit, offset)
}

package clinical

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/matcare/matcare/internal/platform/apperr"
)

type Service struct {
	allergies AllergyRepository
}

func NewService(allergies AllergyRepository) *Service {
	return &Service{allergies: allergies}
}

var validSeverities = map[string]string{
	"mild":     SeverityMild,
	"moderate": SeverityModerate,
	"severe":   SeveritySevere,
}

func validateAllergy(a *Allergy) error {
	if a.PatientID == uuid.Nil {
		return apperr.Invalid("patient_id", "is required")
	}
	a.Allergen = strings.TrimSpace(a.Allergen)
	if a.Allergen == "" {
		return apperr.Invalid("allergen", "is required")
	}
	if a.Severity != nil && *a.Severity != "" {
		sev, ok := validSeverities[strings.ToLower(*a.Severity)]
		if !ok {
			return apperr.Invalid("severity", "must be Mild, Moderate or Severe, got %q", *a.Severity)
		}
		a.Severity = &sev
	}
	return nil
}

func (s *Service) CreateAllergy(ctx context.Context, a *Allergy) error {
	if err := validateAllergy(a); err != nil {
		return err
	}
	return s.allergies.Create(ctx, a)
}

func (s *Service) GetAllergy(ctx context.Context, id uuid.UUID) (*Allergy, error) {
	return s.allergies.GetByID(ctx, id)
}

func (s *Service) UpdateAllergy(ctx context.Context, a *Allergy) error {
	existing, err := s.allergies.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	a.PatientID = existing.PatientID
	a.CreatedAt = existing.CreatedAt
	if err := validateAllergy(a); err != nil {
		return err
	}
	return s.allergies.Update(ctx, a)
}

func (s *Service) DeleteAllergy(ctx context.Context, id uuid.UUID) error {
	return s.allergies.Delete(ctx, id)
}

func (s *Service) ListAllergiesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Allergy, int, error) {
	return s.allergies.ListByPatient(ctx, patientID, limit, offset)
}

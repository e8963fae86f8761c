package person

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/blobstore"
	"github.com/matcare/matcare/internal/platform/db"
)

type Service struct {
	persons    PersonRepository
	patients   PatientRepository
	clinicians ClinicianRepository
	tx         db.Transactor
	store      blobstore.ObjectStore
	signer     *blobstore.Signer
}

func NewService(
	persons PersonRepository,
	patients PatientRepository,
	clinicians ClinicianRepository,
	tx db.Transactor,
	store blobstore.ObjectStore,
	signer *blobstore.Signer,
) *Service {
	return &Service{
		persons:    persons,
		patients:   patients,
		clinicians: clinicians,
		tx:         tx,
		store:      store,
		signer:     signer,
	}
}

var validPersonStatuses = map[string]bool{"Active": true, "Inactive": true}

// clinicianRoles normalizes role input to the stored spelling.
var clinicianRoles = map[string]string{"doctor": RoleDoctor, "midwife": RoleMidwife}

func validatePerson(p *Person) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" {
		return apperr.Invalid("first_name", "is required")
	}
	if p.LastName == "" {
		return apperr.Invalid("last_name", "is required")
	}
	if p.Status == "" {
		p.Status = "Active"
	}
	if !validPersonStatuses[p.Status] {
		return apperr.Invalid("status", "must be Active or Inactive, got %q", p.Status)
	}
	if p.Email != nil && *p.Email != "" && !strings.Contains(*p.Email, "@") {
		return apperr.Invalid("email", "is not a valid address")
	}
	return nil
}

// -- Patient --

// CreatePatient inserts the person row and the patient extension together.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validatePerson(&p.Person); err != nil {
		return err
	}
	if p.Gravidity != nil && *p.Gravidity < 0 {
		return apperr.Invalid("gravidity", "must not be negative")
	}
	if p.Parity != nil && *p.Parity < 0 {
		return apperr.Invalid("parity", "must not be negative")
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.persons.Create(ctx, &p.Person); err != nil {
			return fmt.Errorf("create person: %w", err)
		}
		p.PersonID = p.Person.ID
		if err := s.patients.Create(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		return nil
	})
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	existing, err := s.patients.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.PersonID = existing.PersonID
	p.Person.ID = existing.PersonID
	p.Person.ProfilePictureURL = existing.Person.ProfilePictureURL
	if err := validatePerson(&p.Person); err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.persons.Update(ctx, &p.Person); err != nil {
			return fmt.Errorf("update person: %w", err)
		}
		return s.patients.Update(ctx, p)
	})
}

// DeletePatient removes the person row; the patient extension goes with it.
// Patients that still have appointments or records cannot be deleted.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.persons.Delete(ctx, p.PersonID)
}

func (s *Service) ListPatients(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, f, limit, offset)
}

// -- Clinician --

func (s *Service) CreateClinician(ctx context.Context, c *Clinician) error {
	if err := validatePerson(&c.Person); err != nil {
		return err
	}
	role, ok := clinicianRoles[strings.ToLower(c.Role)]
	if !ok {
		return apperr.Invalid("role", "must be Doctor or Midwife, got %q", c.Role)
	}
	c.Role = role
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.persons.Create(ctx, &c.Person); err != nil {
			return fmt.Errorf("create person: %w", err)
		}
		c.PersonID = c.Person.ID
		if err := s.clinicians.Create(ctx, c); err != nil {
			return fmt.Errorf("create clinician: %w", err)
		}
		return nil
	})
}

func (s *Service) GetClinician(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	return s.clinicians.GetByID(ctx, id)
}

func (s *Service) UpdateClinician(ctx context.Context, c *Clinician) error {
	existing, err := s.clinicians.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	c.PersonID = existing.PersonID
	c.Person.ID = existing.PersonID
	c.Person.ProfilePictureURL = existing.Person.ProfilePictureURL
	if err := validatePerson(&c.Person); err != nil {
		return err
	}
	if c.Role == "" {
		c.Role = existing.Role
	}
	role, ok := clinicianRoles[strings.ToLower(c.Role)]
	if !ok {
		return apperr.Invalid("role", "must be Doctor or Midwife, got %q", c.Role)
	}
	c.Role = role
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.persons.Update(ctx, &c.Person); err != nil {
			return fmt.Errorf("update person: %w", err)
		}
		return s.clinicians.Update(ctx, c)
	})
}

func (s *Service) DeleteClinician(ctx context.Context, id uuid.UUID) error {
	c, err := s.clinicians.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.persons.Delete(ctx, c.PersonID)
}

func (s *Service) ListClinicians(ctx context.Context, f ListFilter, limit, offset int) ([]*Clinician, int, error) {
	if f.Role != "" {
		role, ok := clinicianRoles[strings.ToLower(f.Role)]
		if !ok {
			return nil, 0, apperr.Invalid("role", "must be Doctor or Midwife, got %q", f.Role)
		}
		f.Role = role
	}
	return s.clinicians.List(ctx, f, limit, offset)
}

// -- Profile picture --

// UploadProfilePicture stores the image under profile-pictures/<person_id>/
// and records its public URL on the person row.
func (s *Service) UploadProfilePicture(ctx context.Context, personID uuid.UUID, filename, contentType string, content io.Reader) (string, error) {
	if _, err := s.persons.GetByID(ctx, personID); err != nil {
		return "", err
	}
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "", apperr.Invalid("file", "file name is required")
	}
	objectPath := fmt.Sprintf("%s/%s-%s", personID, uuid.NewString(), name)

	obj, err := s.store.Put(ctx, blobstore.BucketProfilePictures, objectPath, contentType, content)
	if err != nil {
		return "", uploadError(err)
	}
	url := s.signer.PublicURL(obj.Bucket, obj.Path)
	if err := s.persons.SetProfilePicture(ctx, personID, url); err != nil {
		_ = s.store.Delete(ctx, obj.Bucket, obj.Path)
		return "", err
	}
	return url, nil
}

func uploadError(err error) error {
	if blobstore.IsRejected(err) {
		return apperr.Invalid("file", "%v", err)
	}
	return fmt.Errorf("store object: %w", err)
}

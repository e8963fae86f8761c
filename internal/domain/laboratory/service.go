package laboratory

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/blobstore"
)

type Service struct {
	repo   Repository
	store  blobstore.ObjectStore
	signer *blobstore.Signer
	log    zerolog.Logger
}

func NewService(repo Repository, store blobstore.ObjectStore, signer *blobstore.Signer, log zerolog.Logger) *Service {
	return &Service{repo: repo, store: store, signer: signer, log: log.With().Str("component", "laboratory").Logger()}
}

func validate(r *Record) error {
	if r.PatientID == uuid.Nil {
		return apperr.Invalid("patient_id", "is required")
	}
	r.TestName = strings.TrimSpace(r.TestName)
	if r.TestName == "" {
		return apperr.Invalid("test_name", "is required")
	}
	return nil
}

// Create stores the optional file under laboratory-files/<patient_id>/ and
// then inserts the record. The object is removed again if the insert fails.
func (s *Service) Create(ctx context.Context, r *Record, file *Upload) error {
	if err := validate(r); err != nil {
		return err
	}
	if file == nil {
		return s.repo.Create(ctx, r)
	}

	name := path.Base(strings.ReplaceAll(file.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return apperr.Invalid("file", "file name is required")
	}
	objectPath := fmt.Sprintf("%s/%s-%s", r.PatientID, uuid.NewString(), name)
	obj, err := s.store.Put(ctx, blobstore.BucketLaboratoryFiles, objectPath, file.ContentType, file.Content)
	if err != nil {
		if blobstore.IsRejected(err) {
			return apperr.Invalid("file", "%v", err)
		}
		return fmt.Errorf("store laboratory file: %w", err)
	}

	url := s.signer.PublicURL(obj.Bucket, obj.Path)
	r.FileURL, r.FileObject, r.ContentType = &url, &obj.Path, &obj.ContentType
	if err := s.repo.Create(ctx, r); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), obj.Bucket, obj.Path); delErr != nil {
			s.log.Error().Err(delErr).Str("object", obj.Path).Msg("failed to remove orphaned laboratory file")
		}
		return err
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

// Update changes the record's metadata. The attached file is immutable.
func (s *Service) Update(ctx context.Context, r *Record) error {
	existing, err := s.repo.GetByID(ctx, r.ID)
	if err != nil {
		return err
	}
	r.PatientID = existing.PatientID
	r.FileURL, r.FileObject, r.ContentType = existing.FileURL, existing.FileObject, existing.ContentType
	r.CreatedAt = existing.CreatedAt
	if err := validate(r); err != nil {
		return err
	}
	return s.repo.Update(ctx, r)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// SignedURL returns a read link to the record's file valid for the signer's TTL.
func (s *Service) SignedURL(ctx context.Context, id uuid.UUID) (*SignedURL, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.FileObject == nil || *r.FileObject == "" {
		return nil, fmt.Errorf("laboratory record %s has no file: %w", id, apperr.ErrNotFound)
	}
	url, exp, err := s.signer.SignedURL(blobstore.BucketLaboratoryFiles, *r.FileObject)
	if err != nil {
		return nil, fmt.Errorf("sign laboratory file: %w", err)
	}
	return &SignedURL{URL: url, ExpiresAt: exp}, nil
}

// Delete removes the row, then its file. A file that cannot be removed is
// logged and left behind.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if r.FileObject == nil || *r.FileObject == "" {
		return nil
	}
	err = s.store.Delete(ctx, blobstore.BucketLaboratoryFiles, *r.FileObject)
	if err != nil && !errors.Is(err, blobstore.ErrObjectNotFound) {
		s.log.Warn().Err(err).Str("record_id", id.String()).Str("object", *r.FileObject).
			Msg("laboratory record deleted but its file was not")
	}
	return nil
}

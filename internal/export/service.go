package export

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/matcare/matcare/internal/platform/apperr"
)

// Request is a bulk export. A nil Content selects every section. IDs, when
// set, restrict the export to those appointments before filtering.
type Request struct {
	Filters
	Content *Selection  `json:"content,omitempty"`
	Format  string      `json:"format"`
	IDs     []uuid.UUID `json:"appointment_ids,omitempty"`
}

func (r Request) selection() Selection {
	if r.Content == nil {
		return AllSections()
	}
	return *r.Content
}

// Service loads details and hands them to the Composer.
type Service struct {
	src      DetailSource
	composer *Composer
}

func NewService(src DetailSource, composer *Composer) *Service {
	return &Service{src: src, composer: composer}
}

// loadFilter narrows the database read to the requested days. The pipeline
// still applies the exact filters afterwards.
func (s *Service) loadFilter(req Request, scope *uuid.UUID) (LoadFilter, error) {
	lf := LoadFilter{IDs: req.IDs, ClinicianID: scope}
	start, end, err := dayRange(req.Filters, s.composer.loc)
	if err != nil {
		return lf, err
	}
	if !start.IsZero() {
		lf.From = &start
	}
	if !end.IsZero() {
		lf.To = &end
	}
	return lf, nil
}

// Export builds a bulk export. scope limits the export to one clinician's
// appointments; nil means all of them.
func (s *Service) Export(ctx context.Context, req Request, scope *uuid.UUID) (*File, error) {
	format, err := ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	sel := req.selection()
	lf, err := s.loadFilter(req, scope)
	if err != nil {
		return nil, err
	}
	details, err := s.src.Load(ctx, lf, sel)
	if err != nil {
		return nil, fmt.Errorf("export appointments: %w", err)
	}
	return s.composer.Compose(ctx, details, req.Filters, sel, format)
}

// ExportOne exports a single appointment.
func (s *Service) ExportOne(ctx context.Context, id uuid.UUID, format Format, sel Selection, scope *uuid.UUID) (*File, error) {
	details, err := s.src.Load(ctx, LoadFilter{IDs: []uuid.UUID{id}, ClinicianID: scope}, sel)
	if err != nil {
		return nil, fmt.Errorf("export appointment %s: %w", id, err)
	}
	if len(details) == 0 {
		return nil, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	return s.composer.ComposeOne(ctx, details[0], sel, format)
}

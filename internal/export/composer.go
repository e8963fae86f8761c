package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/metrics"
)

// DocumentRenderer produces one appointment report. The HTTP document client
// and the in-process renderer both satisfy it.
type DocumentRenderer interface {
	Render(ctx context.Context, req DocumentRequest) ([]byte, error)
}

// Composer builds export files from already-loaded appointment details.
type Composer struct {
	docs    DocumentRenderer
	loc     *time.Location
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Collector
}

func NewComposer(docs DocumentRenderer, loc *time.Location, log zerolog.Logger, m *metrics.Collector) *Composer {
	if loc == nil {
		loc = time.Local
	}
	return &Composer{
		docs:    docs,
		loc:     loc,
		now:     time.Now,
		log:     log.With().Str("component", "export").Logger(),
		metrics: m,
	}
}

func (c *Composer) today() time.Time { return c.now().In(c.loc) }

// Compose runs the filter pipeline over details and writes a bulk export.
// CSV produces one file. PDF produces one report per appointment: the
// report itself when a single appointment matched, a zip archive otherwise.
//
// When some PDF reports fail, the file with the successful ones is returned
// together with a *apperr.PartialFailureError naming the failed appointments.
func (c *Composer) Compose(ctx context.Context, details []Detail, f Filters, sel Selection, format Format) (*File, error) {
	if sel.Empty() {
		return nil, apperr.Invalid("content", "select at least one section")
	}
	rows, err := Apply(details, f, c.loc)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		data, err := WriteCSV(rows, sel, c.loc)
		if err != nil {
			return nil, err
		}
		c.metrics.ExportProduced(string(format), "ok", len(rows))
		return &File{Name: BulkFilename(c.today(), format), ContentType: format.contentType(), Data: data, Appointments: len(rows)}, nil
	case FormatPDF:
		if len(rows) == 0 {
			return nil, apperr.Invalid("filters", "no appointments match the filters")
		}
		if len(rows) == 1 {
			return c.ComposeOne(ctx, rows[0], sel, format)
		}
		return c.zipReports(ctx, rows, sel)
	default:
		return nil, apperr.Invalid("format", "must be csv or pdf, got %q", format)
	}
}

// ComposeOne exports a single appointment, named after its patient.
func (c *Composer) ComposeOne(ctx context.Context, d Detail, sel Selection, format Format) (*File, error) {
	if sel.Empty() {
		return nil, apperr.Invalid("content", "select at least one section")
	}
	name := SingleFilename(d.PatientName(), c.today(), format)

	switch format {
	case FormatCSV:
		data, err := WriteCSV([]Detail{d}, sel, c.loc)
		if err != nil {
			return nil, err
		}
		c.metrics.ExportProduced(string(format), "ok", 1)
		return &File{Name: name, ContentType: format.contentType(), Data: data, Appointments: 1}, nil
	case FormatPDF:
		data, err := c.render(ctx, d, sel)
		if err != nil {
			c.metrics.ExportProduced(string(format), "failed", 0)
			return nil, fmt.Errorf("render report for appointment %s: %w", d.ID, err)
		}
		c.metrics.ExportProduced(string(format), "ok", 1)
		return &File{Name: name, ContentType: format.contentType(), Data: data, Appointments: 1}, nil
	default:
		return nil, apperr.Invalid("format", "must be csv or pdf, got %q", format)
	}
}

func (c *Composer) render(ctx context.Context, d Detail, sel Selection) ([]byte, error) {
	return c.docs.Render(ctx, DocumentRequest{
		Appointment:   sel.Trim(d),
		ExportOptions: sel,
		ExportFormat:  FormatPDF,
	})
}

// zipReports renders each appointment in turn, one request at a time.
func (c *Composer) zipReports(ctx context.Context, rows []Detail, sel Selection) (*File, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	seen := make(map[string]int, len(rows))
	var failed []apperr.StepError

	for _, d := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := c.render(ctx, d, sel)
		if err != nil {
			c.log.Warn().Err(err).Str("appointment_id", d.ID.String()).Msg("report render failed")
			failed = append(failed, apperr.StepError{Step: d.ID.String(), Err: err})
			continue
		}
		w, err := zw.Create(uniqueName(seen, SingleFilename(d.PatientName(), d.Date.In(c.loc), FormatPDF)))
		if err != nil {
			return nil, fmt.Errorf("zip report: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("zip report: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip reports: %w", err)
	}

	ok := len(rows) - len(failed)
	if ok == 0 {
		c.metrics.ExportProduced(string(FormatPDF), "failed", 0)
		errs := make([]error, len(failed))
		for i, f := range failed {
			errs[i] = f.Err
		}
		return nil, fmt.Errorf("render reports: %w", errors.Join(errs...))
	}

	file := &File{
		Name:         BulkFilename(c.today(), FormatPDF),
		ContentType:  "application/zip",
		Data:         buf.Bytes(),
		Appointments: ok,
	}
	if len(failed) > 0 {
		c.metrics.ExportProduced(string(FormatPDF), "partial", ok)
		return file, &apperr.PartialFailureError{Op: "export reports", Failed: failed}
	}
	c.metrics.ExportProduced(string(FormatPDF), "ok", ok)
	return file, nil
}

// Package document renders appointment reports as PDF and serves them on the
// document-generation endpoint used by exports.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"

	"github.com/matcare/matcare/internal/domain/medication"
	"github.com/matcare/matcare/internal/export"
)

var (
	ErrUnsupportedFormat  = errors.New("unsupported export format")
	ErrMissingAppointment = errors.New("appointment is required")
)

// Renderer lays out one appointment report with fpdf.
type Renderer struct {
	loc *time.Location
	now func() time.Time
}

func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{loc: loc, now: time.Now}
}

// Check rejects requests the renderer cannot serve.
func Check(req export.DocumentRequest) error {
	if req.ExportFormat != export.FormatPDF {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.ExportFormat)
	}
	if req.Appointment.ID == uuid.Nil {
		return ErrMissingAppointment
	}
	return nil
}

// Render returns the PDF bytes for req.
func (r *Renderer) Render(ctx context.Context, req export.DocumentRequest) ([]byte, error) {
	if err := Check(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	p := &page{pdf: pdf, tr: tr, loc: r.loc}

	d := req.Appointment
	opts := req.ExportOptions
	pdf.SetTitle("Appointment Report", true)
	pdf.SetCreator("matcare", true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Appointment Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, "Generated "+r.now().In(r.loc).Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if opts.AppointmentInfo {
		p.section("Appointment")
		p.field("Appointment ID", d.ID.String())
		p.field("Date", p.date(&d.Date))
		p.field("Time", d.Date.In(r.loc).Format("15:04"))
		p.field("Service", d.Service)
		p.field("Status", d.Status)
		p.field("Payment status", d.PaymentStatus)
		p.field("Weight (kg)", decimal(d.Weight))
		p.field("Gestational age (weeks)", num(d.GestationalAge))
	}
	if opts.PatientInfo {
		p.section("Patient")
		if pt := d.Patient; pt != nil {
			p.field("Name", pt.Person.FullName())
			p.field("Birth date", p.date(pt.Person.BirthDate))
			p.field("Contact number", str(pt.Person.ContactNumber))
			p.field("Address", str(pt.Person.Address))
			p.field("Blood type", str(pt.BloodType))
			p.field("Gravidity / parity", num(pt.Gravidity)+" / "+num(pt.Parity))
			p.field("LMP", p.date(pt.LMP))
			p.field("EDD", p.date(pt.EDD))
		} else {
			p.empty()
		}
	}
	if opts.ClinicianInfo {
		p.section("Clinician")
		if cl := d.Clinician; cl != nil {
			p.field("Name", cl.Person.FullName())
			p.field("Role", cl.Role)
			p.field("Specialization", str(cl.Specialization))
		} else {
			p.empty()
		}
	}
	if opts.Vitals {
		p.section("Vitals")
		if v := d.Vitals; v != nil {
			p.field("Temperature (°C)", decimal(v.Temperature))
			p.field("Pulse rate (bpm)", num(v.PulseRate))
			p.field("Blood pressure", str(v.BloodPressure))
			p.field("Respiration rate (/min)", num(v.RespirationRate))
			p.field("Oxygen saturation (%)", num(v.OxygenSaturation))
		} else {
			p.empty()
		}
	}
	if opts.Prescriptions {
		p.section("Prescriptions")
		p.medications(d.Prescriptions)
	}
	if opts.Supplements {
		p.section("Supplements")
		p.medications(d.Supplements)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type page struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	loc *time.Location
}

func (p *page) section(title string) {
	p.pdf.Ln(3)
	p.pdf.SetFont("Helvetica", "B", 12)
	p.pdf.SetFillColor(230, 236, 242)
	p.pdf.CellFormat(0, 8, p.tr(title), "", 1, "L", true, 0, "")
	p.pdf.Ln(1)
}

func (p *page) field(label, value string) {
	p.pdf.SetFont("Helvetica", "B", 10)
	p.pdf.CellFormat(55, 6, p.tr(label), "", 0, "L", false, 0, "")
	p.pdf.SetFont("Helvetica", "", 10)
	if value == "" {
		value = "-"
	}
	p.pdf.MultiCell(0, 6, p.tr(value), "", "L", false)
}

func (p *page) empty() {
	p.pdf.SetFont("Helvetica", "I", 10)
	p.pdf.CellFormat(0, 6, "No records.", "", 1, "L", false, 0, "")
}

var medColumns = []struct {
	header string
	width  float64
}{
	{"Name", 45}, {"Strength", 22}, {"Amount", 20}, {"Frequency", 32}, {"Route", 20}, {"Status", 24}, {"Date", 27},
}

func (p *page) medications(meds []*medication.Medication) {
	if len(meds) == 0 {
		p.empty()
		return
	}
	p.pdf.SetFont("Helvetica", "B", 9)
	for _, c := range medColumns {
		p.pdf.CellFormat(c.width, 7, c.header, "1", 0, "L", false, 0, "")
	}
	p.pdf.Ln(-1)
	p.pdf.SetFont("Helvetica", "", 9)
	for _, m := range meds {
		cells := []string{m.Name, str(m.Strength), str(m.Amount), str(m.Frequency), str(m.Route), m.Status, p.date(&m.Date)}
		for i, c := range medColumns {
			p.pdf.CellFormat(c.width, 7, p.tr(cells[i]), "1", 0, "L", false, 0, "")
		}
		p.pdf.Ln(-1)
	}
}

func (p *page) date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(p.loc).Format("2006-01-02")
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func decimal(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

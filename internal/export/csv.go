package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"github.com/matcare/matcare/internal/platform/apperr"
)

type column struct {
	header string
	value  func(d *Detail, loc *time.Location) string
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func num(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func decimal(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func day(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format("2006-01-02")
}

var appointmentColumns = []column{
	{"Appointment ID", func(d *Detail, _ *time.Location) string { return d.ID.String() }},
	{"Date", func(d *Detail, loc *time.Location) string { return day(&d.Date, loc) }},
	{"Time", func(d *Detail, loc *time.Location) string {
		if d.Date.IsZero() {
			return ""
		}
		return d.Date.In(loc).Format("15:04")
	}},
	{"Service", func(d *Detail, _ *time.Location) string { return d.Service }},
	{"Status", func(d *Detail, _ *time.Location) string { return d.Status }},
	{"Payment Status", func(d *Detail, _ *time.Location) string { return d.PaymentStatus }},
	{"Weight (kg)", func(d *Detail, _ *time.Location) string { return decimal(d.Weight) }},
	{"Gestational Age (weeks)", func(d *Detail, _ *time.Location) string { return num(d.GestationalAge) }},
}

var patientColumns = []column{
	{"Patient Name", func(d *Detail, _ *time.Location) string {
		if d.Patient == nil {
			return ""
		}
		return d.Patient.Person.FullName()
	}},
	{"Birth Date", func(d *Detail, loc *time.Location) string {
		if d.Patient == nil {
			return ""
		}
		return day(d.Patient.Person.BirthDate, loc)
	}},
	{"Contact Number", func(d *Detail, _ *time.Location) string {
		if d.Patient == nil {
			return ""
		}
		return str(d.Patient.Person.ContactNumber)
	}},
	{"Blood Type", func(d *Detail, _ *time.Location) string {
		if d.Patient == nil {
			return ""
		}
		return str(d.Patient.BloodType)
	}},
	{"Gravidity", func(d *Detail, _ *time.Location) string {
		if d.Patient == nil {
			return ""
		}
		return num(d.Patient.Gravidity)
	}},
	{"Parity", func(d *Detail, _ *time.Location) string {
		if d.Patient == nil {
			return ""
		}
		return num(d.Patient.Parity)
	}},
	{"LMP", func(d *Detail, loc *time.Location) string {
		if d.Patient == nil {
			return ""
		}
		return day(d.Patient.LMP, loc)
	}},
	{"EDD", func(d *Detail, loc *time.Location) string {
		if d.Patient == nil {
			return ""
		}
		return day(d.Patient.EDD, loc)
	}},
}

var clinicianColumns = []column{
	{"Clinician Name", func(d *Detail, _ *time.Location) string {
		if d.Clinician == nil {
			return ""
		}
		return d.Clinician.Person.FullName()
	}},
	{"Clinician Role", func(d *Detail, _ *time.Location) string {
		if d.Clinician == nil {
			return ""
		}
		return d.Clinician.Role
	}},
	{"Specialization", func(d *Detail, _ *time.Location) string {
		if d.Clinician == nil {
			return ""
		}
		return str(d.Clinician.Specialization)
	}},
}

var vitalsColumns = []column{
	{"Temperature (°C)", func(d *Detail, _ *time.Location) string {
		if d.Vitals == nil {
			return ""
		}
		return decimal(d.Vitals.Temperature)
	}},
	{"Pulse Rate (bpm)", func(d *Detail, _ *time.Location) string {
		if d.Vitals == nil {
			return ""
		}
		return num(d.Vitals.PulseRate)
	}},
	{"Blood Pressure", func(d *Detail, _ *time.Location) string {
		if d.Vitals == nil {
			return ""
		}
		return str(d.Vitals.BloodPressure)
	}},
	{"Respiration Rate (/min)", func(d *Detail, _ *time.Location) string {
		if d.Vitals == nil {
			return ""
		}
		return num(d.Vitals.RespirationRate)
	}},
	{"Oxygen Saturation (%)", func(d *Detail, _ *time.Location) string {
		if d.Vitals == nil {
			return ""
		}
		return num(d.Vitals.OxygenSaturation)
	}},
}

// columns returns the selected groups in their fixed order. Prescriptions and
// supplements only appear in PDF reports.
func (s Selection) columns() []column {
	var cols []column
	if s.AppointmentInfo {
		cols = append(cols, appointmentColumns...)
	}
	if s.PatientInfo {
		cols = append(cols, patientColumns...)
	}
	if s.ClinicianInfo {
		cols = append(cols, clinicianColumns...)
	}
	if s.Vitals {
		cols = append(cols, vitalsColumns...)
	}
	return cols
}

// Header lists the CSV column names for s.
func (s Selection) Header() []string {
	cols := s.columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.header
	}
	return out
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// quote wraps a cell in double quotes and doubles any quote inside it.
// Line breaks inside the cell are written as "\n", matching the row
// terminator.
func quote(cell string) string {
	return `"` + strings.ReplaceAll(lineBreaks.Replace(cell), `"`, `""`) + `"`
}

func writeRow(buf *bytes.Buffer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(quote(c))
	}
	buf.WriteByte('\n')
}

// WriteCSV serializes details with one header row. Every cell is quoted so
// commas, quotes and newlines inside values survive. CRLF and lone CR inside
// a value are normalised to LF.
func WriteCSV(details []Detail, sel Selection, loc *time.Location) ([]byte, error) {
	cols := sel.columns()
	if len(cols) == 0 {
		return nil, apperr.Invalid("content", "select at least one of appointment, patient, clinician or vitals for CSV")
	}
	if loc == nil {
		loc = time.Local
	}

	var buf bytes.Buffer
	writeRow(&buf, sel.Header())
	row := make([]string, len(cols))
	for i := range details {
		for j, c := range cols {
			row[j] = c.value(&details[i], loc)
		}
		writeRow(&buf, row)
	}
	return buf.Bytes(), nil
}

// ParseCSV reads a file written by WriteCSV back into rows, header first.
func ParseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 0
	return r.ReadAll()
}

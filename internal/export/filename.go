package export

import (
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"
)

func (f Format) ext() string { return string(f) }

func (f Format) contentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// SingleFilename names a one-appointment export:
// Appointment_Report_<PatientName>_<YYYY-MM-DD>.<ext>.
func SingleFilename(patientName string, on time.Time, f Format) string {
	name := strings.Join(strings.FieldsFunc(patientName, unicode.IsSpace), "_")
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = "Unknown"
	}
	return "Appointment_Report_" + name + "_" + on.Format("2006-01-02") + "." + f.ext()
}

// BulkFilename names a multi-appointment export. Bulk PDFs are zipped.
func BulkFilename(on time.Time, f Format) string {
	ext := "csv"
	if f == FormatPDF {
		ext = "zip"
	}
	return "appointments_export_" + on.Format("2006-01-02") + "." + ext
}

// uniqueName suffixes name with _2, _3 ... when it was already used.
func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	n := seen[name]
	if n == 1 {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(n) + ext
}

package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matcare/matcare/internal/domain/person"
	"github.com/matcare/matcare/internal/domain/vitals"
	"github.com/matcare/matcare/internal/platform/apperr"
)

func ptr[T any](v T) *T { return &v }

func TestWriteCSV_RowAndColumnCounts(t *testing.T) {
	rows, err := Apply(twelve(), Filters{Status: "Completed", Sort: SortDesc, Limit: 5}, pht)
	require.NoError(t, err)

	sel := Selection{AppointmentInfo: true, PatientInfo: true, Vitals: true}
	data, err := WriteCSV(rows, sel, pht)
	require.NoError(t, err)

	parsed, err := ParseCSV(data)
	require.NoError(t, err)
	require.Len(t, parsed, 6, "header plus five rows")

	header := parsed[0]
	assert.Equal(t, len(appointmentColumns)+len(patientColumns)+len(vitalsColumns), len(header))
	for i, row := range parsed {
		assert.Len(t, row, len(header), "row %d", i)
	}
	assert.Equal(t, "Appointment ID", header[0])
	assert.Equal(t, "Patient Name", header[len(appointmentColumns)])
	assert.Equal(t, "2026-03-08", parsed[1][1])
	assert.Equal(t, "09:00", parsed[1][2])
}

func TestWriteCSV_GroupOrderIsFixed(t *testing.T) {
	sel := Selection{Vitals: true, ClinicianInfo: true, AppointmentInfo: true}
	header := sel.Header()
	require.Len(t, header, len(appointmentColumns)+len(clinicianColumns)+len(vitalsColumns))
	assert.Equal(t, "Appointment ID", header[0])
	assert.Equal(t, "Clinician Name", header[len(appointmentColumns)])
	assert.Equal(t, "Temperature (°C)", header[len(appointmentColumns)+len(clinicianColumns)])
}

func TestWriteCSV_EscapingRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`Prenatal, "follow-up"`, `Prenatal, "follow-up"`},
		{"line one\nline two", "line one\nline two"},
		{"line one\r\nline two", "line one\nline two"},
		{"old mac\rbreak", "old mac\nbreak"},
		{`"`, `"`},
		{`a,b,"c"`, `a,b,"c"`},
		{"", ""},
	}
	var rows []Detail
	for _, tt := range tests {
		d := detailAt(1, 9, "Scheduled")
		d.Service = tt.in
		rows = append(rows, d)
	}
	data, err := WriteCSV(rows, Selection{AppointmentInfo: true}, pht)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\r")

	parsed, err := ParseCSV(data)
	require.NoError(t, err)
	require.Len(t, parsed, len(tests)+1)
	for i, tt := range tests {
		assert.Equal(t, tt.want, parsed[i+1][3])
	}
	assert.Contains(t, string(data), `"Prenatal, ""follow-up"""`)
}

func TestWriteCSV_EveryCellQuoted(t *testing.T) {
	data, err := WriteCSV([]Detail{detailAt(2, 10, "Scheduled")}, Selection{AppointmentInfo: true}, pht)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		for _, cell := range strings.Split(line, ",") {
			assert.True(t, strings.HasPrefix(cell, `"`) && strings.HasSuffix(cell, `"`), "cell %s", cell)
		}
	}
	assert.True(t, strings.HasSuffix(string(data), "\n"))
}

func TestWriteCSV_MissingValuesAreEmpty(t *testing.T) {
	d := detailAt(3, 9, "Scheduled")
	d.Patient = nil
	d.Clinician = nil
	d.Vitals = &vitals.Vitals{Temperature: ptr(36.6)}

	data, err := WriteCSV([]Detail{d}, AllSections(), pht)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")
	assert.NotContains(t, string(data), "<nil>")

	parsed, err := ParseCSV(data)
	require.NoError(t, err)
	row := parsed[1]
	vitalsAt := len(appointmentColumns) + len(patientColumns) + len(clinicianColumns)
	assert.Equal(t, "", row[len(appointmentColumns)], "patient name")
	assert.Equal(t, "36.6", row[vitalsAt])
	assert.Equal(t, "", row[vitalsAt+1], "pulse")
	assert.Equal(t, "", row[6], "weight")
}

func TestWriteCSV_PatientFields(t *testing.T) {
	d := detailAt(3, 9, "Completed")
	d.Weight = ptr(62.5)
	d.GestationalAge = ptr(28)
	d.Patient = &person.Patient{
		BloodType: ptr("O+"),
		Gravidity: ptr(2),
		Person:    person.Person{FirstName: "Ana", MiddleName: ptr("Reyes"), LastName: "Cruz"},
	}
	data, err := WriteCSV([]Detail{d}, Selection{AppointmentInfo: true, PatientInfo: true}, pht)
	require.NoError(t, err)

	parsed, err := ParseCSV(data)
	require.NoError(t, err)
	row := parsed[1]
	assert.Equal(t, "62.5", row[6])
	assert.Equal(t, "28", row[7])
	assert.Equal(t, "Ana Reyes Cruz", row[8])
	assert.Equal(t, "O+", row[11])
	assert.Equal(t, "2", row[12])
}

func TestWriteCSV_NoColumnsSelected(t *testing.T) {
	_, err := WriteCSV(twelve(), Selection{Prescriptions: true}, pht)
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestFilenames(t *testing.T) {
	on := time.Date(2026, 4, 9, 15, 0, 0, 0, pht)
	assert.Equal(t, "Appointment_Report_Maria_de_la_Cruz_2026-04-09.pdf", SingleFilename("Maria  de la\tCruz", on, FormatPDF))
	assert.Equal(t, "Appointment_Report_Unknown_2026-04-09.csv", SingleFilename("  ", on, FormatCSV))
	assert.Equal(t, "appointments_export_2026-04-09.csv", BulkFilename(on, FormatCSV))
	assert.Equal(t, "appointments_export_2026-04-09.zip", BulkFilename(on, FormatPDF))

	seen := map[string]int{}
	assert.Equal(t, "a.pdf", uniqueName(seen, "a.pdf"))
	assert.Equal(t, "a_2.pdf", uniqueName(seen, "a.pdf"))
}

// Package export turns appointments and their related records into CSV files
// or per-appointment PDF reports rendered by the document endpoint.
package export

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matcare/matcare/internal/domain/appointment"
	"github.com/matcare/matcare/internal/domain/medication"
	"github.com/matcare/matcare/internal/domain/person"
	"github.com/matcare/matcare/internal/domain/vitals"
	"github.com/matcare/matcare/internal/platform/apperr"
)

// Detail is one appointment joined with the records an export may include.
type Detail struct {
	appointment.Appointment
	Patient       *person.Patient          `json:"patient,omitempty"`
	Clinician     *person.Clinician        `json:"clinician,omitempty"`
	Vitals        *vitals.Vitals           `json:"vitals,omitempty"`
	Prescriptions []*medication.Medication `json:"prescriptions,omitempty"`
	Supplements   []*medication.Medication `json:"supplements,omitempty"`
}

// PatientName is the patient's full name, or "Unknown" when not loaded.
func (d *Detail) PatientName() string {
	if d.Patient == nil {
		return "Unknown"
	}
	if name := d.Patient.Person.FullName(); name != "" {
		return name
	}
	return "Unknown"
}

// Selection chooses which sections an export carries. Field names follow the
// document endpoint's exportOptions.
type Selection struct {
	AppointmentInfo bool `json:"appointmentInfo"`
	PatientInfo     bool `json:"patientInfo"`
	ClinicianInfo   bool `json:"clinicianInfo"`
	Vitals          bool `json:"vitals"`
	Prescriptions   bool `json:"prescriptions"`
	Supplements     bool `json:"supplements"`
}

// AllSections selects everything.
func AllSections() Selection {
	return Selection{true, true, true, true, true, true}
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return s == Selection{}
}

// Trim drops the sections s does not select.
func (s Selection) Trim(d Detail) Detail {
	if !s.PatientInfo {
		d.Patient = nil
	}
	if !s.ClinicianInfo {
		d.Clinician = nil
	}
	if !s.Vitals {
		d.Vitals = nil
	}
	if !s.Prescriptions {
		d.Prescriptions = nil
	}
	if !s.Supplements {
		d.Supplements = nil
	}
	return d
}

type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts csv or pdf in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", apperr.Invalid("format", "must be csv or pdf, got %q", s)
}

type SortOrder string

const (
	SortNone SortOrder = "none"
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filters is the export pipeline input. From and To are calendar days
// (YYYY-MM-DD), both inclusive. Status "" or "all" keeps every status.
// Limit <= 0 keeps every row.
type Filters struct {
	From   string    `json:"date_from,omitempty"`
	To     string    `json:"date_to,omitempty"`
	Status string    `json:"status,omitempty"`
	Sort   SortOrder `json:"sort,omitempty"`
	Limit  int       `json:"limit,omitempty"`
}

// File is a finished export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	// Appointments is how many appointments the file covers.
	Appointments int
}

// DocumentRequest is the body POSTed to the document endpoint.
type DocumentRequest struct {
	Appointment   Detail    `json:"appointment"`
	ExportOptions Selection `json:"exportOptions"`
	ExportFormat  Format    `json:"exportFormat"`
}

// LoadFilter narrows what a DetailSource reads before the pipeline runs.
type LoadFilter struct {
	IDs         []uuid.UUID
	ClinicianID *uuid.UUID
	From        *time.Time // inclusive
	To          *time.Time // exclusive
}

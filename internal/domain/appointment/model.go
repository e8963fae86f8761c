package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matcare/matcare/internal/platform/apperr"
)

const (
	StatusScheduled = "Scheduled"
	StatusCompleted = "Completed"
	StatusCanceled  = "Canceled"

	PaymentUnpaid  = "Unpaid"
	PaymentPending = "Pending"
	PaymentPaid    = "Paid"
)

// ErrDuplicate is returned when another active appointment already holds the
// same patient, clinician and date+time.
var ErrDuplicate error = &apperr.ConflictError{Message: "appointment already exists"}

// Appointment maps to the appointment table.
type Appointment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	ClinicianID    uuid.UUID `db:"clinician_id" json:"clinician_id"`
	Date           time.Time `db:"date" json:"date"`
	Service        string    `db:"service" json:"service"`
	Weight         *float64  `db:"weight" json:"weight,omitempty"`
	GestationalAge *int      `db:"gestational_age" json:"gestational_age,omitempty"`
	Status         string    `db:"status" json:"status"`
	PaymentStatus  string    `db:"payment_status" json:"payment_status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Input is the create form. Date is YYYY-MM-DD and Time is HH:MM; they are
// merged into Appointment.Date in the clinic location.
type Input struct {
	PatientID      uuid.UUID `json:"patient_id"`
	ClinicianID    uuid.UUID `json:"clinician_id"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Service        string    `json:"service"`
	Weight         *float64  `json:"weight,omitempty"`
	GestationalAge *int      `json:"gestational_age,omitempty"`
	Status         string    `json:"status,omitempty"`
	PaymentStatus  string    `json:"payment_status,omitempty"`
}

// Patch is a partial update. Nil fields keep their stored value.
type Patch struct {
	PatientID      *uuid.UUID `json:"patient_id,omitempty"`
	ClinicianID    *uuid.UUID `json:"clinician_id,omitempty"`
	Date           *string    `json:"date,omitempty"`
	Time           *string    `json:"time,omitempty"`
	Service        *string    `json:"service,omitempty"`
	Weight         *float64   `json:"weight,omitempty"`
	GestationalAge *int       `json:"gestational_age,omitempty"`
	Status         *string    `json:"status,omitempty"`
	PaymentStatus  *string    `json:"payment_status,omitempty"`
}

// ListFilter narrows ListAppointments. From is inclusive and To exclusive.
type ListFilter struct {
	PatientID   *uuid.UUID
	ClinicianID *uuid.UUID
	Status      string
	From        *time.Time
	To          *time.Time
}

// Slot is the informal uniqueness key of an appointment.
type Slot struct {
	PatientID   uuid.UUID
	ClinicianID uuid.UUID
	Date        time.Time
}

var statuses = map[string]string{
	"scheduled": StatusScheduled,
	"completed": StatusCompleted,
	"canceled":  StatusCanceled,
	"cancelled": StatusCanceled,
}

// "Completed" is the dashboard's spelling of Paid.
var paymentStatuses = map[string]string{
	"unpaid":    PaymentUnpaid,
	"pending":   PaymentPending,
	"paid":      PaymentPaid,
	"completed": PaymentPaid,
}

// NormalizeStatus maps any casing of a status onto its stored spelling.
func NormalizeStatus(s string) (string, bool) {
	v, ok := statuses[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// NormalizePaymentStatus maps any casing of a payment status onto its stored
// spelling, accepting Completed as Paid.
func NormalizePaymentStatus(s string) (string, bool) {
	v, ok := paymentStatuses[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// CombineDateTime sets the hour and minute of date from an "HH:MM" string in
// loc. Seconds and nanoseconds are zeroed. A trailing ":SS" is accepted and
// dropped.
func CombineDateTime(date time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	hhmm = strings.TrimSpace(hhmm)
	layout := "15:04"
	if strings.Count(hhmm, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, hhmm)
	if err != nil {
		return time.Time{}, apperr.Invalid("time", "must be HH:MM, got %q", hhmm)
	}
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
}

// ParseDate reads a YYYY-MM-DD calendar date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, apperr.Invalid("date", "must be YYYY-MM-DD, got %q", s)
	}
	return d, nil
}

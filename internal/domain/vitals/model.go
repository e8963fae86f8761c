package vitals

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matcare/matcare/internal/domain/appointment"
	"github.com/matcare/matcare/internal/platform/apperr"
)

// Vitals is the 1:1 extension of an appointment. ID is the appointment id.
type Vitals struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Temperature      *float64  `db:"temperature" json:"temperature,omitempty"`
	PulseRate        *int      `db:"pulse_rate" json:"pulse_rate,omitempty"`
	BloodPressure    *string   `db:"blood_pressure" json:"blood_pressure,omitempty"`
	RespirationRate  *int      `db:"respiration_rate" json:"respiration_rate,omitempty"`
	OxygenSaturation *int      `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Fields are the vitals form values.
type Fields struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	PulseRate        *int     `json:"pulse_rate,omitempty"`
	BloodPressure    *string  `json:"blood_pressure,omitempty"`
	RespirationRate  *int     `json:"respiration_rate,omitempty"`
	OxygenSaturation *int     `json:"oxygen_saturation,omitempty"`
}

// AppointmentFields are written to the appointment row alongside the vitals.
// Nil keeps the stored value.
type AppointmentFields struct {
	Weight         *float64 `json:"weight,omitempty"`
	GestationalAge *int     `json:"gestational_age,omitempty"`
}

// Result is a completed save. Inserted reports whether no vitals row existed
// before the call.
type Result struct {
	Vitals      *Vitals                  `json:"vitals"`
	Appointment *appointment.Appointment `json:"appointment"`
	Inserted    bool                     `json:"inserted"`
}

// Range is an inclusive bound on one form field.
type Range struct {
	Field string
	Min   float64
	Max   float64
	Unit  string
}

var (
	TemperatureRange      = Range{"temperature", 35, 42, "°C"}
	PulseRange            = Range{"pulse_rate", 40, 200, "bpm"}
	RespirationRange      = Range{"respiration_rate", 12, 30, "/min"}
	OxygenSaturationRange = Range{"oxygen_saturation", 90, 100, "%"}
	WeightRange           = Range{"weight", 30, 200, "kg"}
	GestationalAgeRange   = Range{"gestational_age", 0, 45, "weeks"}
	SystolicRange         = Range{"blood_pressure", 40, 300, "mmHg systolic"}
	DiastolicRange        = Range{"blood_pressure", 20, 200, "mmHg diastolic"}
)

func (r Range) check(v float64) error {
	if v < r.Min || v > r.Max {
		return apperr.Invalid(r.Field, "must be between %v and %v %s, got %v", r.Min, r.Max, r.Unit, v)
	}
	return nil
}

// Validate checks every present value against its range. Nothing is written
// when it fails.
func Validate(f Fields, af AppointmentFields) error {
	if f.Temperature != nil {
		if err := TemperatureRange.check(*f.Temperature); err != nil {
			return err
		}
	}
	if f.PulseRate != nil {
		if err := PulseRange.check(float64(*f.PulseRate)); err != nil {
			return err
		}
	}
	if f.RespirationRate != nil {
		if err := RespirationRange.check(float64(*f.RespirationRate)); err != nil {
			return err
		}
	}
	if f.OxygenSaturation != nil {
		if err := OxygenSaturationRange.check(float64(*f.OxygenSaturation)); err != nil {
			return err
		}
	}
	if _, err := NormalizeBloodPressure(f.BloodPressure); err != nil {
		return err
	}
	if af.Weight != nil {
		if err := WeightRange.check(*af.Weight); err != nil {
			return err
		}
	}
	if af.GestationalAge != nil {
		if err := GestationalAgeRange.check(float64(*af.GestationalAge)); err != nil {
			return err
		}
	}
	return nil
}

// ParseBloodPressure reads "systolic/diastolic" and checks both readings
// against SystolicRange and DiastolicRange.
func ParseBloodPressure(s string) (systolic, diastolic int, err error) {
	sys, dia, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0, 0, apperr.Invalid("blood_pressure", "must be systolic/diastolic, got %q", s)
	}
	systolic, err1 := strconv.Atoi(strings.TrimSpace(sys))
	diastolic, err2 := strconv.Atoi(strings.TrimSpace(dia))
	if err1 != nil || err2 != nil {
		return 0, 0, apperr.Invalid("blood_pressure", "must be systolic/diastolic, got %q", s)
	}
	if err := SystolicRange.check(float64(systolic)); err != nil {
		return 0, 0, err
	}
	if err := DiastolicRange.check(float64(diastolic)); err != nil {
		return 0, 0, err
	}
	return systolic, diastolic, nil
}

// NormalizeBloodPressure returns the stored form "sys/dia", or nil for a
// missing or blank reading.
func NormalizeBloodPressure(s *string) (*string, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	sys, dia, err := ParseBloodPressure(*s)
	if err != nil {
		return nil, err
	}
	out := fmt.Sprintf("%d/%d", sys, dia)
	return &out, nil
}

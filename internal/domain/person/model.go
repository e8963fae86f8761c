package person

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Person is the shared identity row behind every patient and clinician.
type Person struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	FirstName         string     `db:"first_name" json:"first_name"`
	MiddleName        *string    `db:"middle_name" json:"middle_name,omitempty"`
	LastName          string     `db:"last_name" json:"last_name"`
	BirthDate         *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Sex               *string    `db:"sex" json:"sex,omitempty"`
	ContactNumber     *string    `db:"contact_number" json:"contact_number,omitempty"`
	Email             *string    `db:"email" json:"email,omitempty"`
	Address           *string    `db:"address" json:"address,omitempty"`
	Status            string     `db:"status" json:"status"`
	ProfilePictureURL *string    `db:"profile_picture_url" json:"profile_picture_url,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first, middle and last name, skipping empty parts.
func (p *Person) FullName() string {
	parts := []string{strings.TrimSpace(p.FirstName)}
	if p.MiddleName != nil {
		parts = append(parts, strings.TrimSpace(*p.MiddleName))
	}
	parts = append(parts, strings.TrimSpace(p.LastName))

	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}

// Patient extends a Person one-to-one.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PersonID  uuid.UUID  `db:"person_id" json:"person_id"`
	BloodType *string    `db:"blood_type" json:"blood_type,omitempty"`
	Gravidity *int       `db:"gravidity" json:"gravidity,omitempty"`
	Parity    *int       `db:"parity" json:"parity,omitempty"`
	LMP       *time.Time `db:"lmp" json:"lmp,omitempty"`
	EDD       *time.Time `db:"edd" json:"edd,omitempty"`
	Person    Person     `json:"person"`
}

// Clinician extends a Person one-to-one.
type Clinician struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PersonID       uuid.UUID `db:"person_id" json:"person_id"`
	Role           string    `db:"role" json:"role"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	Person         Person    `json:"person"`
}

const (
	RoleDoctor  = "Doctor"
	RoleMidwife = "Midwife"
)

// ListFilter narrows patient and clinician listings.
type ListFilter struct {
	Query  string // matches first or last name, case-insensitive prefix
	Status string
	Role   string // clinicians only
}

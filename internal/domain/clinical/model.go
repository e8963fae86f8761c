package clinical

import (
	"time"

	"github.com/google/uuid"
)

const (
	SeverityMild     = "Mild"
	SeverityModerate = "Moderate"
	SeveritySevere   = "Severe"
)

// Allergy maps to the allergy table.
type Allergy struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	Allergen  string     `db:"allergen" json:"allergen"`
	Reaction  *string    `db:"reaction" json:"reaction,omitempty"`
	Severity  *string    `db:"severity" json:"severity,omitempty"`
	NotedAt   *time.Time `db:"noted_at" json:"noted_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

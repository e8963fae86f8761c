package laboratory

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Record maps to laboratory_records. FileURL is the public object URL written
// back as upload confirmation; FileObject is the object path inside the
// laboratory-files bucket.
type Record struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	TestName      string     `db:"test_name" json:"test_name"`
	ResultSummary *string    `db:"result_summary" json:"result_summary,omitempty"`
	PerformedAt   *time.Time `db:"performed_at" json:"performed_at,omitempty"`
	FileURL       *string    `db:"fileurl" json:"fileurl,omitempty"`
	FileObject    *string    `db:"file_object" json:"file_object,omitempty"`
	ContentType   *string    `db:"content_type" json:"content_type,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Upload is an attached file.
type Upload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// SignedURL is a time-limited read link to a record's file.
type SignedURL struct {
	URL       string    `json:"signed_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

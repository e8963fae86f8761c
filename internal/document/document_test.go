package document

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matcare/matcare/internal/domain/appointment"
	"github.com/matcare/matcare/internal/domain/medication"
	"github.com/matcare/matcare/internal/domain/person"
	"github.com/matcare/matcare/internal/domain/vitals"
	"github.com/matcare/matcare/internal/export"
)

func ptr[T any](v T) *T { return &v }

func sampleRequest() export.DocumentRequest {
	now := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	return export.DocumentRequest{
		Appointment: export.Detail{
			Appointment: appointment.Appointment{
				ID:             uuid.New(),
				Date:           now,
				Service:        "Prenatal checkup",
				Weight:         ptr(61.2),
				GestationalAge: ptr(24),
				Status:         appointment.StatusCompleted,
				PaymentStatus:  appointment.PaymentPaid,
			},
			Patient: &person.Patient{
				BloodType: ptr("A+"),
				Person:    person.Person{FirstName: "Lourdes", LastName: "Peña"},
			},
			Clinician: &person.Clinician{Role: person.RoleMidwife, Person: person.Person{FirstName: "Joy", LastName: "Dela Cruz"}},
			Vitals:    &vitals.Vitals{Temperature: ptr(36.8), BloodPressure: ptr("110/70")},
			Prescriptions: []*medication.Medication{
				{Name: "Folic acid", Strength: ptr("400 mcg"), Status: medication.StatusActive, Date: now},
			},
		},
		ExportOptions: export.AllSections(),
		ExportFormat:  export.FormatPDF,
	}
}

func TestRenderer_Render(t *testing.T) {
	data, err := NewRenderer(time.UTC).Render(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestRenderer_SectionsOptional(t *testing.T) {
	req := sampleRequest()
	req.Appointment.Patient = nil
	req.Appointment.Vitals = nil
	req.ExportOptions = export.Selection{PatientInfo: true, Vitals: true, Supplements: true}

	data, err := NewRenderer(nil).Render(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRenderer_Rejects(t *testing.T) {
	r := NewRenderer(time.UTC)

	req := sampleRequest()
	req.ExportFormat = "csv"
	_, err := r.Render(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	req = sampleRequest()
	req.Appointment.ID = uuid.Nil
	_, err = r.Render(context.Background(), req)
	assert.ErrorIs(t, err, ErrMissingAppointment)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Render(ctx, sampleRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func post(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/export"))
	req := httptest.NewRequest(http.MethodPost, "/api/export/appointment", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_RenderAppointment(t *testing.T) {
	h := NewHandler(NewRenderer(time.UTC), zerolog.Nop(), nil)
	body, err := json.Marshal(sampleRequest())
	require.NoError(t, err)

	rec := post(t, h, string(body))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestHandler_RenderAppointmentErrors(t *testing.T) {
	h := NewHandler(NewRenderer(time.UTC), zerolog.Nop(), nil)

	docx := sampleRequest()
	docx.ExportFormat = "docx"
	docxBody, err := json.Marshal(docx)
	require.NoError(t, err)

	cases := map[string]string{
		"malformed":          `{"appointment":`,
		"unsupported format": string(docxBody),
		"missing id":         `{"exportFormat":"pdf","exportOptions":{"appointmentInfo":true},"appointment":{}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := post(t, h, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var e errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestClientAgainstHandler(t *testing.T) {
	e := echo.New()
	NewHandler(NewRenderer(time.UTC), zerolog.Nop(), nil).RegisterRoutes(e.Group("/api/export"))
	srv := httptest.NewServer(e)
	defer srv.Close()

	client := export.NewDocumentClient(srv.URL+"/api/export/appointment", 5*time.Second)
	data, err := client.Render(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	bad := sampleRequest()
	bad.ExportFormat = "docx"
	_, err = client.Render(context.Background(), bad)
	var de *export.DocumentError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusBadRequest, de.StatusCode)
	assert.Contains(t, de.Message, "unsupported export format")
}

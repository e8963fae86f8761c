package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"

	"github.com/matcare/matcare/internal/config"
	"github.com/matcare/matcare/internal/domain/appointment"
	"github.com/matcare/matcare/internal/export"
	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/blobstore"
	"github.com/matcare/matcare/internal/platform/db"
	"github.com/matcare/matcare/internal/platform/metrics"
	"github.com/matcare/matcare/internal/statusflow"
)

// ---------------------------------------------------------------------------
// changeField
// ---------------------------------------------------------------------------

type fakeStatusService struct {
	appt    appointment.Appointment
	writes  []string
	failErr error
}

func (f *fakeStatusService) GetAppointment(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if id != f.appt.ID {
		return nil, apperr.ErrNotFound
	}
	a := f.appt
	return &a, nil
}

func (f *fakeStatusService) set(field *string, v string) (*appointment.Appointment, error) {
	f.writes = append(f.writes, v)
	if f.failErr != nil {
		return nil, f.failErr
	}
	*field = v
	a := f.appt
	return &a, nil
}

func (f *fakeStatusService) SetStatus(_ context.Context, _ uuid.UUID, v string) (*appointment.Appointment, error) {
	return f.set(&f.appt.Status, v)
}

func (f *fakeStatusService) SetPaymentStatus(_ context.Context, _ uuid.UUID, v string) (*appointment.Appointment, error) {
	return f.set(&f.appt.PaymentStatus, v)
}

func newFakeStatusService() *fakeStatusService {
	return &fakeStatusService{appt: appointment.Appointment{
		ID:            uuid.New(),
		Status:        appointment.StatusScheduled,
		PaymentStatus: appointment.PaymentUnpaid,
	}}
}

func TestChangeField_Status(t *testing.T) {
	svc := newFakeStatusService()
	var out bytes.Buffer
	err := changeField(context.Background(), svc, statusflow.FieldStatus, svc.appt.ID, "completed", time.Millisecond, nil, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.appt.Status != appointment.StatusCompleted {
		t.Errorf("expected Completed, got %s", svc.appt.Status)
	}
	if out.String() != "status: Completed\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestChangeField_PaymentAlias(t *testing.T) {
	svc := newFakeStatusService()
	var out bytes.Buffer
	if err := changeField(context.Background(), svc, statusflow.FieldPaymentStatus, svc.appt.ID, "Completed", time.Millisecond, nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.writes) != 1 || svc.writes[0] != appointment.PaymentPaid {
		t.Errorf("expected one write of Paid, got %v", svc.writes)
	}
}

func TestChangeField_FailureReverts(t *testing.T) {
	svc := newFakeStatusService()
	svc.failErr = errors.New("connection reset")
	m := metrics.New()
	var out bytes.Buffer

	err := changeField(context.Background(), svc, statusflow.FieldStatus, svc.appt.ID, "Canceled", time.Millisecond, m, &out)
	if err == nil || !errors.Is(err, svc.failErr) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
	if out.String() != "status: Canceled\nstatus: Scheduled\n" {
		t.Errorf("expected optimistic value then revert, got %q", out.String())
	}
}

func TestChangeField_InvalidValue(t *testing.T) {
	svc := newFakeStatusService()
	err := changeField(context.Background(), svc, statusflow.FieldStatus, svc.appt.ID, "Archived", time.Millisecond, nil, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "invalid status") {
		t.Fatalf("expected invalid status error, got %v", err)
	}
	if len(svc.writes) != 0 {
		t.Errorf("expected no writes, got %v", svc.writes)
	}
}

func TestChangeField_NotFound(t *testing.T) {
	svc := newFakeStatusService()
	err := changeField(context.Background(), svc, statusflow.FieldStatus, uuid.New(), "Completed", time.Millisecond, nil, &bytes.Buffer{})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// migration status output
// ---------------------------------------------------------------------------

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var out bytes.Buffer
	printMigrationStatus(&out, []db.MigrationStatus{
		{Version: 1, Name: "001_core.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_appointments.sql"},
	})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[2], "applied") || !strings.Contains(lines[2], "2026-01-02T03:04:05Z") {
		t.Errorf("unexpected applied line %q", lines[2])
	}
	if !strings.Contains(lines[3], "pending") {
		t.Errorf("unexpected pending line %q", lines[3])
	}
}

// ---------------------------------------------------------------------------
// router
// ---------------------------------------------------------------------------

func testServer(t *testing.T, env string) http.Handler {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mock.Close)

	cfg := &config.Config{
		Env:               env,
		CORSOrigins:       []string{"http://localhost:3000"},
		AuthSigningKey:    "test-signing-key",
		StorageSigningKey: "0123456789abcdef0123456789abcdef",
		SignedURLTTL:      time.Hour,
		PublicBaseURL:     "http://localhost:8000",
		DocumentURL:       "http://localhost:8000/api/export/appointment",
		DocumentTimeout:   time.Second,
	}
	return newServer(serverDeps{
		cfg:     cfg,
		db:      mock,
		pinger:  mock,
		store:   blobstore.NewMemoryStore(),
		loc:     time.UTC,
		log:     zerolog.Nop(),
		metrics: metrics.New(),
	})
}

func TestServer_Health(t *testing.T) {
	srv := testServer(t, "development")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := testServer(t, "development")
	srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "matcare_http_requests_total") {
		t.Error("expected http request counter in metrics output")
	}
}

func TestServer_DocumentEndpointIsPublic(t *testing.T) {
	srv := testServer(t, "production")
	body, _ := json.Marshal(export.DocumentRequest{
		Appointment: export.Detail{Appointment: appointment.Appointment{
			ID: uuid.New(), Date: time.Now(), Service: "Prenatal checkup", Status: appointment.StatusScheduled,
		}},
		ExportOptions: export.Selection{AppointmentInfo: true},
		ExportFormat:  export.FormatPDF,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/export/appointment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("expected a PDF body")
	}
}

func TestServer_APIRequiresAuthOutsideDevelopment(t *testing.T) {
	srv := testServer(t, "production")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/measures", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestServer_DevAuthReachesRoutes(t *testing.T) {
	srv := testServer(t, "development")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/measures", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

package export

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matcare/matcare/internal/platform/auth"
)

type memorySource struct {
	details []Detail
	last    LoadFilter
	err     error
}

func (m *memorySource) Load(_ context.Context, f LoadFilter, _ Selection) ([]Detail, error) {
	m.last = f
	if m.err != nil {
		return nil, m.err
	}
	ids := make(map[uuid.UUID]bool, len(f.IDs))
	for _, id := range f.IDs {
		ids[id] = true
	}
	var out []Detail
	for _, d := range m.details {
		if len(ids) > 0 && !ids[d.ID] {
			continue
		}
		if f.ClinicianID != nil && *f.ClinicianID != d.ClinicianID {
			continue
		}
		if f.From != nil && d.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && !d.Date.Before(*f.To) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func newTestExportHandler(details []Detail, r DocumentRenderer) (*Handler, *memorySource) {
	src := &memorySource{details: details}
	return NewHandler(NewService(src, newTestComposer(r, nil))), src
}

func adminRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "admin", IsAdmin: true}))
}

func attachmentName(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	disposition, params, err := mime.ParseMediaType(rec.Header().Get(echo.HeaderContentDisposition))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	return params["filename"]
}

func TestHandler_ExportAppointmentsCSV(t *testing.T) {
	h, src := newTestExportHandler(twelve(), &fakeRenderer{})
	e := echo.New()
	body := `{"date_from":"2026-03-01","date_to":"2026-03-12","status":"Completed","sort":"desc","limit":5,"format":"csv"}`
	rec := httptest.NewRecorder()

	require.NoError(t, h.ExportAppointments(e.NewContext(adminRequest(http.MethodPost, "/api/v1/exports/appointments", body), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "appointments_export_2026-05-21.csv", attachmentName(t, rec))
	assert.Nil(t, src.last.ClinicianID)
	require.NotNil(t, src.last.From)
	require.NotNil(t, src.last.To)
	assert.Equal(t, 13, src.last.To.Day(), "upper bound is the day after date_to")

	parsed, err := ParseCSV(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, parsed, 6)
}

func TestHandler_ExportAppointmentsContentSelection(t *testing.T) {
	h, _ := newTestExportHandler(twelve(), &fakeRenderer{})
	e := echo.New()
	body := `{"format":"csv","content":{"appointmentInfo":true}}`
	rec := httptest.NewRecorder()

	require.NoError(t, h.ExportAppointments(e.NewContext(adminRequest(http.MethodPost, "/", body), rec)))
	parsed, err := ParseCSV(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, parsed[0], len(appointmentColumns))
	assert.Len(t, parsed, 13)
}

func TestHandler_ExportAppointmentsBadFormat(t *testing.T) {
	h, _ := newTestExportHandler(twelve(), &fakeRenderer{})
	e := echo.New()
	err := h.ExportAppointments(e.NewContext(adminRequest(http.MethodPost, "/", `{"format":"xlsx"}`), httptest.NewRecorder()))
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestHandler_ExportAppointmentsPartial(t *testing.T) {
	in := twelve()
	r := &fakeRenderer{fail: map[uuid.UUID]error{in[0].ID: errors.New("timeout")}}
	h, _ := newTestExportHandler(in, r)
	e := echo.New()
	rec := httptest.NewRecorder()

	body := `{"format":"pdf","date_to":"2026-03-02"}`
	require.NoError(t, h.ExportAppointments(e.NewContext(adminRequest(http.MethodPost, "/", body), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, in[0].ID.String(), rec.Header().Get(FailedHeader))
}

func TestHandler_ExportAppointmentsBackendError(t *testing.T) {
	h, src := newTestExportHandler(nil, &fakeRenderer{})
	src.err = errors.New("connection refused")
	e := echo.New()
	err := h.ExportAppointments(e.NewContext(adminRequest(http.MethodPost, "/", `{"format":"csv"}`), httptest.NewRecorder()))
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.Code)
}

func TestHandler_ExportAppointmentSingle(t *testing.T) {
	in := twelve()
	r := &fakeRenderer{}
	h, _ := newTestExportHandler(in, r)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(adminRequest(http.MethodGet, "/?sections=appointment,vitals", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues(in[3].ID.String())

	require.NoError(t, h.ExportAppointment(c))
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "Appointment_Report_Maria_Santos_2026-05-21.pdf", attachmentName(t, rec))
	require.Len(t, r.calls, 1)
	assert.Equal(t, Selection{AppointmentInfo: true, Vitals: true}, r.calls[0].ExportOptions)
}

func TestHandler_ExportAppointmentQuotedPatientName(t *testing.T) {
	in := twelve()
	in[0].Patient.Person.LastName = `Santos "Ria"`
	h, _ := newTestExportHandler(in, &fakeRenderer{})
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(adminRequest(http.MethodGet, "/", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues(in[0].ID.String())

	require.NoError(t, h.ExportAppointment(c))
	assert.Equal(t, `Appointment_Report_Maria_Santos_"Ria"_2026-05-21.pdf`, attachmentName(t, rec))
}

func TestHandler_ExportAppointmentScopedToClinician(t *testing.T) {
	in := twelve()
	h, src := newTestExportHandler(in, &fakeRenderer{})
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?format=csv", nil)
	other := uuid.New()
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{
		UserID: "u1", Roles: []string{auth.RoleMidwife}, ClinicianID: other.String(),
	}))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(in[0].ID.String())

	err := h.ExportAppointment(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.Code)
	require.NotNil(t, src.last.ClinicianID)
	assert.Equal(t, other, *src.last.ClinicianID)
}

func TestHandler_ExportAppointmentBadInput(t *testing.T) {
	h, _ := newTestExportHandler(twelve(), &fakeRenderer{})
	e := echo.New()

	cases := map[string]struct{ id, query string }{
		"invalid id":      {"nope", "/"},
		"unknown format":  {uuid.NewString(), "/?format=docx"},
		"unknown section": {uuid.NewString(), "/?sections=billing"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := e.NewContext(adminRequest(http.MethodGet, tc.query, ""), httptest.NewRecorder())
			c.SetParamNames("id")
			c.SetParamValues(tc.id)
			err := h.ExportAppointment(c)
			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, http.StatusBadRequest, he.Code)
		})
	}
}

func TestHandler_ExportRoutesRequireStaff(t *testing.T) {
	h, _ := newTestExportHandler(twelve(), &fakeRenderer{})
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), auth.Identity{UserID: "guest", Roles: []string{"patient"}})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	h.RegisterRoutes(e.Group("/api/v1"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/exports/appointments", strings.NewReader(`{"format":"csv"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

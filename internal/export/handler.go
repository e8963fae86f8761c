package export

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/auth"
)

// FailedHeader lists appointment ids whose report could not be rendered when
// a partial export is returned.
const FailedHeader = "X-Export-Failed"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/exports", auth.RequireRole(auth.StaffRoles...))
	g.POST("/appointments", h.ExportAppointments)
	g.GET("/appointments/:id", h.ExportAppointment)
}

func clinicianScope(c echo.Context) *uuid.UUID {
	id := auth.IdentityFromContext(c.Request().Context())
	if id.IsAdmin || id.ClinicianID == "" {
		return nil
	}
	cid, err := uuid.Parse(id.ClinicianID)
	if err != nil {
		return &uuid.Nil
	}
	return &cid
}

// parseSections reads a comma-separated list of section names. Empty selects
// every section.
func parseSections(raw string) (Selection, error) {
	if strings.TrimSpace(raw) == "" {
		return AllSections(), nil
	}
	var sel Selection
	for _, name := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "appointmentinfo", "appointment":
			sel.AppointmentInfo = true
		case "patientinfo", "patient":
			sel.PatientInfo = true
		case "clinicianinfo", "clinician":
			sel.ClinicianInfo = true
		case "vitals":
			sel.Vitals = true
		case "prescriptions":
			sel.Prescriptions = true
		case "supplements":
			sel.Supplements = true
		default:
			return sel, apperr.Invalid("sections", "unknown section %q", name)
		}
	}
	return sel, nil
}

func (h *Handler) ExportAppointments(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.Export(c.Request().Context(), req, clinicianScope(c))
	return send(c, f, err)
}

func (h *Handler) ExportAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	format := FormatPDF
	if v := c.QueryParam("format"); v != "" {
		if format, err = ParseFormat(v); err != nil {
			return apperr.HTTPError(err)
		}
	}
	sel, err := parseSections(c.QueryParam("sections"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	f, err := h.svc.ExportOne(c.Request().Context(), id, format, sel, clinicianScope(c))
	return send(c, f, err)
}

// send writes the file as an attachment. A partial failure still sends the
// reports that rendered and names the rest in FailedHeader.
func send(c echo.Context, f *File, err error) error {
	var pf *apperr.PartialFailureError
	switch {
	case err == nil:
	case f != nil && errors.As(err, &pf):
		ids := make([]string, len(pf.Failed))
		for i, s := range pf.Failed {
			ids[i] = s.Step
		}
		c.Response().Header().Set(FailedHeader, strings.Join(ids, ","))
	default:
		return apperr.HTTPError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	return c.Blob(http.StatusOK, f.ContentType, f.Data)
}

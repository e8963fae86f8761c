package appointment

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/matcare/matcare/internal/platform/apperr"
	"github.com/matcare/matcare/internal/platform/auth"
	"github.com/matcare/matcare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.StaffRoles...))
	staff.GET("/appointments", h.List)
	staff.GET("/appointments/:id", h.Get)
	staff.POST("/appointments", h.Create)
	staff.PUT("/appointments/:id", h.Update)
	staff.PATCH("/appointments/:id/status", h.SetStatus)
	staff.PATCH("/appointments/:id/payment-status", h.SetPaymentStatus)

	admin := api.Group("", auth.RequireAdmin())
	admin.DELETE("/appointments/:id", h.Delete)
}

// ownClinician returns the clinician id a non-admin caller is limited to, or
// nil when the caller may see every appointment.
func ownClinician(c echo.Context) *uuid.UUID {
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

// load fetches the appointment named by :id, hiding other clinicians' rows
// from scoped callers.
func (h *Handler) load(c echo.Context) (*Appointment, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return nil, apperr.HTTPError(err)
	}
	if own := ownClinician(c); own != nil && *own != a.ClinicianID {
		return nil, echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return a, nil
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Status: c.QueryParam("status")}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("clinician_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid clinician_id")
		}
		f.ClinicianID = &id
	}
	if own := ownClinician(c); own != nil {
		f.ClinicianID = own
	}
	if v := c.QueryParam("from"); v != "" {
		from, err := ParseDate(v, h.svc.Location())
		if err != nil {
			return apperr.HTTPError(err)
		}
		f.From = &from
	}
	if v := c.QueryParam("to"); v != "" {
		to, err := ParseDate(v, h.svc.Location())
		if err != nil {
			return apperr.HTTPError(err)
		}
		end := to.AddDate(0, 0, 1)
		f.To = &end
	}

	items, total, err := h.svc.ListAppointments(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewPagedResponse(c, items, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateAppointment(c.Request().Context(), a.ID, patch)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetStatus(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.SetStatus(c.Request().Context(), a.ID, body.Status)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) SetPaymentStatus(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	var body struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.SetPaymentStatus(c.Request().Context(), a.ID, body.PaymentStatus)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

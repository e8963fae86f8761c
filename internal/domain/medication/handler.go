package medication

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
	read := api.Group("", auth.RequireRole(auth.StaffRoles...))
	write := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleMidwife))
	admin := api.Group("", auth.RequireAdmin())

	for path, kind := range map[string]Kind{"prescriptions": KindPrescription, "supplements": KindSupplement} {
		read.GET("/patients/:id/"+path, h.listByPatient(kind))
		read.GET("/"+path+"/:id", h.get(kind))
		write.POST("/"+path, h.create(kind))
		write.PUT("/"+path+"/:id", h.update(kind))
		admin.DELETE("/"+path+"/:id", h.delete(kind))
	}
}

func (h *Handler) create(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		var m Medication
		if err := c.Bind(&m); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		m.Kind = kind
		if err := h.svc.Create(c.Request().Context(), &m); err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(http.StatusCreated, m)
	}
}

func (h *Handler) get(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		m, err := h.svc.Get(c.Request().Context(), kind, id)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(http.StatusOK, m)
	}
}

func (h *Handler) update(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		var m Medication
		if err := c.Bind(&m); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		m.ID, m.Kind = id, kind
		if err := h.svc.Update(c.Request().Context(), &m); err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(http.StatusOK, m)
	}
}

func (h *Handler) delete(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		if err := h.svc.Delete(c.Request().Context(), kind, id); err != nil {
			return apperr.HTTPError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (h *Handler) listByPatient(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		patientID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
		}
		pg := pagination.FromContext(c)
		items, total, err := h.svc.ListByPatient(c.Request().Context(), kind, patientID, pg.Limit, pg.Offset)
		if err != nil {
			return apperr.HTTPError(err)
		}
		if items == nil {
			items = []*Medication{}
		}
		return c.JSON(http.StatusOK, pagination.NewPagedResponse(c, items, total, pg))
	}
}

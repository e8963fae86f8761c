package document

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/matcare/matcare/internal/export"
	"github.com/matcare/matcare/internal/platform/metrics"
)

type errorBody struct {
	Error string `json:"error"`
}

type Handler struct {
	renderer *Renderer
	log      zerolog.Logger
	metrics  *metrics.Collector
}

func NewHandler(r *Renderer, log zerolog.Logger, m *metrics.Collector) *Handler {
	return &Handler{renderer: r, log: log.With().Str("component", "document").Logger(), metrics: m}
}

// RegisterRoutes mounts the endpoint on g, normally the /api/export group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/appointment", h.RenderAppointment)
}

// RenderAppointment answers with application/pdf bytes, or {error} and a
// non-2xx status.
func (h *Handler) RenderAppointment(c echo.Context) error {
	var req export.DocumentRequest
	if err := c.Bind(&req); err != nil {
		h.metrics.DocumentRendered("rejected")
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if err := Check(req); err != nil {
		h.metrics.DocumentRendered("rejected")
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}

	data, err := h.renderer.Render(c.Request().Context(), req)
	if err != nil {
		h.metrics.DocumentRendered("failed")
		h.log.Error().Err(err).Str("appointment_id", req.Appointment.ID.String()).Msg("document render failed")
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrMissingAppointment) {
			status = http.StatusBadRequest
		}
		return c.JSON(status, errorBody{Error: err.Error()})
	}
	h.metrics.DocumentRendered("ok")
	return c.Blob(http.StatusOK, "application/pdf", data)
}

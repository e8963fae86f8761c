package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/matcare/matcare/internal/platform/auth"
	"github.com/matcare/matcare/internal/platform/db"
)

// MeasureDefinition is a named, read-only clinic query. Every measure
// takes the same two bind parameters: $1 = from (inclusive), $2 = to
// (exclusive), both as timestamps.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"-"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	From        time.Time                `json:"from"`
	To          time.Time                `json:"to"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "appointments-by-status",
		Name:        "Appointments by Status",
		Description: "Appointment counts grouped by status within the date range",
		SQL: `SELECT status, COUNT(*) AS total FROM appointment
			WHERE date >= $1 AND date < $2 GROUP BY status ORDER BY total DESC`,
	},
	{
		ID:          "payment-summary",
		Name:        "Payment Summary",
		Description: "Appointment counts grouped by payment status, canceled visits excluded",
		SQL: `SELECT payment_status, COUNT(*) AS total FROM appointment
			WHERE date >= $1 AND date < $2 AND status <> 'Canceled'
			GROUP BY payment_status ORDER BY total DESC`,
	},
	{
		ID:          "appointments-by-clinician",
		Name:        "Appointments by Clinician",
		Description: "Completed appointments per clinician",
		SQL: `SELECT c.id AS clinician_id, p.first_name || ' ' || p.last_name AS clinician, c.role, COUNT(a.id) AS completed
			FROM clinicians c
			JOIN person p ON p.id = c.person_id
			LEFT JOIN appointment a ON a.clinician_id = c.id AND a.status = 'Completed' AND a.date >= $1 AND a.date < $2
			GROUP BY c.id, p.first_name, p.last_name, c.role ORDER BY completed DESC`,
	},
	{
		ID:          "trimester-distribution",
		Name:        "Trimester Distribution",
		Description: "Appointments with a recorded gestational age, bucketed by trimester",
		SQL: `SELECT CASE
				WHEN gestational_age < 14 THEN 'first'
				WHEN gestational_age < 28 THEN 'second'
				ELSE 'third' END AS trimester,
			COUNT(*) AS total
			FROM appointment
			WHERE gestational_age IS NOT NULL AND date >= $1 AND date < $2
			GROUP BY 1 ORDER BY 1`,
	},
	{
		ID:          "active-prescriptions",
		Name:        "Active Prescriptions",
		Description: "Active prescriptions by medicine, prescribed within the date range",
		SQL: `SELECT name, COUNT(*) AS total FROM prescriptions
			WHERE status = 'Active' AND date >= $1::date AND date < $2::date
			GROUP BY name ORDER BY total DESC, name`,
	},
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	db  db.Querier
	loc *time.Location
	now func() time.Time
}

// NewHandler creates a reporting handler. Date range parameters are read as
// calendar days in loc.
func NewHandler(q db.Querier, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{db: q, loc: loc, now: time.Now}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole(auth.RoleDoctor, auth.RoleMidwife))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure runs a measure for ?from=YYYY-MM-DD&to=YYYY-MM-DD. Both
// ends are inclusive days; the defaults cover the last 30 days.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	from, to, err := h.dateRange(c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL, from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: h.now(),
		From:        from,
		To:          to,
		Results:     results,
	})
}

func (h *Handler) dateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	now := h.now().In(h.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	from := today.AddDate(0, 0, -30)
	to := today.AddDate(0, 0, 1)

	if fromStr != "" {
		d, err := time.ParseInLocation("2006-01-02", fromStr, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("from must be YYYY-MM-DD")
		}
		from = d
	}
	if toStr != "" {
		d, err := time.ParseInLocation("2006-01-02", toStr, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("to must be YYYY-MM-DD")
		}
		to = d.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from must not be after to")
	}
	return from, to, nil
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string, args ...any) ([]map[string]interface{}, error) {
	rows, err := h.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

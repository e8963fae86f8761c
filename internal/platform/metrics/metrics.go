// Package metrics holds the Prometheus collectors for the API. Collectors
// live on a dedicated registry so tests can create independent instances.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "matcare"

// Collector records HTTP and domain metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	duplicates      prometheus.Counter
	vitalsWrites    *prometheus.CounterVec
	exportFiles     *prometheus.CounterVec
	exportRows      prometheus.Histogram
	documentRenders *prometheus.CounterVec
	statusUpdates   *prometheus.CounterVec
}

func New() *Collector {
	m := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_duplicates_rejected_total",
			Help:      "Appointment writes rejected because the slot was already taken.",
		}),
		vitalsWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vitals_writes_total",
			Help:      "Vitals saves by outcome (ok, compensated, partial).",
		}, []string{"outcome"}),
		exportFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_files_total",
			Help:      "Export files produced by format and outcome.",
		}, []string{"format", "outcome"}),
		exportRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_appointments",
			Help:      "Appointments included per export after filtering.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		}),
		documentRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_renders_total",
			Help:      "Per-appointment PDF render requests by outcome.",
		}, []string{"outcome"}),
		statusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_updates_total",
			Help:      "Debounced status updates by field and outcome.",
		}, []string{"field", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.duplicates,
		m.vitalsWrites,
		m.exportFiles,
		m.exportRows,
		m.documentRenders,
		m.statusUpdates,
	)
	return m
}

// Registry exposes the underlying registry for additional collectors.
func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterPoolGauges exposes connection pool statistics.
func (m *Collector) RegisterPoolGauges(total, idle, acquired func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: "db_pool_total_conns", Help: "Open connections."}, total),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: "db_pool_idle_conns", Help: "Idle connections."}, idle),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: "db_pool_acquired_conns", Help: "Connections in use."}, acquired),
	)
}

func (m *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Collector) DuplicateRejected() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *Collector) VitalsWrite(outcome string) {
	if m == nil {
		return
	}
	m.vitalsWrites.WithLabelValues(outcome).Inc()
}

func (m *Collector) ExportProduced(format, outcome string, appointments int) {
	if m == nil {
		return
	}
	m.exportFiles.WithLabelValues(format, outcome).Inc()
	m.exportRows.Observe(float64(appointments))
}

func (m *Collector) DocumentRendered(outcome string) {
	if m == nil {
		return
	}
	m.documentRenders.WithLabelValues(outcome).Inc()
}

// StatusUpdate counts debounced status writes (committed, reverted, superseded).
func (m *Collector) StatusUpdate(field, outcome string) {
	if m == nil {
		return
	}
	m.statusUpdates.WithLabelValues(field, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Collector) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latency labelled by the route
// template (c.Path()) rather than the raw URL.
func (m *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RecordHTTPRequest(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}

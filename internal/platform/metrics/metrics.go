package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AgendaMetrics exposes counters for bookings and patient registrations and
// per-route HTTP metrics. A nil *AgendaMetrics is a no-op.
type AgendaMetrics struct {
	gatherer prometheus.Gatherer

	appointmentsCreated *prometheus.CounterVec
	appointmentsDeleted *prometheus.CounterVec
	bookingsRejected    *prometheus.CounterVec
	patientsCreated     *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpLatency         *prometheus.HistogramVec
}

func NewAgendaMetrics(reg *prometheus.Registry) *AgendaMetrics {
	m := &AgendaMetrics{
		appointmentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ambulatorio",
			Subsystem: "agenda",
			Name:      "appointments_created_total",
			Help:      "Appointments booked",
		}, []string{"ambulatorio", "tipo"}),
		appointmentsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ambulatorio",
			Subsystem: "agenda",
			Name:      "appointments_deleted_total",
			Help:      "Appointments cancelled",
		}, []string{"ambulatorio"}),
		bookingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ambulatorio",
			Subsystem: "agenda",
			Name:      "bookings_rejected_total",
			Help:      "Booking attempts refused by the backend",
		}, []string{"reason"}),
		patientsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ambulatorio",
			Subsystem: "patients",
			Name:      "created_total",
			Help:      "Patients registered",
		}, []string{"ambulatorio", "tipo"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ambulatorio",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ambulatorio",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(m.appointmentsCreated, m.appointmentsDeleted, m.bookingsRejected,
		m.patientsCreated, m.httpRequests, m.httpLatency)
	m.gatherer = reg
	return m
}

func (m *AgendaMetrics) ObserveAppointmentCreated(site, serviceType string) {
	if m == nil {
		return
	}
	m.appointmentsCreated.WithLabelValues(site, serviceType).Inc()
}

func (m *AgendaMetrics) ObserveAppointmentDeleted(site string) {
	if m == nil {
		return
	}
	m.appointmentsDeleted.WithLabelValues(site).Inc()
}

// ObserveBookingRejected counts a refused booking. reason is a short code
// such as "slot_full" or "validation".
func (m *AgendaMetrics) ObserveBookingRejected(reason string) {
	if m == nil {
		return
	}
	m.bookingsRejected.WithLabelValues(reason).Inc()
}

func (m *AgendaMetrics) ObservePatientCreated(site, patientType string) {
	if m == nil {
		return
	}
	m.patientsCreated.WithLabelValues(site, patientType).Inc()
}

// Middleware records request count and latency labelled by route template.
func (m *AgendaMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the Prometheus exposition of the registry.
func (m *AgendaMetrics) Handler() echo.HandlerFunc {
	var g prometheus.Gatherer = prometheus.NewRegistry()
	if m != nil {
		g = m.gatherer
	}
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

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

const namespace = "hms"

// Collector owns the service's Prometheus metrics. Each Collector has its own
// registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	assistantRequests       *prometheus.CounterVec
	assistantFragments      prometheus.Counter
	assistantStaleFragments prometheus.Counter
	assistantSessions       prometheus.Gauge
	dictations              *prometheus.CounterVec

	patientRegistrations *prometheus.CounterVec
	patientExports       *prometheus.CounterVec

	rateLimited *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		assistantRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_requests_total",
			Help:      "Assistant exchanges by outcome",
		}, []string{"outcome"}),
		assistantFragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_fragments_total",
			Help:      "Streamed assistant fragments applied to a transcript",
		}),
		assistantStaleFragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_stale_fragments_total",
			Help:      "Assistant events dropped because their session was superseded",
		}),
		assistantSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assistant_sessions_open",
			Help:      "Open assistant sessions",
		}),
		dictations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_dictations_total",
			Help:      "Dictation attempts by outcome",
		}, []string{"outcome"}),
		patientRegistrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patient_registrations_total",
			Help:      "Patient registrations by tenant and patient type",
		}, []string{"tenant", "type"}),
		patientExports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patient_exports_total",
			Help:      "Patient registry exports by tenant",
		}, []string{"tenant"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter",
		}, []string{"limiter"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequests,
		c.httpRequestDuration,
		c.assistantRequests,
		c.assistantFragments,
		c.assistantStaleFragments,
		c.assistantSessions,
		c.dictations,
		c.patientRegistrations,
		c.patientExports,
		c.rateLimited,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request counts and latency per matched route.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Assistant outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeStale     = "stale"
)

func (c *Collector) AssistantExchange(outcome string) {
	c.assistantRequests.WithLabelValues(outcome).Inc()
}

func (c *Collector) AssistantFragment() {
	c.assistantFragments.Inc()
}

func (c *Collector) AssistantStale() {
	c.assistantStaleFragments.Inc()
}

func (c *Collector) AssistantSessionOpened() {
	c.assistantSessions.Inc()
}

func (c *Collector) AssistantSessionClosed() {
	c.assistantSessions.Dec()
}

// Dictation outcomes are "ok", "unavailable", "failed".
func (c *Collector) Dictation(outcome string) {
	c.dictations.WithLabelValues(outcome).Inc()
}

func (c *Collector) PatientRegistered(tenantID, patientType string) {
	c.patientRegistrations.WithLabelValues(tenantID, patientType).Inc()
}

func (c *Collector) PatientExported(tenantID string) {
	c.patientExports.WithLabelValues(tenantID).Inc()
}

func (c *Collector) RateLimited(limiter string) {
	c.rateLimited.WithLabelValues(limiter).Inc()
}

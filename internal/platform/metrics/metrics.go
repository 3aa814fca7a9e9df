// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the billing domain.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	PaymentsRecorded  prometheus.Counter
	ClaimsTransitions *prometheus.CounterVec
	BalanceRecomputes prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path, and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		PaymentsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_payments_recorded_total",
			Help: "Total payments recorded against patient accounts.",
		}),
		ClaimsTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_claim_transitions_total",
			Help: "Claim status transitions by target status.",
		}, []string{"status"}),
		BalanceRecomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_balance_recomputes_total",
			Help: "Full balance recomputations from the ledger.",
		}),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.PaymentsRecorded,
		m.ClaimsTransitions,
		m.BalanceRecomputes,
	)

	return m
}

// Middleware records request counts and latency. The route template is used
// as the path label to keep cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			m.requestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() echo.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return echo.WrapHandler(h)
}

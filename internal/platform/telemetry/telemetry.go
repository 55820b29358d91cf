// Package telemetry exposes Prometheus metrics for the HTTP surface and for
// the case-note classifications it serves.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casenote/casenote/internal/domain/casenote"
)

const namespace = "casenote"

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	views        *prometheus.CounterVec
	involvements *prometheus.CounterVec
	buckets      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		views: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classified_views_total",
			Help:      "Case-note records classified, by surface and display status.",
		}, []string{"surface", "display_status"}),
		involvements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "involvements_total",
			Help:      "Involvement categories assigned, by surface.",
		}, []string{"surface", "involvement"}),
		buckets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "return_buckets_total",
			Help:      "Return buckets assigned, by surface.",
		}, []string{"surface", "bucket"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.views,
		m.involvements,
		m.buckets,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latency keyed by the matched route
// template, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// statusLabel keeps the display_status label to the fixed badge texts.
func statusLabel(l casenote.StatusLabel) string {
	if l.Known() {
		return l.Text
	}
	return "other"
}

// ObserveViews implements casenote.Recorder.
func (m *Metrics) ObserveViews(surface string, views []casenote.View) {
	for _, v := range views {
		m.views.WithLabelValues(surface, statusLabel(v.DisplayStatus)).Inc()
		m.involvements.WithLabelValues(surface, v.Involvement.Slug()).Inc()
		m.buckets.WithLabelValues(surface, string(v.ReturnBucket)).Inc()
	}
}

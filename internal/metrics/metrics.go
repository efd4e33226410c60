// Package metrics holds the Prometheus collectors for roster operations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roster"

// Metrics owns a private registry so tests and multiple servers never collide
// on the global one. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Operations   *prometheus.CounterVec
	OpDuration   *prometheus.HistogramVec
	RanksWritten *prometheus.CounterVec
	Imported     *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Service operations by name and result.",
		}, []string{"op", "result"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"op"}),
		RanksWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "ranks_written_total",
			Help:      "Member ranks rewritten, by the operation that rewrote them.",
		}, []string{"op"}),
		Imported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "csv",
			Name:      "rows_total",
			Help:      "CSV rows seen by import, by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
		}, []string{"route", "code"}),
	}
	m.Registry.MustRegister(
		m.Operations,
		m.OpDuration,
		m.RanksWritten,
		m.Imported,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Register adds an extra collector (for example a store's own stats).
func (m *Metrics) Register(c prometheus.Collector) error {
	if m == nil || c == nil {
		return nil
	}
	return m.Registry.Register(c)
}

// Observe records one finished operation.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Operations.WithLabelValues(op, result).Inc()
	m.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddRanks(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RanksWritten.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) AddImported(inserted, skipped int) {
	if m == nil {
		return
	}
	m.Imported.WithLabelValues("inserted").Add(float64(inserted))
	m.Imported.WithLabelValues("skipped").Add(float64(skipped))
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

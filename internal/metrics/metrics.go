package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tourbook"

// Metrics holds every collector the services and jobs report to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	reservations  *prometheus.CounterVec
	adjudications *prometheus.CounterVec
	redemptions   *prometheus.CounterVec
	holdsExpired  prometheus.Counter
	toursDone     prometheus.Counter
	sweepDuration prometheus.Histogram
	httpDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by outcome.",
		}, []string{"outcome"}),
		adjudications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjudications_total",
			Help:      "Payment decisions by decision.",
		}, []string{"decision"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_redemptions_total",
			Help:      "Ticket scans by outcome.",
		}, []string{"outcome"}),
		holdsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_expired_total",
			Help:      "Holds reclaimed by the expiry sweeper.",
		}),
		toursDone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tours_completed_total",
			Help:      "Tours flagged completed by the completion job.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hold_sweep_duration_seconds",
			Help:      "Duration of expiry sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reservations,
		m.adjudications,
		m.redemptions,
		m.holdsExpired,
		m.toursDone,
		m.sweepDuration,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Reservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Adjudication(decision string) {
	if m == nil {
		return
	}
	m.adjudications.WithLabelValues(decision).Inc()
}

func (m *Metrics) Redemption(outcome string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HoldsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.holdsExpired.Add(float64(n))
}

func (m *Metrics) ToursCompleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.toursDone.Add(float64(n))
}

func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

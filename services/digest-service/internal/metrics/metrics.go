// Package metrics exposes digest cycle counters to prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stoik/timeline/internal/models"
)

// Metrics owns a private registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	sent          prometheus.Counter
	skipped       prometheus.Counter
	sendFailures  prometheus.Counter
	fetchFailures *prometheus.CounterVec
	rejected      prometheus.Counter
	cycleDuration prometheus.Histogram
	lastStatus    *prometheus.GaugeVec
	lastFinished  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeline",
		Name:      "cycles_total",
		Help:      "Digest cycles by final status",
	}, []string{"status"})
	m.sent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "timeline",
		Name:      "digests_sent_total",
		Help:      "Digests handed to the mailer successfully",
	})
	m.skipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "timeline",
		Name:      "digests_skipped_total",
		Help:      "Subscribers with no activity in the window",
	})
	m.sendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "timeline",
		Name:      "send_failures_total",
		Help:      "Digests the mailer failed to deliver",
	})
	m.fetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeline",
		Name:      "fetch_failures_total",
		Help:      "GitHub fetch failures by endpoint and HTTP status (0 for network or parse errors)",
	}, []string{"endpoint", "status"})
	m.rejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "timeline",
		Name:      "events_rejected_total",
		Help:      "Raw events dropped by the normalizer",
	})
	m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "timeline",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of a digest cycle",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	m.lastStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "timeline",
		Name:      "last_cycle_status",
		Help:      "1 for the status of the most recent cycle, 0 otherwise",
	}, []string{"status"})
	m.lastFinished = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "timeline",
		Name:      "last_cycle_finished_timestamp_seconds",
		Help:      "Unix time the most recent cycle finished",
	})

	m.registry.MustRegister(
		m.cycles, m.sent, m.skipped, m.sendFailures, m.fetchFailures,
		m.rejected, m.cycleDuration, m.lastStatus, m.lastFinished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// FetchFailed records one failed endpoint fetch.
func (m *Metrics) FetchFailed(endpoint string, status int) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func (m *Metrics) EventsRejected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rejected.Add(float64(n))
}

// ObserveCycle records the totals of a finished cycle.
func (m *Metrics) ObserveCycle(r models.CycleResult) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(string(r.Status)).Inc()
	m.sent.Add(float64(r.Sent))
	m.skipped.Add(float64(r.Skipped))
	m.sendFailures.Add(float64(r.SendFailures))
	m.cycleDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	for _, s := range []models.CycleStatus{models.CycleStatusSuccess, models.CycleStatusPartial, models.CycleStatusError} {
		v := 0.0
		if s == r.Status {
			v = 1
		}
		m.lastStatus.WithLabelValues(string(s)).Set(v)
	}
	m.lastFinished.Set(float64(r.FinishedAt.Unix()))
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests and for embedding in a larger registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

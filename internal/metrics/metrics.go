// Package metrics exposes sync, platform and prediction counters on a
// dedicated Prometheus registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stock_analytics"

type Metrics struct {
	registry *prometheus.Registry

	syncRuns           *prometheus.CounterVec
	syncRecords        *prometheus.CounterVec
	syncPages          *prometheus.CounterVec
	syncDuration       *prometheus.HistogramVec
	platformRequests   *prometheus.CounterVec
	predictionRequests *prometheus.CounterVec
	predictionDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		syncRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_records_total",
			Help:      "Records handled by sync calls, by result.",
		}, []string{"kind", "result"}),
		syncPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_pages_total",
			Help:      "Platform pages fetched by sync calls.",
		}, []string{"kind"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time of sync calls.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		platformRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_requests_total",
			Help:      "HTTP requests sent to the commerce platform, by operation and status code.",
		}, []string{"op", "code"}),
		predictionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_requests_total",
			Help:      "Calls to the prediction service, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		predictionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Latency of prediction service calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.syncRuns, m.syncRecords, m.syncPages, m.syncDuration,
		m.platformRequests, m.predictionRequests, m.predictionDuration,
	)
	return m
}

// SyncObservation summarizes one finished sync call
type SyncObservation struct {
	Kind     string
	Outcome  string // success, failed, conflict
	Pages    int
	Upserted int
	Skipped  int
	Failed   int
	Duration time.Duration
}

func (m *Metrics) ObserveSync(o SyncObservation) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(o.Kind, o.Outcome).Inc()
	m.syncPages.WithLabelValues(o.Kind).Add(float64(o.Pages))
	m.syncRecords.WithLabelValues(o.Kind, "upserted").Add(float64(o.Upserted))
	m.syncRecords.WithLabelValues(o.Kind, "skipped").Add(float64(o.Skipped))
	m.syncRecords.WithLabelValues(o.Kind, "failed").Add(float64(o.Failed))
	if o.Duration > 0 {
		m.syncDuration.WithLabelValues(o.Kind).Observe(o.Duration.Seconds())
	}
}

// ObservePlatformRequest counts one platform HTTP exchange; code 0 means no response
func (m *Metrics) ObservePlatformRequest(op string, code int) {
	if m == nil {
		return
	}
	m.platformRequests.WithLabelValues(op, strconv.Itoa(code)).Inc()
}

func (m *Metrics) ObservePrediction(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.predictionRequests.WithLabelValues(endpoint, outcome).Inc()
	m.predictionDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

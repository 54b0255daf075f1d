package observability

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements Metrics on top of a prometheus registry. The
// standard metric names map to pre-registered collectors; unknown names are
// dropped rather than registered on the fly so the exposed series stay stable.
type PrometheusMetrics struct {
	counters   map[string]prometheus.Counter
	labeled    map[string]*prometheus.CounterVec
	histograms map[string]prometheus.Histogram
}

// NewPrometheusMetrics registers collectors for every standard metric name on
// reg. Passing nil registers on the default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PrometheusMetrics{
		counters:   make(map[string]prometheus.Counter),
		labeled:    make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]prometheus.Histogram),
	}

	counters := map[string]string{
		MetricJobsSubmitted:  "Jobs accepted by the worker pool",
		MetricJobsCompleted:  "Jobs that reached a successful terminal state",
		MetricJobsFailed:     "Jobs that reached a failed terminal state",
		MetricJobsTimeout:    "Jobs killed after exceeding their wall-clock budget",
		MetricJobsCanceled:   "Jobs canceled by the caller",
		MetricCacheHits:      "Result cache hits",
		MetricCacheMisses:    "Result cache misses",
		MetricCacheBypass:    "Requests that forced recomputation past the cache",
		MetricCacheEvictions: "Entries evicted from the result cache",
	}
	for name, help := range counters {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Name: promName(name) + "_total",
			Help: help,
		})
		reg.MustRegister(c)
		m.counters[name] = c
	}

	labeled := map[string]string{
		MetricEngineAttempts: "Recognition attempts per engine",
		MetricEngineFailures: "Failed recognition attempts per engine",
	}
	for name, help := range labeled {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: promName(name) + "_total",
			Help: help,
		}, []string{"engine"})
		reg.MustRegister(cv)
		m.labeled[name] = cv
	}

	histograms := map[string]string{
		MetricJobDuration:  "End-to-end job processing time in seconds",
		MetricPageDuration: "Per-page processing time in seconds",
	}
	for name, help := range histograms {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    promName(name) + "_seconds",
			Help:    help,
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 4, 5, 7.5, 10, 15, 20, 30, 60, 120},
		})
		reg.MustRegister(h)
		m.histograms[name] = h
	}
	return m
}

func (m *PrometheusMetrics) Count(name string, delta float64, fields ...Field) {
	if c, ok := m.counters[name]; ok {
		c.Add(delta)
		return
	}
	if cv, ok := m.labeled[name]; ok {
		cv.WithLabelValues(labelValue(fields, "engine")).Add(delta)
	}
}

func (m *PrometheusMetrics) Observe(name string, value float64, fields ...Field) {
	if h, ok := m.histograms[name]; ok {
		h.Observe(value)
	}
}

func labelValue(fields []Field, key string) string {
	for _, f := range fields {
		if f.Key() != key {
			continue
		}
		if s, ok := f.Value().(string); ok {
			return s
		}
	}
	return "unknown"
}

func promName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

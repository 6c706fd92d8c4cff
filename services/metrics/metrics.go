package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/ilmlab/core/progress"
)

const namespace = "ilmlab"

// Metrics exports ledger and HTTP counters on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	reconciled   *prometheus.CounterVec
	tasks        *prometheus.CounterVec
	achievements *prometheus.CounterVec
	persistFails *prometheus.CounterVec
	requests     *prometheus.HistogramVec
}

var _ progress.Metrics = (*Metrics)(nil)

// New registers every collector. withRuntime adds the Go and process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "reconciliations_total",
			Help:      "Records reconciled at sign-in, by outcome.",
		}, []string{"outcome"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "tasks_total",
			Help:      "Task completions, by status.",
		}, []string{"status"}),
		achievements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "achievements_unlocked_total",
			Help:      "Achievements unlocked, by id.",
		}, []string{"achievement"}),
		persistFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "persist_failures_total",
			Help:      "Failed document writes, by operation.",
		}, []string{"op"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latencies.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	m.registry.MustRegister(m.reconciled, m.tasks, m.achievements, m.persistFails, m.requests)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

func (m *Metrics) Reconciled(outcome string) { m.reconciled.WithLabelValues(outcome).Inc() }

func (m *Metrics) TaskCompleted(status progress.TaskStatus) {
	m.tasks.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) AchievementUnlocked(id string) { m.achievements.WithLabelValues(id).Inc() }
func (m *Metrics) PersistFailed(op string)       { m.persistFails.WithLabelValues(op).Inc() }

// ObserveRequest records one served request. route is the matched route pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, code int, took time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Observe(took.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

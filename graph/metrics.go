package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects scheduler metrics, all in the "lazygraph"
// namespace:
//
//   - inflight_tasks (gauge): executions currently holding a worker slot
//   - queue_depth (gauge): tasks waiting in the dispatch queue
//   - task_latency_ms (histogram, labels task_id, status): OnLoad duration
//   - tasks_total (counter, label status): finished executions by outcome
//   - restarts_total (counter): tasks reset by Restart
//   - cancellations_total (counter): in-flight executions abandoned
//   - reorders_total (counter): priority recomputations
//   - dropped_total (counter, label reason): queued tasks dropped at dispatch
//
// Expose them with promhttp:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// A nil *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	inflight   prometheus.Gauge
	queueDepth prometheus.Gauge

	latency *prometheus.HistogramVec

	tasks         *prometheus.CounterVec
	restarts      prometheus.Counter
	cancellations prometheus.Counter
	reorders      prometheus.Counter
	dropped       *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates the collectors and registers them with
// registry. A nil registry means prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lazygraph",
			Name:      "inflight_tasks",
			Help:      "Executions currently holding a worker slot",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lazygraph",
			Name:      "queue_depth",
			Help:      "Tasks waiting in the dispatch queue",
		}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lazygraph",
			Name:      "task_latency_ms",
			Help:      "OnLoad duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"task_id", "status"}),
		tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazygraph",
			Name:      "tasks_total",
			Help:      "Finished task executions by outcome",
		}, []string{"status"}),
		restarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lazygraph",
			Name:      "restarts_total",
			Help:      "Tasks reset to waiting by a restart",
		}),
		cancellations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lazygraph",
			Name:      "cancellations_total",
			Help:      "In-flight executions abandoned after a restart or close",
		}),
		reorders: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lazygraph",
			Name:      "reorders_total",
			Help:      "Priority recomputations of the dispatch queue",
		}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazygraph",
			Name:      "dropped_total",
			Help:      "Queued tasks dropped at dispatch",
		}, []string{"reason"}), // reason: not_ready, not_waiting
	}
}

func (pm *PrometheusMetrics) on() bool {
	if pm == nil {
		return false
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// SetInflight records the number of busy worker slots.
func (pm *PrometheusMetrics) SetInflight(n int) {
	if pm.on() {
		pm.inflight.Set(float64(n))
	}
}

// SetQueueDepth records the number of queued tasks.
func (pm *PrometheusMetrics) SetQueueDepth(n int) {
	if pm.on() {
		pm.queueDepth.Set(float64(n))
	}
}

// ObserveTask records a finished execution and its duration.
func (pm *PrometheusMetrics) ObserveTask(taskID string, status Status, d time.Duration) {
	if !pm.on() {
		return
	}
	pm.latency.WithLabelValues(taskID, status.String()).Observe(float64(d.Milliseconds()))
	pm.tasks.WithLabelValues(status.String()).Inc()
}

// AddRestarts counts n reset tasks.
func (pm *PrometheusMetrics) AddRestarts(n int) {
	if pm.on() {
		pm.restarts.Add(float64(n))
	}
}

// IncCancellations counts one abandoned execution.
func (pm *PrometheusMetrics) IncCancellations() {
	if pm.on() {
		pm.cancellations.Inc()
	}
}

// IncReorders counts one priority recomputation.
func (pm *PrometheusMetrics) IncReorders() {
	if pm.on() {
		pm.reorders.Inc()
	}
}

// IncDropped counts one task dropped at dispatch.
func (pm *PrometheusMetrics) IncDropped(reason string) {
	if pm.on() {
		pm.dropped.WithLabelValues(reason).Inc()
	}
}

// Disable stops recording until Enable is called.
func (pm *PrometheusMetrics) Disable() {
	if pm == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable resumes recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	if pm == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset zeroes the gauges. Counters and histograms are cumulative and are
// left alone.
func (pm *PrometheusMetrics) Reset() {
	if pm == nil {
		return
	}
	pm.inflight.Set(0)
	pm.queueDepth.Set(0)
}

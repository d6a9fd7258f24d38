// Package pipelinemetrics exposes Prometheus instrumentation for the
// compositor pipeline: tick duration, dropped frames, and Input Queue
// depth. This is ambient observability cmd/compositor reports tick
// duration and active input/output counts into (nothing calls
// IncDropped or SetQueueDepth), not the excluded HTTP control surface — nothing here
// serves a scrape endpoint; a caller who owns one wires Registry()'s
// contents into its own promhttp handler.
package pipelinemetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bialy-nvr/compositor/pkg/media"
)

// Metrics holds every gauge/counter/histogram this pipeline reports,
// registered against its own isolated prometheus.Registry rather than
// the global DefaultRegisterer — grounded on the pack's own Init(reg)
// pattern for tests that need a fresh registry per instance instead of
// colliding on package-level promauto globals.
type Metrics struct {
	registry *prometheus.Registry

	tickDuration  prometheus.Histogram
	droppedFrames *prometheus.CounterVec
	queueDepth    *prometheus.GaugeVec
	activeInputs  prometheus.Gauge
	activeOutputs prometheus.Gauge
}

// New builds a Metrics instance with its own registry and registers
// every collector against it.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compositor_tick_duration_seconds",
			Help:    "Wall-clock time to render and mix one tick.",
			Buckets: []float64{.001, .002, .005, .01, .02, .05, .1, .2, .5, 1},
		}),
		droppedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compositor_dropped_frames_total",
			Help: "Frames/sample batches dropped by the Input Queue, by input and kind.",
		}, []string{"input", "kind"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "compositor_queue_depth",
			Help: "Current Input Queue channel depth, by input and kind.",
		}, []string{"input", "kind"}),
		activeInputs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compositor_active_inputs",
			Help: "Number of currently registered inputs.",
		}),
		activeOutputs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compositor_active_outputs",
			Help: "Number of currently registered outputs.",
		}),
	}

	m.registry.MustRegister(
		m.tickDuration,
		m.droppedFrames,
		m.queueDepth,
		m.activeInputs,
		m.activeOutputs,
	)
	return m
}

// Registry returns the isolated registry every collector above is
// registered against, for a caller to gather or expose.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveTick records how long one orchestrator tick took.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

// IncDropped records one dropped frame or sample batch for input of
// the given kind ("video" or "audio").
func (m *Metrics) IncDropped(input media.InputId, kind string) {
	m.droppedFrames.WithLabelValues(string(input), kind).Inc()
}

// SetQueueDepth reports the current channel depth for input's kind
// stream.
func (m *Metrics) SetQueueDepth(input media.InputId, kind string, depth int) {
	m.queueDepth.WithLabelValues(string(input), kind).Set(float64(depth))
}

// SetActiveInputs reports the current registered-input count.
func (m *Metrics) SetActiveInputs(n int) { m.activeInputs.Set(float64(n)) }

// SetActiveOutputs reports the current registered-output count.
func (m *Metrics) SetActiveOutputs(n int) { m.activeOutputs.Set(float64(n)) }

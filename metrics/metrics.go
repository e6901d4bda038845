package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wippyai/motor-rt/klog"
	"github.com/wippyai/motor-rt/posix"
	"github.com/wippyai/motor-rt/rt/alloc"
	"github.com/wippyai/motor-rt/rt/thread"
)

const namespace = "motor"

// Metrics holds the runtime's Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	// Descriptor table
	DescriptorEvents *prometheus.CounterVec
	DescriptorsOpen  prometheus.Gauge
	CloseErrors      prometheus.Counter
}

// New creates a metrics set on its own registry, including the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		factory:  factory,

		DescriptorEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "descriptor_events_total",
				Help:      "Descriptor table lifecycle events",
			},
			[]string{"type"},
		),
		DescriptorsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "descriptors_open",
				Help:      "Occupied descriptor handles",
			},
		),
		CloseErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "descriptor_close_errors_total",
				Help:      "Objects whose Close failed on last release",
			},
		),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnDescriptorEvent implements posix.Observer.
func (m *Metrics) OnDescriptorEvent(e posix.Event) {
	m.DescriptorEvents.WithLabelValues(e.Type.String()).Inc()
	switch e.Type {
	case posix.EventAllocated, posix.EventDuplicated:
		m.DescriptorsOpen.Inc()
	case posix.EventReleased:
		m.DescriptorsOpen.Dec()
	case posix.EventClosed:
		if e.Err != nil {
			m.CloseErrors.Inc()
		}
	}
}

// WatchRelay exports the relay's counters.
func (m *Metrics) WatchRelay(r *klog.Relay) {
	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "klog_forwarded_total",
		Help:      "User log messages forwarded to the kernel console",
	}, func() float64 { return float64(r.Stats().Forwarded) })
	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "klog_dropped_total",
		Help:      "User log messages dropped by the rate limit",
	}, func() float64 { return float64(r.Stats().Dropped) })
	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "klog_repaired_total",
		Help:      "User log messages with invalid UTF-8 replaced",
	}, func() float64 { return float64(r.Stats().Repaired) })
}

// WatchHeap exports allocator usage.
func (m *Metrics) WatchHeap(h *alloc.Heap) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "heap_live_bytes",
		Help:      "Bytes currently allocated through the memory entries",
	}, func() float64 { return float64(h.Stats().LiveBytes) })
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "heap_live_blocks",
		Help:      "Blocks currently allocated through the memory entries",
	}, func() float64 { return float64(h.Stats().LiveBlocks) })
}

// WatchThreads exports the number of unjoined threads.
func (m *Metrics) WatchThreads(r *thread.Registry) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "threads_live",
		Help:      "Spawned threads not yet joined",
	}, func() float64 { return float64(r.Live()) })
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

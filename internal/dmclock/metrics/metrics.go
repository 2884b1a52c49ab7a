// Package metrics exposes dmClock scheduler internals as Prometheus
// instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsPrefix names every series this package registers.
const MetricsPrefix = "dmclock_"

// Metrics wraps the Prometheus collectors the scheduler reports: dispatch
// counts by phase, per-client queue depth, and cleaner sweep counts.
type Metrics struct {
	dispatchTotal  *prometheus.CounterVec
	queueDepth     *prometheus.GaugeVec
	clientsTracked prometheus.Gauge
	cleanerErased  prometheus.Counter
	cleanerIdled   prometheus.Counter
	cleanerSweeps  prometheus.Counter
}

// New constructs and registers the collectors against the default
// registry.
func New() *Metrics {
	return &Metrics{
		dispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "dispatch_total",
			Help: "Number of requests dispatched, grouped by phase (reservation, priority).",
		}, []string{"phase"}),
		queueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricsPrefix + "queue_depth",
			Help: "Number of requests currently queued for a client.",
		}, []string{"client"}),
		clientsTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: MetricsPrefix + "clients_tracked",
			Help: "Number of clients currently tracked by the scheduler, including idle ones not yet erased.",
		}),
		cleanerErased: promauto.NewCounter(prometheus.CounterOpts{
			Name: MetricsPrefix + "cleaner_erased_total",
			Help: "Number of clients erased by the periodic cleaner sweep.",
		}),
		cleanerIdled: promauto.NewCounter(prometheus.CounterOpts{
			Name: MetricsPrefix + "cleaner_idled_total",
			Help: "Number of clients marked idle by the periodic cleaner sweep.",
		}),
		cleanerSweeps: promauto.NewCounter(prometheus.CounterOpts{
			Name: MetricsPrefix + "cleaner_sweeps_total",
			Help: "Number of cleaner sweep ticks run.",
		}),
	}
}

// ObserveDispatch increments the dispatch counter for a phase, given its
// already-resolved label (callers pass dmclock.Phase.String()).
func (m *Metrics) ObserveDispatch(phaseLabel string) {
	m.dispatchTotal.WithLabelValues(phaseLabel).Inc()
}

// SetQueueDepth records the current queue length for client.
func (m *Metrics) SetQueueDepth(client string, depth int) {
	m.queueDepth.WithLabelValues(client).Set(float64(depth))
}

// DeleteQueueDepth removes a client's queue depth series, called once it
// is erased so stale series do not accumulate.
func (m *Metrics) DeleteQueueDepth(client string) {
	m.queueDepth.DeleteLabelValues(client)
}

// SetClientsTracked records the current number of tracked clients.
func (m *Metrics) SetClientsTracked(n int) {
	m.clientsTracked.Set(float64(n))
}

// ObserveCleanerSweep records the outcome of one cleaner tick.
func (m *Metrics) ObserveCleanerSweep(erased, idled int) {
	m.cleanerSweeps.Inc()
	if erased > 0 {
		m.cleanerErased.Add(float64(erased))
	}
	if idled > 0 {
		m.cleanerIdled.Add(float64(idled))
	}
}

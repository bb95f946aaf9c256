package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultApplied = "applied"
	ResultIgnored = "ignored"
	ResultEcho    = "echo"
)

// Operation labels.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpRemove = "remove"
	OpKeys   = "keys"
)

// SyncMetrics instruments the sync engine. A nil *SyncMetrics records nothing.
type SyncMetrics struct {
	writebacks        *prometheus.CounterVec
	backendOps        *prometheus.CounterVec
	externalChanges   *prometheus.CounterVec
	loadKeys          prometheus.Counter
	writebackDuration prometheus.Histogram
}

// NewSyncMetrics creates the engine metrics and registers them with reg.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		writebacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "writebacks_total",
			Help:      "Writebacks run, by whether they changed anything.",
		}, []string{"outcome"}),
		backendOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "backend_ops_total",
			Help:      "Backend calls made by the sync engine.",
		}, []string{"op", "result"}),
		externalChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "external_changes_total",
			Help:      "Backend change notifications received, by outcome.",
		}, []string{"result"}),
		loadKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "load_keys_total",
			Help:      "Keys loaded from backends into mirrors.",
		}),
		writebackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "writeback_duration_seconds",
			Help:      "Duration of writebacks that performed I/O.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.writebacks, m.backendOps, m.externalChanges, m.loadKeys, m.writebackDuration)
	}
	return m
}

// Writeback records one writeback; changed is false for no-op passes.
func (m *SyncMetrics) Writeback(changed bool, d time.Duration) {
	if m == nil {
		return
	}
	if !changed {
		m.writebacks.WithLabelValues("noop").Inc()
		return
	}
	m.writebacks.WithLabelValues("changed").Inc()
	m.writebackDuration.Observe(d.Seconds())
}

// BackendOp records one backend call.
func (m *SyncMetrics) BackendOp(op string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.backendOps.WithLabelValues(op, result).Inc()
}

// ExternalChange records how a change notification was handled.
func (m *SyncMetrics) ExternalChange(result string) {
	if m == nil {
		return
	}
	m.externalChanges.WithLabelValues(result).Inc()
}

// LoadedKeys records keys loaded into a mirror.
func (m *SyncMetrics) LoadedKeys(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.loadKeys.Add(float64(n))
}

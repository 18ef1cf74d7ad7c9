package side

import (
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/go-side/internal/interfaces"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks operational statistics for a Runtime: emit throughput,
// registration churn, and state-dump drain activity.
type Metrics struct {
	EmitCount          atomic.Uint64 // total Emit/EmitVariadic calls
	EmitMatchedCount   atomic.Uint64 // total matched-callback invocations across all emits
	RegisterCount      atomic.Uint64
	RegisterErrors     atomic.Uint64
	UnregisterCount    atomic.Uint64
	UnregisterErrors   atomic.Uint64
	StatedumpRequests  atomic.Uint64
	StatedumpDrains    atomic.Uint64
	StatedumpDrainedN  atomic.Uint64 // total entries drained across all run_pending calls

	TotalEmitLatencyNs atomic.Uint64
	EmitLatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics returns a metrics instance stamped with the current time.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordEmit records one Emit/EmitVariadic call's matched-callback count
// and latency.
func (m *Metrics) RecordEmit(matched int, latencyNs uint64) {
	m.EmitCount.Add(1)
	m.EmitMatchedCount.Add(uint64(matched))
	m.TotalEmitLatencyNs.Add(latencyNs)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.EmitLatencyBuckets[i].Add(1)
		}
	}
}

// RecordRegister records one register() call's outcome.
func (m *Metrics) RecordRegister(ok bool) {
	m.RegisterCount.Add(1)
	if !ok {
		m.RegisterErrors.Add(1)
	}
}

// RecordUnregister records one unregister() call's outcome.
func (m *Metrics) RecordUnregister(ok bool) {
	m.UnregisterCount.Add(1)
	if !ok {
		m.UnregisterErrors.Add(1)
	}
}

// RecordStatedumpRequest records one tracer_statedump_request call.
func (m *Metrics) RecordStatedumpRequest() {
	m.StatedumpRequests.Add(1)
}

// RecordStatedumpDrain records one run_pending drain.
func (m *Metrics) RecordStatedumpDrain(count int) {
	m.StatedumpDrains.Add(1)
	m.StatedumpDrainedN.Add(uint64(count))
}

// Stop stamps the metrics instance as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read
// without further synchronization.
type MetricsSnapshot struct {
	EmitCount         uint64
	EmitMatchedCount  uint64
	RegisterCount     uint64
	RegisterErrors    uint64
	UnregisterCount   uint64
	UnregisterErrors  uint64
	StatedumpRequests uint64
	StatedumpDrains   uint64
	StatedumpDrainedN uint64

	AvgEmitLatencyNs uint64
	UptimeNs         uint64
	EmitHistogram    [numLatencyBuckets]uint64
}

// Snapshot takes a point-in-time copy of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		EmitCount:         m.EmitCount.Load(),
		EmitMatchedCount:  m.EmitMatchedCount.Load(),
		RegisterCount:     m.RegisterCount.Load(),
		RegisterErrors:    m.RegisterErrors.Load(),
		UnregisterCount:   m.UnregisterCount.Load(),
		UnregisterErrors:  m.UnregisterErrors.Load(),
		StatedumpRequests: m.StatedumpRequests.Load(),
		StatedumpDrains:   m.StatedumpDrains.Load(),
		StatedumpDrainedN: m.StatedumpDrainedN.Load(),
	}

	if snap.EmitCount > 0 {
		snap.AvgEmitLatencyNs = m.TotalEmitLatencyNs.Load() / snap.EmitCount
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.EmitHistogram[i] = m.EmitLatencyBuckets[i].Load()
	}
	return snap
}

// Reset zeroes every counter, for test isolation.
func (m *Metrics) Reset() {
	m.EmitCount.Store(0)
	m.EmitMatchedCount.Store(0)
	m.RegisterCount.Store(0)
	m.RegisterErrors.Store(0)
	m.UnregisterCount.Store(0)
	m.UnregisterErrors.Store(0)
	m.StatedumpRequests.Store(0)
	m.StatedumpDrains.Store(0)
	m.StatedumpDrainedN.Store(0)
	m.TotalEmitLatencyNs.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.EmitLatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer is the public re-export of the internal Observer contract:
// a pluggable sink for every operation the core performs.
type Observer = interfaces.Observer

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveEmit(string, int, uint64)          {}
func (NoOpObserver) ObserveRegister(string, bool)             {}
func (NoOpObserver) ObserveUnregister(string, bool)           {}
func (NoOpObserver) ObserveStatedumpRequest(uint64)           {}
func (NoOpObserver) ObserveStatedumpDrain(string, int, uint64) {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver returns an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveEmit(eventName string, matched int, latencyNs uint64) {
	o.metrics.RecordEmit(matched, latencyNs)
}

func (o *MetricsObserver) ObserveRegister(eventName string, ok bool) {
	o.metrics.RecordRegister(ok)
}

func (o *MetricsObserver) ObserveUnregister(eventName string, ok bool) {
	o.metrics.RecordUnregister(ok)
}

func (o *MetricsObserver) ObserveStatedumpRequest(key uint64) {
	o.metrics.RecordStatedumpRequest()
}

func (o *MetricsObserver) ObserveStatedumpDrain(handleName string, count int, latencyNs uint64) {
	o.metrics.RecordStatedumpDrain(count)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = NoOpObserver{}

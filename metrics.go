package allocsnap

import (
	"sync/atomic"
	"time"
)

// Metrics tracks counters for one conversion run: how many events were
// classified, how many were orphan frees, how many trajectory points and
// database rows were produced, and how long the run took.
type Metrics struct {
	EventsClassified   atomic.Uint64
	AllocCount         atomic.Uint64
	FreeCount          atomic.Uint64
	OrphanFreeCount    atomic.Uint64
	TrajectoriesEmitted atomic.Uint64
	TrajectoryPoints   atomic.Uint64
	RowsWritten        atomic.Uint64
	BytesWrittenJSON   atomic.Uint64

	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64 // UnixNano
}

// NewMetrics creates a new, running Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// Stop marks the conversion as finished, fixing Elapsed.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time, copyable view of Metrics.
type MetricsSnapshot struct {
	EventsClassified    uint64
	AllocCount          uint64
	FreeCount           uint64
	OrphanFreeCount     uint64
	TrajectoriesEmitted uint64
	TrajectoryPoints    uint64
	RowsWritten         uint64
	BytesWrittenJSON    uint64
	Elapsed             time.Duration
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		EventsClassified:    m.EventsClassified.Load(),
		AllocCount:          m.AllocCount.Load(),
		FreeCount:           m.FreeCount.Load(),
		OrphanFreeCount:     m.OrphanFreeCount.Load(),
		TrajectoriesEmitted: m.TrajectoriesEmitted.Load(),
		TrajectoryPoints:    m.TrajectoryPoints.Load(),
		RowsWritten:         m.RowsWritten.Load(),
		BytesWrittenJSON:    m.BytesWrittenJSON.Load(),
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.Elapsed = time.Duration(stop - start)
	} else {
		snap.Elapsed = time.Duration(time.Now().UnixNano() - start)
	}
	return snap
}

// Observer allows pluggable progress reporting during conversion.
// Observation is advisory: a nil or no-op Observer must not change the
// correctness of the pipeline.
type Observer interface {
	// ObserveClassified is called once after classification with the
	// number of elements and orphan frees found.
	ObserveClassified(elements, orphanFrees int)

	// ObserveBatch is called after each database batch commit with the
	// number of rows written so far.
	ObserveBatch(rowsWrittenSoFar int)

	// ObserveDone is called once the conversion has finished.
	ObserveDone(snapshot MetricsSnapshot)
}

// NoOpObserver is a no-op implementation of Observer, the default when the
// caller supplies none.
type NoOpObserver struct{}

func (NoOpObserver) ObserveClassified(int, int)       {}
func (NoOpObserver) ObserveBatch(int)                 {}
func (NoOpObserver) ObserveDone(MetricsSnapshot)      {}

// MetricsObserver implements Observer by recording into a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveClassified(elements, orphanFrees int) {
	o.metrics.EventsClassified.Add(uint64(elements))
	o.metrics.OrphanFreeCount.Add(uint64(orphanFrees))
}

func (o *MetricsObserver) ObserveBatch(rowsWrittenSoFar int) {
	o.metrics.RowsWritten.Store(uint64(rowsWrittenSoFar))
}

func (o *MetricsObserver) ObserveDone(snapshot MetricsSnapshot) {
	o.metrics.Stop()
}

var (
	_ Observer = (*NoOpObserver)(nil)
	_ Observer = (*MetricsObserver)(nil)
)

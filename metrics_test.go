package allocsnap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotInitialState(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()

	require.Zero(t, snap.EventsClassified)
	require.Zero(t, snap.RowsWritten)
	require.Zero(t, snap.TrajectoriesEmitted)
}

func TestMetricsCountersAccumulate(t *testing.T) {
	m := NewMetrics()

	m.EventsClassified.Add(100)
	m.OrphanFreeCount.Add(3)
	m.TrajectoriesEmitted.Add(40)
	m.TrajectoryPoints.Add(160)
	m.RowsWritten.Store(40)
	m.BytesWrittenJSON.Store(2048)

	snap := m.Snapshot()
	require.EqualValues(t, 100, snap.EventsClassified)
	require.EqualValues(t, 3, snap.OrphanFreeCount)
	require.EqualValues(t, 40, snap.TrajectoriesEmitted)
	require.EqualValues(t, 160, snap.TrajectoryPoints)
	require.EqualValues(t, 40, snap.RowsWritten)
	require.EqualValues(t, 2048, snap.BytesWrittenJSON)
}

func TestMetricsElapsedGrowsUntilStop(t *testing.T) {
	m := NewMetrics()
	time.Sleep(5 * time.Millisecond)
	snap := m.Snapshot()
	require.GreaterOrEqual(t, snap.Elapsed, 5*time.Millisecond)

	m.Stop()
	frozen := m.Snapshot().Elapsed
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, frozen, m.Snapshot().Elapsed)
}

func TestNoOpObserverDoesNotPanic(t *testing.T) {
	var o Observer = NoOpObserver{}
	o.ObserveClassified(10, 2)
	o.ObserveBatch(5)
	o.ObserveDone(MetricsSnapshot{})
}

func TestMetricsObserverForwardsToMetrics(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)

	o.ObserveClassified(12, 4)
	o.ObserveBatch(12)

	snap := m.Snapshot()
	require.EqualValues(t, 12, snap.EventsClassified)
	require.EqualValues(t, 4, snap.OrphanFreeCount)
	require.EqualValues(t, 12, snap.RowsWritten)
}

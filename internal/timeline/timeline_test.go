package timeline

import (
	"testing"

	"github.com/allocsnap/allocsnap/internal/classify"
	"github.com/allocsnap/allocsnap/internal/model"
)

func replay(t *testing.T, events []model.Event) Result {
	t.Helper()
	c := classify.Classify(events)
	return Run(c.Elements, c.Actions, c.InitiallyAllocated)
}

// TestSingleAllocNoFree covers scenario S1. The mandatory advance(1) after
// every new allocation runs even with no later free, so the still-live
// trajectory is finalized at timestep 1, not 0.
func TestSingleAllocNoFree(t *testing.T) {
	result := replay(t, []model.Event{
		{Action: "alloc", Addr: 1, Size: 10},
	})

	if len(result.Trajectories) != 1 {
		t.Fatalf("trajectories = %d, want 1", len(result.Trajectories))
	}
	traj := result.Trajectories[0]
	assertIntSlice(t, "timesteps", traj.Timesteps, []int{0, 1})
	assertInt64Slice(t, "offsets", traj.Offsets, []int64{0, 0})
	if traj.Size != 10 || traj.Color != 0 || traj.Elem != 0 {
		t.Errorf("traj = %+v, want size=10 color=0 elem=0", traj)
	}
}

// TestAllocThenMatchedFree covers scenario S2.
func TestAllocThenMatchedFree(t *testing.T) {
	result := replay(t, []model.Event{
		{Action: "alloc", Addr: 1, Size: 10},
		{Action: "free", Addr: 1},
	})

	if len(result.Trajectories) != 1 {
		t.Fatalf("trajectories = %d, want 1", len(result.Trajectories))
	}
	traj := result.Trajectories[0]
	assertIntSlice(t, "timesteps", traj.Timesteps, []int{0, 1})
	assertInt64Slice(t, "offsets", traj.Offsets, []int64{0, 0})
}

// TestOrphanFree covers scenario S3: a free with no prior live allocation
// becomes an initially-allocated placeholder, closed during action replay
// without ever advancing the clock for its own birth.
func TestOrphanFree(t *testing.T) {
	result := replay(t, []model.Event{
		{Action: "free", Addr: 7, Size: 5},
	})

	if len(result.Trajectories) != 1 {
		t.Fatalf("trajectories = %d, want 1", len(result.Trajectories))
	}
	traj := result.Trajectories[0]
	assertIntSlice(t, "timesteps", traj.Timesteps, []int{0, 0})
	assertInt64Slice(t, "offsets", traj.Offsets, []int64{0, 0})
	if traj.Size != 5 {
		t.Errorf("Size = %d, want 5", traj.Size)
	}
}

// TestStackShiftOnFreeOfBottomBlock covers scenario S4: freeing the bottom
// block of a two-block stack shifts the block above it down by the freed
// size over three ticks.
func TestStackShiftOnFreeOfBottomBlock(t *testing.T) {
	result := replay(t, []model.Event{
		{Action: "alloc", Addr: 1, Size: 10},
		{Action: "alloc", Addr: 2, Size: 20},
		{Action: "free", Addr: 1},
	})

	if len(result.Trajectories) != 2 {
		t.Fatalf("trajectories = %d, want 2", len(result.Trajectories))
	}
	bottom, top := result.Trajectories[0], result.Trajectories[1]

	assertIntSlice(t, "bottom timesteps", bottom.Timesteps, []int{0, 2})
	assertInt64Slice(t, "bottom offsets", bottom.Offsets, []int64{0, 0})

	assertIntSlice(t, "top timesteps", top.Timesteps, []int{1, 2, 5, 6})
	assertInt64Slice(t, "top offsets", top.Offsets, []int64{10, 10, 0, 0})
}

func TestInvariantsHoldAcrossScenarios(t *testing.T) {
	cases := [][]model.Event{
		{{Action: "alloc", Addr: 1, Size: 10}},
		{{Action: "alloc", Addr: 1, Size: 10}, {Action: "free", Addr: 1}},
		{{Action: "free", Addr: 7, Size: 5}},
		{
			{Action: "alloc", Addr: 1, Size: 10},
			{Action: "alloc", Addr: 2, Size: 20},
			{Action: "free", Addr: 1},
		},
		{
			{Action: "alloc", Addr: 1, Size: 10},
			{Action: "alloc", Addr: 2, Size: 20},
			{Action: "alloc", Addr: 3, Size: 30},
			{Action: "free", Addr: 2},
			{Action: "free", Addr: 1},
			{Action: "free", Addr: 3},
		},
	}

	for i, events := range cases {
		result := replay(t, events)
		for _, traj := range result.Trajectories {
			if len(traj.Timesteps) != len(traj.Offsets) {
				t.Errorf("case %d: len(timesteps)=%d != len(offsets)=%d", i, len(traj.Timesteps), len(traj.Offsets))
			}
			for j := 1; j < len(traj.Timesteps); j++ {
				if traj.Timesteps[j] < traj.Timesteps[j-1] {
					t.Errorf("case %d: timesteps not non-decreasing: %v", i, traj.Timesteps)
				}
			}
		}
	}
}

func TestMaxSizeWithNoOrphans(t *testing.T) {
	result := replay(t, []model.Event{
		{Action: "alloc", Addr: 1, Size: 10},
		{Action: "alloc", Addr: 2, Size: 20},
		{Action: "free", Addr: 1},
		{Action: "alloc", Addr: 3, Size: 5},
	})

	// Running max of total_mem observed: 10, then 30, then 20, then 25.
	if result.MaxSize != 30 {
		t.Errorf("MaxSize = %d, want 30", result.MaxSize)
	}
}

func TestDeterministicAcrossRuns(t *testing.T) {
	events := []model.Event{
		{Action: "alloc", Addr: 1, Size: 10},
		{Action: "alloc", Addr: 2, Size: 20},
		{Action: "free", Addr: 1},
		{Action: "free", Addr: 99},
	}

	a := replay(t, events)
	b := replay(t, events)

	if len(a.Trajectories) != len(b.Trajectories) || a.MaxSize != b.MaxSize {
		t.Fatalf("non-deterministic replay: %+v vs %+v", a, b)
	}
	for i := range a.Trajectories {
		assertIntSlice(t, "timesteps", a.Trajectories[i].Timesteps, b.Trajectories[i].Timesteps)
		assertInt64Slice(t, "offsets", a.Trajectories[i].Offsets, b.Trajectories[i].Offsets)
	}
}

func assertIntSlice(t *testing.T, label string, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s = %v, want %v", label, got, want)
		}
	}
}

func assertInt64Slice(t *testing.T, label string, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s = %v, want %v", label, got, want)
		}
	}
}

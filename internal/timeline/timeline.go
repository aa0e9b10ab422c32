// Package timeline replays classified allocator events to reconstruct a
// packed-memory layout over synthetic logical time: one polyline per
// allocation plus an aggregate summary track.
//
// The live set is kept as parallel index slices rather than a map, per the
// arena-and-index discipline described for this pipeline: element and
// trajectory identity is always a position in a contiguous slice, and the
// free-matching scan walks that slice from the tail, never a map.
package timeline

import (
	"github.com/allocsnap/allocsnap/internal/constants"
	"github.com/allocsnap/allocsnap/internal/logging"
	"github.com/allocsnap/allocsnap/internal/model"
)

// Result is the simulator's output contract: the regular trajectories in
// creation order (summary excluded) plus the running maximum of combined
// live and summarized memory observed during replay.
type Result struct {
	Trajectories []*model.Trajectory
	MaxSize      int64
}

// simulator holds all mutable replay state for one run. It is not
// reentrant and not safe for concurrent use; a fresh simulator is built per
// conversion.
type simulator struct {
	elements []model.Element

	// data holds every trajectory ever created, in creation order, with
	// the summary track appended last at the end of Run.
	data []*model.Trajectory

	// live set: parallel slices of element index and its trajectory,
	// ordered by birth (oldest first). This is the "packed memory axis"
	// ordering the offsets are computed against.
	liveElem []int
	liveTraj []*model.Trajectory

	timestep           int
	totalMem           int64
	totalSummarizedMem int64
	maxSize            int64

	summary *model.Trajectory
}

// Run replays elements/actions/initiallyAllocated and returns the resulting
// trajectories (summary excluded) and the running maximum of total_mem +
// total_summarized_mem observed over the replay.
func Run(elements []model.Element, actions []int, initiallyAllocated []int) Result {
	logger := logging.Default().Component("timeline")

	s := &simulator{
		elements: elements,
		summary: &model.Trajectory{
			Elem:        model.SummaryElem,
			Offsets:     []int64{0},
			SummarySize: nil,
			Color:       0,
		},
	}

	s.processInitialAllocations(initiallyAllocated)
	s.processActions(actions)
	s.finalize()

	s.data = append(s.data, s.summary)

	logger.Debug("replayed actions",
		"actions", len(actions),
		"trajectories", len(s.data)-1,
		"max_size", s.maxSize)

	// Output contract: strip the trailing summary entry before returning to
	// the writer; only the simulator sees the full data list.
	return Result{
		Trajectories: s.data[:len(s.data)-1],
		MaxSize:      s.maxSize,
	}
}

// advance records one summary sample at the current state, then advances
// the logical clock by n. No advance happens during the initial-allocations
// phase. Every alloc or free advances the clock by 1 after its state change;
// a free that shifts blocks above it first advances it by a further 3.
func (s *simulator) advance(n int) {
	s.summary.Timesteps = append(s.summary.Timesteps, s.timestep)
	s.summary.Offsets = append(s.summary.Offsets, s.totalMem)
	s.summary.SummarySize = append(s.summary.SummarySize, s.totalSummarizedMem)
	s.timestep += n
}

// processInitialAllocations seeds the live set with orphan-free
// placeholders, processed in reverse insertion order, with no clock
// advance: all of them become live "at" timestep 0.
func (s *simulator) processInitialAllocations(initiallyAllocated []int) {
	for i := len(initiallyAllocated) - 1; i >= 0; i-- {
		e := initiallyAllocated[i]
		elem := s.elements[e]

		traj := &model.Trajectory{
			Elem:      e,
			Timesteps: []int{s.timestep},
			Offsets:   []int64{s.totalMem},
			Size:      elem.Size,
			Color:     e,
		}

		s.liveElem = append(s.liveElem, e)
		s.liveTraj = append(s.liveTraj, traj)
		s.data = append(s.data, traj)

		s.totalMem += elem.Size
	}
}

// processActions replays the classified action list: a miss creates a new
// live trajectory, a hit frees the matching one and shifts everything
// stacked above it down by the freed size.
func (s *simulator) processActions(actions []int) {
	for _, e := range actions {
		size := s.elements[e].Size

		idx := s.findLive(e)
		if idx < 0 {
			s.allocate(e, size)
		} else {
			s.free(idx, size)
		}

		if total := s.totalMem + s.totalSummarizedMem; total > s.maxSize {
			s.maxSize = total
		}
	}
}

// findLive scans the live set from the tail toward the head and returns the
// index of the most recently inserted occurrence of element e, or -1 if e
// is not currently live. Should e ever occur twice in the live set, the
// most recent entry is the one taken. A double alloc at the same address
// does not produce that case: the classifier gives each alloc its own
// element and pairs the later free with the second one.
func (s *simulator) findLive(e int) int {
	for i := len(s.liveElem) - 1; i >= 0; i-- {
		if s.liveElem[i] == e {
			return i
		}
	}
	return -1
}

func (s *simulator) allocate(e int, size int64) {
	traj := &model.Trajectory{
		Elem:      e,
		Timesteps: []int{s.timestep},
		Offsets:   []int64{s.totalMem},
		Size:      size,
		Color:     e,
	}

	s.liveElem = append(s.liveElem, e)
	s.liveTraj = append(s.liveTraj, traj)
	s.data = append(s.data, traj)

	s.totalMem += size
	s.advance(constants.ActionTick)
}

func (s *simulator) free(idx int, size int64) {
	freed := s.liveTraj[idx]

	// Close the freed trajectory at its existing offset.
	freed.Timesteps = append(freed.Timesteps, s.timestep)
	freed.Offsets = append(freed.Offsets, freed.Offsets[len(freed.Offsets)-1])

	// Remove idx from the live set, preserving order of the rest.
	tailElem := append([]int(nil), s.liveElem[idx+1:]...)
	tailTraj := append([]*model.Trajectory(nil), s.liveTraj[idx+1:]...)
	s.liveElem = append(s.liveElem[:idx], tailElem...)
	s.liveTraj = append(s.liveTraj[:idx], tailTraj...)

	if len(tailTraj) > 0 {
		for _, entry := range tailTraj {
			last := entry.Offsets[len(entry.Offsets)-1]
			entry.Timesteps = append(entry.Timesteps, s.timestep)
			entry.Offsets = append(entry.Offsets, last)
			entry.Timesteps = append(entry.Timesteps, s.timestep+constants.ShiftTicks)
			entry.Offsets = append(entry.Offsets, last-size)
		}
		s.advance(constants.ShiftTicks)
	}

	s.totalMem -= size
	s.advance(constants.ActionTick)
}

// finalize closes every trajectory still live at end-of-trace at the final
// timestep.
func (s *simulator) finalize() {
	for _, entry := range s.liveTraj {
		entry.Timesteps = append(entry.Timesteps, s.timestep)
		entry.Offsets = append(entry.Offsets, entry.Offsets[len(entry.Offsets)-1])
	}
}

// Package classify partitions a device's raw event trace into a persistent
// Element arena and an ordered Action list, pairing frees with the prior
// allocation of the same address and synthesizing placeholders for frees
// whose matching allocation precedes the trace.
package classify

import (
	"github.com/allocsnap/allocsnap/internal/logging"
	"github.com/allocsnap/allocsnap/internal/model"
)

// Result is the output of a single classification pass: a dense Element
// arena, the Action sequence the simulator replays, and the subset of
// Elements that are orphan-free placeholders (by arena index, in the order
// they were synthesized).
type Result struct {
	Elements           []model.Element
	Actions            []int
	InitiallyAllocated []int
}

var freeActions = map[string]bool{
	"free":           true,
	"free_completed": true,
}

// Classify performs a single-pass partition: allocs are appended to the
// arena and registered live by
// address; frees either resolve the live registration (appending the prior
// element's index to actions) or, if the address isn't live, are appended as
// a new "initially allocated" element. Any other action kind is ignored.
//
// Classify is deterministic and idempotent: the same events slice always
// produces the same Result.
func Classify(events []model.Event) Result {
	logger := logging.Default().Component("classify")

	result := Result{
		Elements: make([]model.Element, 0, len(events)),
		Actions:  make([]int, 0, len(events)),
	}
	liveAddr := make(map[uint64]int, len(events))

	for _, ev := range events {
		switch {
		case ev.Action == "alloc":
			i := appendElement(&result, ev)
			liveAddr[ev.Addr] = i
			result.Actions = append(result.Actions, i)

		case freeActions[ev.Action]:
			if i, ok := liveAddr[ev.Addr]; ok {
				result.Actions = append(result.Actions, i)
				delete(liveAddr, ev.Addr)
			} else {
				i := appendElement(&result, ev)
				result.InitiallyAllocated = append(result.InitiallyAllocated, i)
				result.Actions = append(result.Actions, i)
			}

		default:
			// segment_alloc, segment_free, and anything else: ignored.
		}
	}

	logger.Debug("classified events",
		"events", len(events),
		"elements", len(result.Elements),
		"orphan_frees", len(result.InitiallyAllocated))

	return result
}

func appendElement(result *Result, ev model.Event) int {
	result.Elements = append(result.Elements, model.Element{
		Size:   ev.Size,
		Frames: ev.Frames,
	})
	return len(result.Elements) - 1
}

// Package constants holds tunables shared across the conversion pipeline so
// no magic numbers are duplicated between the writer, the CLI, and tests.
package constants

// Artifact file names, fixed by the output contract.
const (
	// AllocationsFileName is the JSON trajectory array sink.
	AllocationsFileName = "allocations.json"

	// DatabaseFileName is the SQLite metadata sink.
	DatabaseFileName = "elements.db"
)

// Writer batching.
const (
	// InsertBatchSize is the number of rows committed per SQLite
	// transaction. Autocommit per row dominates runtime on large traces.
	InsertBatchSize = 10000
)

// Defaults for the public invocation surface.
const (
	// DefaultDeviceID is the device index convert() uses when the caller
	// doesn't specify one.
	DefaultDeviceID = 0
)

// Shift-animation timing, fixed by the timeline simulator's contract: a
// three-tick slide down when a block above a freed one is re-packed.
const (
	// ShiftTicks is the number of logical timesteps the shift animation
	// spans after a free causes blocks above it to slide down.
	ShiftTicks = 3

	// ActionTick is the number of logical timesteps a single alloc or
	// free action advances the clock by, outside of any shift.
	ActionTick = 1
)

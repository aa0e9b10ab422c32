// Package allocsnap converts a device memory allocation snapshot into two
// downstream artifacts: a per-allocation timeline (allocations.json) and an
// indexed SQLite table of allocation metadata (elements.db).
package allocsnap

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/allocsnap/allocsnap/internal/callstack"
	"github.com/allocsnap/allocsnap/internal/classify"
	"github.com/allocsnap/allocsnap/internal/logging"
	"github.com/allocsnap/allocsnap/internal/model"
	"github.com/allocsnap/allocsnap/internal/snapshot"
	"github.com/allocsnap/allocsnap/internal/timeline"
	"github.com/allocsnap/allocsnap/internal/writer"
)

// Format identifies the wire encoding of an input snapshot container.
type Format int

const (
	FormatAuto Format = Format(snapshot.FormatAuto)
	FormatJSON Format = Format(snapshot.FormatJSON)
	FormatMsgpack Format = Format(snapshot.FormatMsgpack)
)

// ConvertOptions configures one conversion run. The zero value behaves like
// DefaultConvertOptions: device 0, and Convert fills in a nil Logger and
// Observer.
type ConvertOptions struct {
	// DeviceID selects which device's trace to convert.
	DeviceID int

	// Logger receives phase-transition messages. Defaults to
	// logging.Default() if nil.
	Logger *logging.Logger

	// Observer receives advisory progress callbacks. Defaults to a
	// NoOpObserver if nil; a nil or no-op Observer must never change the
	// correctness of the pipeline.
	Observer Observer
}

// DefaultConvertOptions returns the options Convert uses when none are
// supplied: device 0, the package default logger, no progress reporting.
func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{
		DeviceID: DefaultDeviceID,
		Logger:   logging.Default(),
		Observer: NoOpObserver{},
	}
}

// Summary reports what a Convert call produced.
type Summary struct {
	Trajectories int
	Rows         int
	MaxSize      int64
	Metrics      MetricsSnapshot
}

// Convert runs the full pipeline: decode snap for the requested device,
// classify its events, replay them through the timeline simulator, and emit
// allocations.json and elements.db into outDir. outDir must not already
// contain either artifact.
//
// Convert is single-threaded and synchronous; ctx is checked once before
// each phase so a caller can cancel between phases, but no phase itself is
// interruptible mid-flight.
func Convert(ctx context.Context, snap io.Reader, format Format, outDir string, opts ConvertOptions) (*Summary, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Observer == nil {
		opts.Observer = NoOpObserver{}
	}
	logger := opts.Logger.Component("convert")
	metrics := NewMetrics()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(snap)
	if err != nil {
		return nil, WrapError("convert", KindIOError, err)
	}

	events, err := snapshot.Read(data, snapshot.Format(format), opts.DeviceID)
	if err != nil {
		return nil, translateSnapshotErr(err)
	}
	logger.Info("decoded snapshot", "device", opts.DeviceID, "events", len(events))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	classified := classify.Classify(events)
	opts.Observer.ObserveClassified(len(classified.Elements), len(classified.InitiallyAllocated))
	metrics.EventsClassified.Add(uint64(len(events)))
	metrics.OrphanFreeCount.Add(uint64(len(classified.InitiallyAllocated)))
	logger.Info("classified events", "elements", len(classified.Elements), "actions", len(classified.Actions))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := timeline.Run(classified.Elements, classified.Actions, classified.InitiallyAllocated)
	metrics.TrajectoriesEmitted.Add(uint64(len(result.Trajectories)))
	for _, t := range result.Trajectories {
		metrics.TrajectoryPoints.Add(uint64(len(t.Timesteps)))
	}
	logger.Info("replayed timeline", "trajectories", len(result.Trajectories), "max_size", result.MaxSize)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := checkDestinationsFree(outDir); err != nil {
		return nil, WrapError("convert", KindIOError, err)
	}

	rows := writer.BuildRows(result.Trajectories, classified.Elements)
	if err := writer.WriteSQLite(rows, outDir, func(n int) {
		metrics.RowsWritten.Store(uint64(n))
		opts.Observer.ObserveBatch(n)
	}); err != nil {
		return nil, WrapError("writer", KindStorageError, err)
	}

	bytesWritten, err := writer.WriteJSON(result.Trajectories, outDir)
	if err != nil {
		// Neither artifact may be left behind on failure: elements.db was
		// already committed, so it must be removed now that its sibling
		// couldn't be written.
		os.Remove(outDir + string(os.PathSeparator) + DatabaseFileName)
		return nil, WrapError("writer", KindIOError, err)
	}
	metrics.BytesWrittenJSON.Store(uint64(bytesWritten))

	snap2 := metrics.Snapshot()
	opts.Observer.ObserveDone(snap2)
	logger.Info("conversion complete", "rows", len(rows), "bytes_json", bytesWritten)

	return &Summary{
		Trajectories: len(result.Trajectories),
		Rows:         len(rows),
		MaxSize:      result.MaxSize,
		Metrics:      snap2,
	}, nil
}

// FormatCallstack renders frames as the canonical "(i) filename:line:name"
// text stored in the allocs table's callstack column, exposed at the root
// per the invocation surface spec.md §6 names.
func FormatCallstack(frames []model.Frame) string {
	return callstack.Format(frames)
}

func checkDestinationsFree(outDir string) error {
	for _, name := range []string{AllocationsFileName, DatabaseFileName} {
		path := outDir + string(os.PathSeparator) + name
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("destination already exists: %s", path)
		}
	}
	return nil
}

func translateSnapshotErr(err error) error {
	var se *snapshot.Error
	if e, ok := err.(*snapshot.Error); ok {
		se = e
	}
	if se == nil {
		return WrapError("snapshot", KindDecodeError, err)
	}
	var kind Kind
	switch se.Kind {
	case snapshot.KindDeviceOutOfRange:
		kind = KindDeviceOutOfRange
	case snapshot.KindEmptyDevice:
		kind = KindEmptyDevice
	default:
		kind = KindDecodeError
	}
	return &Error{Op: "snapshot", Kind: kind, Msg: se.Msg, Inner: se.Inner}
}

package writer

import (
	"bufio"
	"encoding/json"
	"path/filepath"

	"github.com/allocsnap/allocsnap/internal/bufpool"
	"github.com/allocsnap/allocsnap/internal/constants"
	"github.com/allocsnap/allocsnap/internal/logging"
	"github.com/allocsnap/allocsnap/internal/model"
)

// jsonTrajectory is the wire shape for one entry in allocations.json: the
// summary track is never passed to WriteJSON, so Elem is always a real
// element index here.
type jsonTrajectory struct {
	Elem      int     `json:"elem"`
	Timesteps []int   `json:"timesteps"`
	Offsets   []int64 `json:"offsets"`
	Size      int64   `json:"size"`
	Color     int     `json:"color"`
}

// WriteJSON streams trajectories (summary excluded by the caller) as a JSON
// array to <outDir>/allocations.json, encoding one element at a time through
// a pooled buffer so memory use stays bounded regardless of trace size.
func WriteJSON(trajectories []*model.Trajectory, outDir string) (bytesWritten int, err error) {
	logger := logging.Default().Component("writer")
	finalPath := filepath.Join(outDir, constants.AllocationsFileName)

	tmp, err := createTemp("allocations")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)

	writeErr := func() error {
		if _, err := bw.WriteString("["); err != nil {
			return err
		}
		for i, t := range trajectories {
			if i > 0 {
				if _, err := bw.WriteString(","); err != nil {
					return err
				}
			}
			encoded, err := json.Marshal(jsonTrajectory{
				Elem:      t.Elem,
				Timesteps: t.Timesteps,
				Offsets:   t.Offsets,
				Size:      t.Size,
				Color:     t.Color,
			})
			if err != nil {
				return err
			}
			buf := bufpool.Get(len(encoded))
			copy(buf, encoded)
			if _, err := bw.Write(buf); err != nil {
				bufpool.Put(buf)
				return err
			}
			bufpool.Put(buf)
		}
		_, err := bw.WriteString("]")
		return err
	}()

	if writeErr == nil {
		writeErr = bw.Flush()
	}
	n, _ := tmp.Seek(0, 1) // current offset == bytes written so far
	closeErr := tmp.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		abort(tmpPath)
		return 0, writeErr
	}

	if err := commit(tmpPath, finalPath); err != nil {
		return 0, err
	}

	logger.Debug("wrote allocations.json", "trajectories", len(trajectories), "bytes", n)
	return int(n), nil
}

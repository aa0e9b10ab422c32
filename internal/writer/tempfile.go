// Package writer streams the timeline simulator's output to the two
// on-disk artifacts: a batched SQLite table and a JSON trajectory array.
// Both sinks write to a uniquely-named temporary file outside the
// destination directory and atomically move it into place on success,
// deleting it on any failure.
package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/allocsnap/allocsnap/internal/logging"
)

// createTemp creates a temp file named "<prefix>-<uuid>.tmp" in the OS temp
// directory, outside outDir, per the temporary-file discipline described for
// the artifact writer.
func createTemp(prefix string) (*os.File, error) {
	name := fmt.Sprintf("%s-%s.tmp", prefix, uuid.NewString())
	return os.Create(filepath.Join(os.TempDir(), name))
}

// commit moves tmpPath into place at finalPath, falling back to a copy when
// the rename fails because the two paths are on different filesystems, and
// always removes the temp file once it is no longer needed.
func commit(tmpPath, finalPath string) error {
	if _, err := os.Stat(finalPath); err == nil {
		os.Remove(tmpPath)
		return fmt.Errorf("destination already exists: %s", finalPath)
	}

	if err := os.Rename(tmpPath, finalPath); err == nil {
		return nil
	}

	logging.Default().Component("writer").Debug("cross-device move, copying instead", "from", tmpPath, "to", finalPath)
	if err := copyFile(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	os.Remove(tmpPath)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// abort removes a temp file after a failed write, logging but not
// propagating removal errors: the original failure is what matters.
func abort(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Default().Component("writer").Warn("failed to remove temp file", "path", path, "error", err)
	}
}

package writer

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/allocsnap/allocsnap/internal/callstack"
	"github.com/allocsnap/allocsnap/internal/constants"
	"github.com/allocsnap/allocsnap/internal/logging"
	"github.com/allocsnap/allocsnap/internal/model"
)

// Row is one row of the allocs table, derived from a non-summary
// trajectory and its originating element's frames.
type Row struct {
	Idx       int
	Size      int64
	StartTime int
	EndTime   int
	Callstack string
}

// BuildRows derives the allocs table rows from the simulator's trajectory
// output and the classifier's element arena, in trajectory order.
func BuildRows(trajectories []*model.Trajectory, elements []model.Element) []Row {
	rows := make([]Row, len(trajectories))
	for i, t := range trajectories {
		rows[i] = Row{
			Idx:       t.Elem,
			Size:      t.Size,
			StartTime: t.Timesteps[0],
			EndTime:   t.Timesteps[len(t.Timesteps)-1],
			Callstack: callstack.Format(elements[t.Elem].Frames),
		}
	}
	return rows
}

// BatchObserver receives a running rows-written count after each committed
// batch. It is advisory; a nil BatchObserver is fine.
type BatchObserver func(rowsWrittenSoFar int)

const createTableSQL = `CREATE TABLE allocs (
	idx INTEGER PRIMARY KEY,
	size INTEGER,
	start_time INTEGER,
	end_time INTEGER,
	callstack TEXT
)`

const insertSQL = `INSERT INTO allocs (idx, size, start_time, end_time, callstack) VALUES (?, ?, ?, ?, ?)`

// WriteSQLite bulk-inserts rows into a fresh elements.db under outDir,
// batching InsertBatchSize rows per transaction; each transaction prepares
// the INSERT once and reuses it for every row of its batch.
func WriteSQLite(rows []Row, outDir string, onBatch BatchObserver) error {
	logger := logging.Default().Component("writer")
	finalPath := filepath.Join(outDir, constants.DatabaseFileName)

	tmp, err := createTemp("elements")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := writeSQLite(tmpPath, rows, onBatch, logger); err != nil {
		abort(tmpPath)
		return err
	}

	if err := commit(tmpPath, finalPath); err != nil {
		return err
	}

	logger.Debug("wrote elements.db", "rows", len(rows))
	return nil
}

func writeSQLite(path string, rows []Row, onBatch BatchObserver, logger *logging.Logger) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("creating allocs table: %w", err)
	}

	written := 0
	for start := 0; start < len(rows); start += constants.InsertBatchSize {
		end := start + constants.InsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		if err := insertBatch(db, rows[start:end]); err != nil {
			return err
		}
		written = end
		logger.Debug("committed batch", "rows_written", written)
		if onBatch != nil {
			onBatch(written)
		}
	}
	return nil
}

func insertBatch(db *sql.DB, batch []Row) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range batch {
		if _, err := stmt.Exec(r.Idx, r.Size, r.StartTime, r.EndTime, r.Callstack); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

package allocsnap

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

const fixtureSnapshot = `{
	"device_traces": [
		[
			{"action": "alloc", "addr": 1, "size": 10, "frames": []},
			{"action": "alloc", "addr": 2, "size": 20, "frames": [{"filename": "a.c", "line": 1, "name": "f"}]},
			{"action": "free", "addr": 1, "size": 0, "frames": []}
		]
	]
}`

type jsonTrajectory struct {
	Elem      int     `json:"elem"`
	Timesteps []int   `json:"timesteps"`
	Offsets   []int64 `json:"offsets"`
	Size      int64   `json:"size"`
	Color     int     `json:"color"`
}

func TestConvertEndToEndProducesConsistentArtifacts(t *testing.T) {
	outDir := t.TempDir()

	summary, err := Convert(context.Background(), strings.NewReader(fixtureSnapshot), FormatJSON, outDir, DefaultConvertOptions())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Trajectories)
	require.Equal(t, 2, summary.Rows)

	jsonData, err := os.ReadFile(filepath.Join(outDir, AllocationsFileName))
	require.NoError(t, err)
	var trajectories []jsonTrajectory
	require.NoError(t, json.Unmarshal(jsonData, &trajectories))
	require.Len(t, trajectories, 2)

	db, err := sql.Open("sqlite3", filepath.Join(outDir, DatabaseFileName))
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query("SELECT idx, size, start_time, end_time FROM allocs")
	require.NoError(t, err)
	defer rows.Close()

	byElem := make(map[int]jsonTrajectory, len(trajectories))
	for _, tr := range trajectories {
		byElem[tr.Elem] = tr
	}

	seen := 0
	for rows.Next() {
		var idx, size, start, end int
		require.NoError(t, rows.Scan(&idx, &size, &start, &end))
		tr, ok := byElem[idx]
		require.True(t, ok, "row idx %d has no matching trajectory", idx)
		require.Equal(t, tr.Timesteps[0], start)
		require.Equal(t, tr.Timesteps[len(tr.Timesteps)-1], end)
		require.EqualValues(t, tr.Size, size)
		seen++
	}
	require.Equal(t, 2, seen)
}

func TestConvertDeviceOutOfRange(t *testing.T) {
	outDir := t.TempDir()
	opts := DefaultConvertOptions()
	opts.DeviceID = 5

	_, err := Convert(context.Background(), strings.NewReader(fixtureSnapshot), FormatJSON, outDir, opts)
	require.Error(t, err)
	require.True(t, IsKind(err, KindDeviceOutOfRange))
}

func TestConvertEmptyDevice(t *testing.T) {
	snap := `{"device_traces": [[], [{"action": "alloc", "addr": 1, "size": 1, "frames": []}]]}`
	outDir := t.TempDir()
	opts := DefaultConvertOptions()
	opts.DeviceID = 0

	_, err := Convert(context.Background(), strings.NewReader(snap), FormatJSON, outDir, opts)
	require.Error(t, err)
	require.True(t, IsKind(err, KindEmptyDevice))
}


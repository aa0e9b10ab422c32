package callstack

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/allocsnap/allocsnap/internal/model"
)

func TestFormatTwoFrames(t *testing.T) {
	frames := []model.Frame{
		{Filename: "a.c", Line: 1, Name: "f"},
		{Filename: "b.c", Line: 2, Name: "g"},
	}

	require.Equal(t, "(0) a.c:1:f\n(1) b.c:2:g", Format(frames))
}

func TestFormatEmpty(t *testing.T) {
	require.Equal(t, "", Format(nil))
	require.Equal(t, "", Format([]model.Frame{}))
}

func TestFormatSingleFrame(t *testing.T) {
	frames := []model.Frame{{Filename: "x.py", Line: 42, Name: "main"}}
	require.Equal(t, "(0) x.py:42:main", Format(frames))
}

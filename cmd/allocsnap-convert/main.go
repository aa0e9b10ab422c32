// Command allocsnap-convert reads a device memory allocation snapshot and
// writes the two downstream artifacts (allocations.json, elements.db) into
// an output directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/allocsnap/allocsnap"
	"github.com/allocsnap/allocsnap/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("allocsnap-convert", flag.ContinueOnError)
	input := fs.String("i", "", "path to the input snapshot file")
	output := fs.String("o", "", "output directory for allocations.json and elements.db")
	device := fs.Int("d", allocsnap.DefaultDeviceID, "device index to convert")
	verbose := fs.Bool("v", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *input == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "usage: allocsnap-convert -i <snapshot> -o <output-dir> [-d device] [-v]")
		return 2
	}

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(&logging.Config{Level: level, Output: os.Stderr})
	logging.SetDefault(logger)

	f, err := os.Open(*input)
	if err != nil {
		logger.Error("failed to open input snapshot", "path", *input, "error", err)
		return 2
	}
	defer f.Close()

	if err := os.MkdirAll(*output, 0o755); err != nil {
		logger.Error("failed to create output directory", "path", *output, "error", err)
		return 2
	}

	opts := allocsnap.DefaultConvertOptions()
	opts.DeviceID = *device
	opts.Logger = logger

	summary, err := allocsnap.Convert(context.Background(), f, allocsnap.FormatAuto, *output, opts)
	if err != nil {
		var pipelineErr *allocsnap.Error
		if errors.As(err, &pipelineErr) {
			switch pipelineErr.Kind {
			case allocsnap.KindDeviceOutOfRange, allocsnap.KindEmptyDevice:
				logger.Error("conversion failed", "kind", pipelineErr.Kind, "error", err)
				return 1
			}
		}
		logger.Error("conversion failed", "error", err)
		return 2
	}

	logger.Info("conversion succeeded",
		"trajectories", summary.Trajectories,
		"rows", summary.Rows,
		"max_size", summary.MaxSize)
	return 0
}

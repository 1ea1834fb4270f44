package main

import (
	"os"
	"slices"

	"cumulus/internal/flags"
	"cumulus/internal/logger"

	// Explicitly import boundary implementations to ensure their init() functions run and they register themselves
	_ "cumulus/pkg/storage/gcs"
	_ "cumulus/pkg/storage/local"
	_ "cumulus/pkg/storage/memory"
	_ "cumulus/pkg/storage/s3"
)

func main() {
	// The logger exists before cobra parses anything, so the debug switch is
	// scanned from the raw arguments.
	debug := slices.Contains(os.Args[1:], "--"+flags.Debug) || slices.Contains(os.Args[1:], "-"+flags.DebugShort)
	log := logger.NewLogger(debug)

	app, err := newApp(log)
	if err != nil {
		log.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	Execute(app)
}

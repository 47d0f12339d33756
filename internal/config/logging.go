package config

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// SetupLogging configures the global logger from the parsed arguments. It
// returns the log file handle, if any, so the caller can close it at exit.
func SetupLogging(args Args) (*os.File, error) {
	level, err := log.ParseLevel(args.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", args.LogLevel)
	}
	log.SetLevel(level)
	if level >= log.DebugLevel {
		log.SetReportCaller(true)
	}

	if args.Json || args.JsonFile != "" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	var logFile *os.File
	switch {
	case args.Log != "":
		logFile, err = os.OpenFile(args.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		log.SetOutput(logFile)
	case args.TUI || args.Json || args.Quiet:
		// The terminal belongs to the dashboard or to NDJSON; without a log
		// file there is nowhere safe to write diagnostics.
		log.SetOutput(io.Discard)
	default:
		log.SetOutput(os.Stderr)
	}

	return logFile, nil
}

// Package sysutil configures process-wide logging for the server
// entrypoint. It exists so cmd/server stays a thin wiring layer and no
// domain package ever touches the global logger.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel configures the global zerolog level. Accepted values
// (case-insensitive): debug, info, warn/warning, error, fatal, panic.
// Unknown or empty values fall back to info rather than failing startup.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// UsePrettyOutput switches the global logger from JSON to a human-readable
// console writer. Intended for local development only; a nil writer means
// stderr.
func UsePrettyOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
}

// Package logging configures the process-wide zerolog logger. All log
// output goes to stderr so stdout carries nothing but reports.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger once at startup. Default level is
// info; verbose switches to debug.
func Setup(verbose bool) {
	SetupWriter(os.Stderr, verbose)
}

// SetupWriter is Setup with an injectable sink.
func SetupWriter(w io.Writer, verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly})
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

// Component returns a logger scoped to one named component.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Package applog builds the structured diagnostic logger shared by the
// long-running processes (controller, car, safety). It is strictly
// separate from the exact, protocol-mandated strings those processes
// print to stdout: this logger only ever writes to stderr.
package applog

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger tagged with the owning component and
// instance name, writing human-readable output to stderr.
func New(component, instance string) zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(output).
		With().
		Timestamp().
		Str("component", component).
		Str("instance", instance).
		Logger()
}

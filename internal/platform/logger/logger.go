// Package logger builds the zerolog loggers used across the consultation service.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a structured logger writing JSON to stdout, tagged with the
// service name so backend and bot-proxy events can be told apart in aggregate.
func New(serviceName string) zerolog.Logger {
	return zerolog.New(os.Stdout).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

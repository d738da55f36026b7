// Package logging configures the service-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json (production) or console (development).
	Format string `koanf:"format"`
}

// New builds a logger with service metadata attached to every event.
func New(cfg Config, serviceName, version, environment string) zerolog.Logger {
	return NewWithWriter(cfg, serviceName, version, environment, os.Stderr)
}

// NewWithWriter is New with an explicit output, used by tests.
func NewWithWriter(cfg Config, serviceName, version, environment string, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", version).
		Str("environment", environment).
		Logger()
}

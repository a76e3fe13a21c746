// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls log output.
type Config struct {
	// Level: trace, debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format: "console" for human-readable output, anything else for JSON.
	Format string `mapstructure:"format"`
}

// New creates a structured logger and installs it as zerolog's global logger
// so libraries that use the global pick it up too.
func New(cfg Config) zerolog.Logger {
	var w io.Writer = os.Stderr
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	logger := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

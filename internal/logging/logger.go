package logging

import (
	"io"
	"os"
	"time"

	log "github.com/rs/zerolog"
)

// Config contains logger configuration.
type Config struct {
	// Level sets the logging level (trace, debug, info, warn, error).
	Level string
	// Pretty enables human-readable console output.
	Pretty bool
	// Output sets the output writer (defaults to os.Stderr).
	Output io.Writer
}

func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: true,
		Output: os.Stderr,
	}
}

// ParseLevel returns the zerolog level for name, falling back to info.
func ParseLevel(name string) log.Level {
	switch name {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// New creates a zerolog logger with the given configuration.
func New(cfg Config) log.Logger {
	log.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = log.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		}
	}

	return log.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// NewWithComponent creates a logger with a component field.
func NewWithComponent(cfg Config, component string) log.Logger {
	return New(cfg).With().Str("component", component).Logger()
}

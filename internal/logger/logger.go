// Package logger builds the zerolog loggers used across the engine.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, encoding and destination for log output.
type Config struct {
	Level      string `json:"level" yaml:"level" default:"info"`    // debug, info, warn, error
	Format     string `json:"format" yaml:"format" default:"console"` // json or console
	Output     string `json:"output" yaml:"output" default:"stderr"` // stdout, stderr or a file path
	TimeFormat string `json:"time_format,omitempty" yaml:"time_format,omitempty"`
}

// New returns a logger configured by cfg. The level is applied to the
// returned logger only, so several loggers can coexist in one process.
func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
		}
		level = l
	}

	var out io.Writer
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("could not open log file: %w", err)
		}
		out = f
	}

	return build(out, level, cfg), nil
}

// NewWriter is New with an explicit destination, handy for tests.
func NewWriter(w io.Writer, cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
		}
		level = l
	}
	return build(w, level, cfg), nil
}

func build(out io.Writer, level zerolog.Level, cfg Config) zerolog.Logger {
	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339
	}

	switch cfg.Format {
	case "json":
	default:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: tf}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}

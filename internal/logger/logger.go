package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field names shared across components
const (
	FieldComponent     = "component"
	FieldTransactionID = "transaction_id"
	FieldInvoiceID     = "invoice_id"
	FieldBatchID       = "batch_id"
	FieldRequestID     = "request_id"
	FieldField         = "field"
	FieldCount         = "count"
	FieldDuration      = "duration"
	FieldFile          = "file"
)

// Config holds logging configuration
type Config struct {
	Level      string // trace, debug, info, warn, error
	Format     string // json, console
	TimeFormat string
	Output     io.Writer
}

// DefaultConfig returns the logging configuration used by the CLI
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
		Output:     os.Stderr,
	}
}

// New creates a structured logger
func New(cfg Config) zerolog.Logger {
	var out io.Writer = cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if strings.ToLower(cfg.Format) != "json" {
		timeFormat := cfg.TimeFormat
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	return zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to zerolog, defaulting to info
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// WithComponent returns a child logger tagged with the component name
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str(FieldComponent, component).Logger()
}

// Package log creates [slog.Handler] values backed by charmbracelet/log.
package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Environment variables read by [NewFromEnv].
const (
	EnvLevel  = "QSYNC_LOG_LEVEL"
	EnvFormat = "QSYNC_LOG_FORMAT"
)

// Format is a log output format.
type Format string

const (
	FormatText   Format = "text"
	FormatLogfmt Format = "logfmt"
	FormatJSON   Format = "json"
)

var (
	ErrUnknownLevel  = errors.New("unknown log level")
	ErrUnknownFormat = errors.New("unknown log format")
)

// NewFromEnv creates a [slog.Logger] writing to stderr, configured from
// [EnvLevel] and [EnvFormat]. Unset variables fall back to warn and text.
func NewFromEnv() (*slog.Logger, error) {
	level := os.Getenv(EnvLevel)
	if level == "" {
		level = "warn"
	}

	h, err := CreateHandler(os.Stderr, level, os.Getenv(EnvFormat))
	if err != nil {
		return nil, err
	}

	return slog.New(h), nil
}

// CreateHandler creates a [slog.Handler] writing to w, by strings.
func CreateHandler(w io.Writer, logLevel, logFormat string) (slog.Handler, error) {
	level, err := GetLevel(logLevel)
	if err != nil {
		return nil, err
	}

	format, err := GetFormat(logFormat)
	if err != nil {
		return nil, err
	}

	return NewHandler(w, level, format), nil
}

// NewHandler creates a [slog.Handler] writing to w.
func NewHandler(w io.Writer, level charmlog.Level, format Format) slog.Handler {
	opts := charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		Formatter:       charmlog.TextFormatter,
	}

	switch format {
	case FormatJSON:
		opts.Formatter = charmlog.JSONFormatter
	case FormatLogfmt:
		opts.Formatter = charmlog.LogfmtFormatter
	case FormatText:
	}

	return charmlog.NewWithOptions(w, opts)
}

// GetLevel parses a log level. Levels finer than debug map to debug, and
// levels coarser than error map to error.
func GetLevel(level string) (charmlog.Level, error) {
	switch strings.ToLower(level) {
	case "panic", "fatal", "error":
		return charmlog.ErrorLevel, nil
	case "warn", "warning":
		return charmlog.WarnLevel, nil
	case "info":
		return charmlog.InfoLevel, nil
	case "debug", "trace":
		return charmlog.DebugLevel, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
}

// GetFormat parses a log format. The empty string selects [FormatText].
func GetFormat(format string) (Format, error) {
	switch f := Format(strings.ToLower(format)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatLogfmt, FormatJSON:
		return f, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

package config

import (
	"io"
	"log/slog"
	"strings"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// NormalizeLogLevel maps a raw string onto a supported level, defaulting to
// info.
func NormalizeLogLevel(raw string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// NormalizeLogFormat maps a raw string onto a supported format, defaulting to
// text.
func NormalizeLogFormat(raw string) LogFormat {
	if strings.ToLower(strings.TrimSpace(raw)) == "json" {
		return LogFormatJSON
	}
	return LogFormatText
}

// FitterKind enumerates supported fit engines.
type FitterKind string

const (
	FitterAuto FitterKind = "auto"
	FitterWLS  FitterKind = "wls"
)

// NormalizeFitterKind maps a raw string onto a supported engine, defaulting
// to auto.
func NormalizeFitterKind(raw string) FitterKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "wls":
		return FitterWLS
	case "auto", "":
		return FitterAuto
	default:
		return FitterKind(strings.ToLower(strings.TrimSpace(raw)))
	}
}

// NewLogger builds the slog logger described by the logging section.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch NormalizeLogLevel(cfg.Level) {
	case LogLevelDebug:
		level = slog.LevelDebug
	case LogLevelWarn:
		level = slog.LevelWarn
	case LogLevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if NormalizeLogFormat(cfg.Format) == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

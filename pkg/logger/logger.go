package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

type Options struct {
	Environment string
	Level       string
	Format      string
	Output      io.Writer
}

// Init keeps the old single-argument behaviour: JSON at info in production,
// text at debug everywhere else.
func Init(env string) {
	Setup(Options{Environment: env})
}

func Setup(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	production := opts.Environment == "production"

	level := ParseLevel(opts.Level)
	if opts.Level == "" {
		level = slog.LevelDebug
		if production {
			level = slog.LevelInfo
		}
	}

	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "text"
		if production {
			format = "json"
		}
	}

	var handler slog.Handler
	handlerOpts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}

func L() *slog.Logger {
	return LoggerWrapper()
}

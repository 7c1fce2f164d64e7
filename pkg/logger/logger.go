package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	EMPTY     = ""
	DEBUG     = "debug"
	INFO      = "info"
	WARN      = "warn"
	ERROR     = "error"
	JSON      = "json"
	TEXT      = "text"
	SERVICE   = "service"
	COMPONENT = "component"
)

type Logger struct {
	*slog.Logger
	exit func(code int)
}

type Config struct {
	Level     string
	Format    string
	Output    io.Writer
	AddSource bool
	Service   string
}

// ParseLevel maps a LOG_LEVEL value to its slog level. Matching is case
// insensitive and the empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case EMPTY, INFO:
		return slog.LevelInfo, nil
	case DEBUG:
		return slog.LevelDebug, nil
	case WARN, "warning":
		return slog.LevelWarn, nil
	case ERROR:
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New never fails: an unknown level falls back to info and an unknown
// format to text.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	level, _ := ParseLevel(cfg.Level)

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case EMPTY, JSON:
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	if cfg.Service != EMPTY {
		handler = handler.WithAttrs([]slog.Attr{slog.String(SERVICE, cfg.Service)})
	}
	return &Logger{Logger: slog.New(handler), exit: os.Exit}
}

// With returns a child logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), exit: l.exit}
}

// Component tags records from one background part of the process, such as
// the reservation sweeper or the payment consumer.
func (l *Logger) Component(name string) *Logger {
	return l.With(COMPONENT, name)
}

// Fatal logs at error level and exits with status 1. Reserve it for startup
// failures the process cannot continue from.
func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	exit := l.exit
	if exit == nil {
		exit = os.Exit
	}
	exit(1)
}

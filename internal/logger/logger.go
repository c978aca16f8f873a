// Package logger builds the application slog logger.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ironsheep/vision-explain/internal/envvar"
)

type options struct {
	level     *slog.Level
	logToFile bool
	logFile   string
	console   io.Writer
}

// Option configures New.
type Option func(*options)

// WithLogToFile enables the rotating JSON file handler.
func WithLogToFile(enabled bool) Option {
	return func(o *options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the log file path used when file logging is enabled.
func WithLogFile(path string) Option {
	return func(o *options) {
		o.logFile = path
	}
}

// WithLevel overrides the environment's default level.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = &level
	}
}

// WithConsole sets the console writer. The default is stderr so stdout stays free
// for protocol traffic.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		o.console = w
	}
}

// New builds the application logger: colored tint output on the console and,
// optionally, JSON lines written through lumberjack rotation.
func New(env envvar.Environment, opts ...Option) *slog.Logger {
	o := &options{
		logFile: "logs/vision-explain.log",
		console: os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}

	level := slog.LevelInfo
	if env == envvar.Development {
		level = slog.LevelDebug
	}
	if o.level != nil {
		level = *o.level
	}

	handlers := []slog.Handler{
		tint.NewHandler(o.console, &tint.Options{
			Level:      level,
			AddSource:  env == envvar.Development,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(o.console),
		}),
	}

	if o.logToFile {
		handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(&fanout{handlers: handlers})
}

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("unknown log level: " + s)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// fanout sends every record to all handlers that accept its level.
type fanout struct {
	handlers []slog.Handler
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &fanout{handlers: hs}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &fanout{handlers: hs}
}

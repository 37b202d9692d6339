// Package logger configures log/slog for the process and hands out loggers
// carrying the subsystem and any context-scoped attributes.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amp-labs/amp-async/config"
	"github.com/amp-labs/amp-async/shutdown"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	otellog "go.opentelemetry.io/otel/log"
)

// ErrInvalidLogOutput is returned when an unknown log output is configured.
var ErrInvalidLogOutput = errors.New("invalid log output")

var (
	subsystem   atomic.Value //nolint:gochecknoglobals
	configMutex sync.Mutex   //nolint:gochecknoglobals

	exitMutex sync.Mutex //nolint:gochecknoglobals
	exit      = os.Exit  //nolint:gochecknoglobals
)

type contextKey string

// Fatal logs at error level, runs the shutdown hooks and exits the process.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)

	shutdown.Shutdown()

	time.Sleep(time.Second)

	exitMutex.Lock()
	fn := exit
	exitMutex.Unlock()

	fn(1)
}

// SetExit replaces the function Fatal exits the process with and returns a
// func restoring the previous one. Meant for tests.
func SetExit(fn func(code int)) (restore func()) {
	exitMutex.Lock()
	defer exitMutex.Unlock()

	prev := exit
	exit = fn

	return func() {
		exitMutex.Lock()
		defer exitMutex.Unlock()

		exit = prev
	}
}

// Options is used to configure logging.
type Options struct {
	Subsystem string
	JSON      bool
	MinLevel  slog.Level
	Output    io.Writer

	// LoggerProvider, when set, mirrors every record to OpenTelemetry.
	LoggerProvider otellog.LoggerProvider
}

// ConfigureLoggingWithOptions installs the default slog logger and
// redirects the legacy log package into it. Concurrent calls are serialized.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.MinLevel}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	if opts.LoggerProvider != nil {
		handler = &fanoutHandler{handlers: []slog.Handler{
			handler,
			otelslog.NewHandler(opts.Subsystem, otelslog.WithLoggerProvider(opts.LoggerProvider)),
		}}
	}

	logger := slog.New(&annotatedErrorHandler{inner: handler})

	slog.SetDefault(logger)

	def := log.Default()
	*def = *slog.NewLogLogger(handler, slog.LevelInfo)

	subsystem.Store(opts.Subsystem)

	return logger
}

// Option adjusts the Options derived by ConfigureLogging.
type Option func(*Options)

// WithLoggerProvider bridges the configured logger to OpenTelemetry.
func WithLoggerProvider(lp otellog.LoggerProvider) Option {
	return func(o *Options) {
		o.LoggerProvider = lp
	}
}

// ConfigureLogging configures logging from the logging section of the
// application config.
func ConfigureLogging(app string, cfg config.Logging, opts ...Option) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var output io.Writer

	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogOutput, cfg.Output)
	}

	options := Options{
		Subsystem: app,
		JSON:      cfg.JSON,
		MinLevel:  level,
		Output:    output,
	}

	for _, o := range opts {
		o(&options)
	}

	return ConfigureLoggingWithOptions(options), nil
}

func parseLevel(value string) (slog.Level, error) {
	if value == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(value))); err != nil {
		return 0, fmt.Errorf("parsing log level: %w", err)
	}

	return level, nil
}

// WithMuted marks the context so that Get returns a logger producing no output.
func WithMuted(ctx context.Context, muted bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("mute"), muted)
}

func isMuted(ctx context.Context) bool {
	muted, ok := ctx.Value(contextKey("mute")).(bool)

	return ok && muted
}

// WithSubsystem overrides the default subsystem for loggers built from ctx.
func WithSubsystem(ctx context.Context, subsystem string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("subsystem"), subsystem)
}

// GetSubsystem returns the subsystem from the context, falling back to the
// one set by ConfigureLogging.
func GetSubsystem(ctx context.Context) string {
	if ctx != nil {
		if sub, ok := ctx.Value(contextKey("subsystem")).(string); ok {
			return sub
		}
	}

	if sub, ok := subsystem.Load().(string); ok {
		return sub
	}

	return ""
}

// With returns a context whose loggers carry the given key-value pairs.
func With(ctx context.Context, values ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(values) == 0 {
		return ctx
	}

	vals := append(getValues(ctx), values...) //nolint:gocritic

	return context.WithValue(ctx, contextKey("loggerValues"), vals)
}

func getValues(ctx context.Context) []any {
	vals, _ := ctx.Value(contextKey("loggerValues")).([]any)

	return vals
}

type nullHandler struct{}

func (nullHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nullHandler) Handle(context.Context, slog.Record) error { return nil }
func (n nullHandler) WithAttrs([]slog.Attr) slog.Handler      { return n }
func (n nullHandler) WithGroup(string) slog.Handler           { return n }

var nullLogger = slog.New(nullHandler{}) //nolint:gochecknoglobals

// Get returns a logger for the first non-nil context given (or the
// background context), tagged with its subsystem and values.
func Get(ctx ...context.Context) *slog.Logger {
	realCtx := context.Background()

	for _, c := range ctx {
		if c != nil {
			realCtx = c

			break
		}
	}

	if isMuted(realCtx) {
		return nullLogger
	}

	logger := slog.Default()

	if sub := GetSubsystem(realCtx); sub != "" {
		logger = logger.With("subsystem", sub)
	}

	if vals := getValues(realCtx); len(vals) > 0 {
		logger = logger.With(vals...)
	}

	return logger
}

// Package startup wires the process-wide pieces together from one
// configuration: logging, telemetry, the background worker pool and the
// loop every action runs on.
package startup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amp-labs/amp-async/action"
	"github.com/amp-labs/amp-async/bgworker"
	"github.com/amp-labs/amp-async/config"
	"github.com/amp-labs/amp-async/envutil"
	"github.com/amp-labs/amp-async/logger"
	"github.com/amp-labs/amp-async/loop"
	"github.com/amp-labs/amp-async/sequencer"
	"github.com/amp-labs/amp-async/shutdown"
	"github.com/amp-labs/amp-async/statemachine"
	"github.com/amp-labs/amp-async/telemetry"
)

// ConfigFileEnv names the variable consulted when no config path is given.
const ConfigFileEnv = "AMP_ASYNC_CONFIG"

// drainTimeout bounds how long the shutdown hook waits for the loop.
const drainTimeout = 5 * time.Second

// Runtime is everything Start set up.
type Runtime struct {
	// Context is cancelled once SIGINT or SIGTERM, or a fatal error, has
	// run the shutdown hooks.
	Context context.Context //nolint:containedctx

	Config    config.Config
	Logger    *slog.Logger
	Loop      *loop.Loop
	Telemetry *telemetry.Providers
}

// Option is a functional option for Start.
type Option func(*options)

type options struct {
	path      string
	loopOpts  []loop.Option
	telemetry bool
}

// WithConfigFile reads the configuration from path instead of the file named
// by AMP_ASYNC_CONFIG.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithLoopOptions adds options applied after the configured ones.
func WithLoopOptions(opts ...loop.Option) Option {
	return func(o *options) {
		o.loopOpts = append(o.loopOpts, opts...)
	}
}

// WithoutTelemetry skips telemetry even when the configuration enables it.
func WithoutTelemetry() Option {
	return func(o *options) {
		o.telemetry = false
	}
}

// Start loads the configuration and brings up every component in
// dependency order. It installs the signal handler; the loop is started on
// ctx and stopped by the shutdown hooks, which also flush telemetry.
func Start(ctx context.Context, opts ...Option) (*Runtime, error) {
	o := &options{
		path:      envutil.String(ConfigFileEnv).ValueOrElse(""),
		telemetry: true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	cfg, err := config.Load(o.path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	providers := &telemetry.Providers{}

	if o.telemetry {
		providers, err = telemetry.Initialize(ctx, cfg.Telemetry)
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
	}

	var logOpts []logger.Option
	if lp := providers.LoggerProvider(); lp != nil {
		logOpts = append(logOpts, logger.WithLoggerProvider(lp))
	}

	log, err := logger.ConfigureLogging(cfg.Loop.Name, cfg.Logging, logOpts...)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}

	if err := bgworker.Configure(cfg.Workers); err != nil {
		if !errors.Is(err, bgworker.ErrPoolStarted) {
			return nil, fmt.Errorf("configuring background workers: %w", err)
		}

		log.Warn("background worker pool already running, keeping its size")
	}

	l := loop.New(append([]loop.Option{
		loop.WithLogger(log),
		loop.WithConfig(cfg.Loop),
	}, o.loopOpts...)...)

	l.Start(ctx)
	shutdown.BeforeShutdown(func() {
		l.Stop()

		select {
		case <-l.Done():
		case <-time.After(drainTimeout):
			log.Warn("loop did not drain before shutdown", "loop", l.Name())
		}
	})

	shutdownCtx := shutdown.SetupHandler()

	log.Info("runtime started",
		"loop", l.Name(),
		"workers", cfg.Workers.Count,
		"telemetry", providers.Tracer != nil || providers.Logger != nil)

	return &Runtime{
		Context:   shutdownCtx,
		Config:    cfg,
		Logger:    log,
		Loop:      l,
		Telemetry: providers,
	}, nil
}

// MachineOptions returns the options every machine on this runtime should
// use: spans go to the configured trace provider.
func (r *Runtime) MachineOptions() []statemachine.Option {
	return []statemachine.Option{statemachine.WithTracerProvider(r.Telemetry.TracerProvider())}
}

// NewMachine creates a state machine on the runtime's loop.
func (r *Runtime) NewMachine(name string, opts ...statemachine.Option) *statemachine.Machine {
	return statemachine.New(r.Loop, name, append(r.MachineOptions(), opts...)...)
}

// NewSequencer creates a sequencer on the runtime's loop.
func (r *Runtime) NewSequencer(name string, opts ...statemachine.Option) *sequencer.Sequencer {
	return sequencer.New(r.Loop, name, append(r.MachineOptions(), opts...)...)
}

// RetryPolicy returns the configured retry policy.
func (r *Runtime) RetryPolicy() action.RetryPolicy {
	return action.PolicyFromConfig(r.Config.Retry)
}

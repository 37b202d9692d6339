// Package config loads runtime settings for the orchestration core from a
// YAML file, then applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/amp-labs/amp-async/envutil"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidWorkers   = errors.New("workers.count must be positive")
	ErrInvalidRetry     = errors.New("invalid retry policy")
	ErrInvalidOutput    = errors.New("logging.output must be stdout or stderr")
	ErrMissingEndpoint  = errors.New("telemetry enabled without an endpoint")
	ErrMissingService   = errors.New("telemetry enabled without a service name")
	ErrInvalidLoopName  = errors.New("loop.name must not be empty")

)

const errReadingConfigFmt = "reading config %s: %w"

type Config struct {
	Logging   Logging   `yaml:"logging"`
	Loop      Loop      `yaml:"loop"`
	Workers   Workers   `yaml:"workers"`
	Retry     Retry     `yaml:"retry"`
	Telemetry Telemetry `yaml:"telemetry"`
}

type Logging struct {
	JSON   bool   `yaml:"json"`
	Level  string `yaml:"level"`
	Output string `yaml:"output"`
}

type Loop struct {
	Name string `yaml:"name"`
	// FatalExit makes unhandled errors terminate the process. When false they
	// are only logged.
	FatalExit bool `yaml:"fatal_exit"`
}

type Workers struct {
	Count int `yaml:"count"`
}

type Retry struct {
	Attempts       int           `yaml:"attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type Telemetry struct {
	Enabled        bool          `yaml:"enabled"`
	ServiceName    string        `yaml:"service_name"`
	ServiceVersion string        `yaml:"service_version"`
	TracesEndpoint string        `yaml:"traces_endpoint"`
	LogsEndpoint   string        `yaml:"logs_endpoint"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Default returns a configuration usable without any file or environment.
func Default() Config {
	return Config{
		Logging: Logging{Level: "info", Output: "stdout"},
		Loop:    Loop{Name: "main", FatalExit: true},
		Workers: Workers{Count: 10},
		Retry: Retry{
			Attempts:       3,
			InitialBackoff: 100 * time.Millisecond,
			Multiplier:     2,
			MaxBackoff:     5 * time.Second,
		},
		Telemetry: Telemetry{
			ServiceName: "amp-async",
			Timeout:     10 * time.Second,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec
		if err != nil {
			return Config{}, fmt.Errorf(errReadingConfigFmt, path, err)
		}

		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Parse decodes YAML into cfg, leaving unset fields alone.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv() {
	envutil.Bool("LOG_JSON").DoWithValue(func(v bool) { c.Logging.JSON = v })
	envutil.String("LOG_LEVEL").DoWithValue(func(v string) { c.Logging.Level = v })
	envutil.String("LOG_OUTPUT").DoWithValue(func(v string) { c.Logging.Output = v })

	envutil.String("LOOP_NAME").DoWithValue(func(v string) { c.Loop.Name = v })
	envutil.Bool("LOOP_FATAL_EXIT").DoWithValue(func(v bool) { c.Loop.FatalExit = v })

	envutil.Int("BACKGROUND_WORKER_COUNT").DoWithValue(func(v int) { c.Workers.Count = v })

	envutil.Int("RETRY_ATTEMPTS").DoWithValue(func(v int) { c.Retry.Attempts = v })
	envutil.Duration("RETRY_INITIAL_BACKOFF").DoWithValue(func(v time.Duration) { c.Retry.InitialBackoff = v })
	envutil.Float64("RETRY_MULTIPLIER").DoWithValue(func(v float64) { c.Retry.Multiplier = v })
	envutil.Duration("RETRY_MAX_BACKOFF").DoWithValue(func(v time.Duration) { c.Retry.MaxBackoff = v })

	envutil.Bool("OTEL_ENABLED").DoWithValue(func(v bool) { c.Telemetry.Enabled = v })
	envutil.String("OTEL_SERVICE_NAME").DoWithValue(func(v string) { c.Telemetry.ServiceName = v })
	envutil.String("OTEL_SERVICE_VERSION").DoWithValue(func(v string) { c.Telemetry.ServiceVersion = v })
	envutil.String("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT").DoWithValue(func(v string) { c.Telemetry.TracesEndpoint = v })
	envutil.String("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT").DoWithValue(func(v string) { c.Telemetry.LogsEndpoint = v })
	envutil.Duration("OTEL_EXPORTER_OTLP_TIMEOUT").DoWithValue(func(v time.Duration) { c.Telemetry.Timeout = v })
}

// Validate checks the configuration for values no component can run with.
func (c Config) Validate() error {
	if c.Loop.Name == "" {
		return ErrInvalidLoopName
	}

	if c.Workers.Count <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers.Count)
	}

	switch c.Logging.Output {
	case "", "stdout", "stderr":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutput, c.Logging.Output)
	}

	if c.Retry.Attempts < 1 || c.Retry.InitialBackoff < 0 || c.Retry.Multiplier < 1 {
		return fmt.Errorf("%w: attempts=%d initial=%s multiplier=%g",
			ErrInvalidRetry, c.Retry.Attempts, c.Retry.InitialBackoff, c.Retry.Multiplier)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			return ErrMissingService
		}

		if c.Telemetry.TracesEndpoint == "" && c.Telemetry.LogsEndpoint == "" {
			return ErrMissingEndpoint
		}
	}

	return nil
}

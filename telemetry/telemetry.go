// Package telemetry installs OpenTelemetry trace and log providers exporting
// over OTLP/HTTP. Machines take the trace provider for their run spans and
// the logger takes the log provider to mirror slog records.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/amp-labs/amp-async/config"
	"github.com/amp-labs/amp-async/errors"
	"github.com/amp-labs/amp-async/shutdown"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// KubernetesCollector is used when running in Kubernetes without an
// explicit endpoint.
const KubernetesCollector = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"

const shutdownTimeout = 5 * time.Second

// Providers holds whatever Initialize installed. A nil field means that
// signal is not exported.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Logger *sdklog.LoggerProvider
}

// TracerProvider returns the installed provider, or a no-op one.
func (p *Providers) TracerProvider() trace.TracerProvider {
	if p == nil || p.Tracer == nil {
		return tracenoop.NewTracerProvider()
	}

	return p.Tracer
}

// LoggerProvider returns the installed provider, or nil so the logger skips
// the bridge.
func (p *Providers) LoggerProvider() otellog.LoggerProvider {
	if p == nil || p.Logger == nil {
		return nil
	}

	return p.Logger
}

// ForceFlush exports everything buffered so far.
func (p *Providers) ForceFlush(ctx context.Context) error {
	var errs errors.Collection

	if p.Tracer != nil {
		errs.Add(p.Tracer.ForceFlush(ctx))
	}

	if p.Logger != nil {
		errs.Add(p.Logger.ForceFlush(ctx))
	}

	return errs.GetError()
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs errors.Collection

	if p.Tracer != nil {
		errs.Add(p.Tracer.Shutdown(ctx))
	}

	if p.Logger != nil {
		errs.Add(p.Logger.Shutdown(ctx))
	}

	return errs.GetError()
}

// endpoints fills in the in-cluster collector for any signal left without
// an endpoint when running in Kubernetes.
func endpoints(cfg config.Telemetry) (traces, logs string) {
	traces, logs = cfg.TracesEndpoint, cfg.LogsEndpoint

	if os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
		return traces, logs
	}

	if traces == "" {
		traces = KubernetesCollector + "/v1/traces"
	}

	if logs == "" {
		logs = KubernetesCollector + "/v1/logs"
	}

	return traces, logs
}

// Initialize creates the providers cfg asks for, installs them globally and
// registers their shutdown as a shutdown hook. Disabled telemetry, or no
// endpoint at all, yields empty providers and no error.
func Initialize(ctx context.Context, cfg config.Telemetry) (*Providers, error) {
	providers := &Providers{}

	if !cfg.Enabled {
		slog.Info("OpenTelemetry is disabled")

		return providers, nil
	}

	tracesURL, logsURL := endpoints(cfg)
	if tracesURL == "" && logsURL == "" {
		slog.Warn("OpenTelemetry endpoints not configured, telemetry will be disabled")

		return providers, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if tracesURL != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(tracesURL),
			otlptracehttp.WithTimeout(cfg.Timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}

		providers.Tracer = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)

		otel.SetTracerProvider(providers.Tracer)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	if logsURL != "" {
		exporter, err := otlploghttp.New(ctx,
			otlploghttp.WithEndpointURL(logsURL),
			otlploghttp.WithTimeout(cfg.Timeout),
		)
		if err != nil {
			_ = providers.Shutdown(ctx)

			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}

		providers.Logger = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
			sdklog.WithResource(res),
		)

		global.SetLoggerProvider(providers.Logger)
	}

	shutdown.BeforeShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := providers.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down OpenTelemetry", "error", err)
		}
	})

	slog.Info("OpenTelemetry initialized",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"traces", tracesURL,
		"logs", logsURL,
	)

	return providers, nil
}

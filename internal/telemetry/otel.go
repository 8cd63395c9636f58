package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/smartrestaurant/gateway/internal/config"
)

// Tracing is the gateway's trace pipeline. A Tracing without a provider is
// disabled: spans go to the global noop tracer and Shutdown does nothing.
type Tracing struct {
	provider *sdktrace.TracerProvider
}

// Init builds the trace pipeline for cfg and installs it globally, returning its
// shutdown function. Tracing stays disabled when no OTLP endpoint is configured.
func Init(ctx context.Context, cfg config.ObservabilityConfig) (func(context.Context) error, error) {
	tracing, err := NewTracing(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tracing.Install()
	return tracing.Shutdown, nil
}

// NewTracing builds the OTLP/HTTP exporter, sampler and resource for cfg
// without touching the global tracer provider.
func NewTracing(ctx context.Context, cfg config.ObservabilityConfig) (*Tracing, error) {
	if cfg.OTLPEndpoint == "" {
		slog.Debug("tracing disabled", "reason", "telemetry.otlp_endpoint not set")
		return &Tracing{}, nil
	}

	res, err := resourceFor(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx, exporterOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP trace exporter: %w", err)
	}

	slog.Info("tracing enabled",
		"endpoint", cfg.OTLPEndpoint,
		"service", cfg.ServiceName,
		"sample_ratio", cfg.SampleRatio,
	)
	return &Tracing{
		provider: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(samplerFor(cfg.SampleRatio)),
		),
	}, nil
}

// Enabled reports whether spans are exported.
func (t *Tracing) Enabled() bool {
	return t.provider != nil
}

// Install makes t the global tracer provider and propagates W3C trace context
// and baggage to backends.
func (t *Tracing) Install() {
	if !t.Enabled() {
		return
	}
	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Shutdown flushes pending spans and stops the exporter.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}

// exporterOptions accepts either host:port or a full collector URL. A URL's
// scheme decides TLS; OTLPInsecure only applies to the host:port form.
func exporterOptions(cfg config.ObservabilityConfig) []otlptracehttp.Option {
	if strings.Contains(cfg.OTLPEndpoint, "://") {
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint)}
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

// samplerFor honours the caller's sampling decision and samples new traces by ratio.
func samplerFor(ratio float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case ratio >= 1:
		root = sdktrace.AlwaysSample()
	case ratio <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(root)
}

// resourceFor describes the gateway process. OTEL_RESOURCE_ATTRIBUTES is read
// first; the configured service attributes override it.
func resourceFor(ctx context.Context, cfg config.ObservabilityConfig) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
}

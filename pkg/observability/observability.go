// Package observability wires OpenTelemetry tracing and RED metrics (rate,
// errors, duration) around the HTTP layer. A disabled Provider is inert:
// every method is safe to call and records nothing.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OTLP pipelines.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string        // gRPC, e.g. "localhost:4317"
	SampleRate     float64       // 0.0 to 1.0
	BatchTimeout   time.Duration // span batch flush interval
	Enabled        bool
	Insecure       bool // dev only
}

// DefaultConfig samples everything, suitable for development.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "gummybear-core",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        true,
		Insecure:       false,
	}
}

// Provider owns the trace and metric pipelines and the RED instruments.
type Provider struct {
	config  *Config
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	tracer  trace.Tracer
	logger  *slog.Logger

	requests metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// New builds a Provider. With cfg.Enabled false it returns an inert provider
// and touches no network.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	p := &Provider{
		config: cfg,
		logger: slog.Default().With("component", "observability"),
	}
	if !cfg.Enabled {
		p.logger.InfoContext(ctx, "telemetry disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	if err := p.startTraces(ctx, res); err != nil {
		return nil, err
	}
	if err := p.startMetrics(ctx, res); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "telemetry initialized",
		"service", cfg.ServiceName,
		"endpoint", cfg.OTLPEndpoint,
		"sample_rate", cfg.SampleRate,
	)
	return p, nil
}

func (p *Provider) startTraces(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case p.config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRate)
	}

	p.traces = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(p.traces)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	p.tracer = p.traces.Tracer("gummybear.core",
		trace.WithInstrumentationVersion(p.config.ServiceVersion),
	)
	return nil
}

func (p *Provider) startMetrics(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("metric exporter: %w", err)
	}

	p.metrics = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)
	otel.SetMeterProvider(p.metrics)

	meter := p.metrics.Meter("gummybear.core",
		metric.WithInstrumentationVersion(p.config.ServiceVersion),
	)
	if p.requests, err = meter.Int64Counter("gummybear.requests.total",
		metric.WithDescription("Operations started"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	if p.failures, err = meter.Int64Counter("gummybear.errors.total",
		metric.WithDescription("Operations that returned an error"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}
	if p.latency, err = meter.Float64Histogram("gummybear.request.duration",
		metric.WithDescription("Operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	); err != nil {
		return err
	}
	if p.inFlight, err = meter.Int64UpDownCounter("gummybear.operations.active",
		metric.WithDescription("Operations currently in flight"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return err
	}
	return nil
}

// Shutdown flushes and stops both pipelines.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.traces != nil {
		if err := p.traces.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "trace provider shutdown", "error", err)
		}
	}
	if p.metrics != nil {
		if err := p.metrics.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "metric provider shutdown", "error", err)
		}
	}
	return nil
}

// TrackOperation opens a span and counts the operation in flight. The
// returned finish func records duration and, on a non-nil error, the failure.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if p.tracer == nil {
		return ctx, func(error) {}
	}
	start := time.Now()
	set := metric.WithAttributes(attrs...)

	ctx, span := p.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	p.inFlight.Add(ctx, 1, set)
	p.requests.Add(ctx, 1, set)

	return ctx, func(err error) {
		p.inFlight.Add(ctx, -1, set)
		p.latency.Record(ctx, time.Since(start).Seconds(), set)
		if err != nil {
			span.RecordError(err)
			p.failures.Add(ctx, 1, metric.WithAttributes(
				append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))...,
			))
		}
		span.End()
	}
}

// HTTPMiddleware traces every request and records RED metrics per route.
func (p *Provider) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attrs := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.URL.Path),
		}
		ctx, finish := p.TrackOperation(r.Context(), "http "+r.Method+" "+r.URL.Path, attrs...)
		next.ServeHTTP(w, r.WithContext(ctx))
		finish(nil)
	})
}

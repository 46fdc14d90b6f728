// Package observability wires OpenTelemetry into the transport: a tracer
// provider exporting over OTLP/HTTP, a client interceptor that opens one span
// per exchange and an interceptor recording exchange metrics.
package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/milan604/httpcore/pkg/config"
	"github.com/milan604/httpcore/pkg/logger"
	"github.com/milan604/httpcore/pkg/version"
)

// DefaultEndpoint is the local OTLP/HTTP collector.
const DefaultEndpoint = "localhost:4318"

// TracingSettings configures NewTracerProvider.
type TracingSettings struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is host:port or a full URL.
	Endpoint string
	Insecure bool
}

// NewTracerProvider exports spans in batches to an OTLP/HTTP collector.
// Extra options are appended, e.g. an additional span processor.
func NewTracerProvider(ctx context.Context, s TracingSettings, extra ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	if s.ServiceName == "" {
		s.ServiceName = "httpcore"
	}
	if s.ServiceVersion == "" {
		s.ServiceVersion = version.Version
	}
	if s.Endpoint == "" {
		s.Endpoint = DefaultEndpoint
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(s.ServiceName),
			semconv.ServiceVersionKey.String(s.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create resource: %w", err)
	}

	var exporterOpts []otlptracehttp.Option
	if strings.Contains(s.Endpoint, "://") {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpointURL(s.Endpoint))
	} else {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpoint(s.Endpoint))
	}
	if s.Insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("observability: create OTLP exporter: %w", err)
	}

	opts := append([]sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}, extra...)
	return sdktrace.NewTracerProvider(opts...), nil
}

// Observability owns the process tracer provider.
type Observability struct {
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	log            logger.LogManager
	serviceName    string
}

// New builds the tracer provider from the "tracing.*" and "service.*" keys
// and installs it, with W3C trace context propagation, as the otel global.
func New(ctx context.Context, log logger.LogManager, cfg *config.Config) (*Observability, error) {
	if log == nil {
		log = logger.NewNop()
	}
	s := TracingSettings{
		ServiceName: cfg.GetStringD(config.KeyServiceName, "httpcore"),
		Endpoint:    cfg.GetStringD(config.KeyTracingEndpoint, DefaultEndpoint),
		Insecure:    cfg.GetBool(config.KeyTracingInsecure),
	}
	tp, err := NewTracerProvider(ctx, s)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(defaultPropagator())

	log.InfoF("observability initialized: service=%s endpoint=%s", s.ServiceName, s.Endpoint)
	return &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(version.Version)),
		log:            log,
		serviceName:    s.ServiceName,
	}, nil
}

// StartSpan starts a span on the package tracer.
func (o *Observability) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, opts...)
}

// ClientTracer returns an interceptor tracing exchanges with this provider.
func (o *Observability) ClientTracer() *Tracer {
	return NewTracer(o.tracerProvider)
}

// TracerProvider exposes the underlying provider.
func (o *Observability) TracerProvider() *sdktrace.TracerProvider { return o.tracerProvider }

// Shutdown flushes pending spans, waiting at most five seconds.
func (o *Observability) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := o.tracerProvider.Shutdown(ctx); err != nil {
		o.log.ErrorF("failed to shutdown tracer provider: %v", err)
		return err
	}
	o.log.InfoF("observability shutdown completed")
	return nil
}

func defaultPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

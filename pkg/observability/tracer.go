package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/milan604/httpcore/pkg/apperr"
	corehttp "github.com/milan604/httpcore/pkg/http"
	"github.com/milan604/httpcore/pkg/version"
)

const spanKey = "httpcore.observability.span"

// Tracer opens a client span per exchange and propagates it to the backend
// through the request headers.
type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

var _ corehttp.Interceptor = (*Tracer)(nil)

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithPropagator replaces the W3C trace context + baggage propagator.
func WithPropagator(p propagation.TextMapPropagator) TracerOption {
	return func(t *Tracer) {
		if p != nil {
			t.propagator = p
		}
	}
}

func NewTracer(tp trace.TracerProvider, opts ...TracerOption) *Tracer {
	t := &Tracer{
		tracer:     tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(version.Version)),
		propagator: defaultPropagator(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tracer) InterceptRequest(ctx context.Context, req *corehttp.RequestDescriptor) error {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("%s %s", req.Method, req.Path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrHTTPMethod.String(req.Method),
			AttrURL.String(req.URL),
			AttrRequestPath.String(req.Path),
			AttrRequestID.String(req.Metadata.RequestID),
		),
	)
	t.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Metadata.Set(spanKey, span)
	return nil
}

func (t *Tracer) InterceptResponse(_ context.Context, ex *corehttp.Exchange) error {
	v, ok := ex.Request.Metadata.Value(spanKey)
	if !ok {
		return nil
	}
	span, ok := v.(trace.Span)
	if !ok {
		return nil
	}
	defer span.End()

	if status := ex.Status(); status > 0 {
		span.SetAttributes(AttrHTTPStatusCode.Int(status))
	}
	if ex.Err != nil {
		if ae, ok := apperr.As(ex.Err); ok {
			span.SetAttributes(AttrErrorCode.String(ae.Code))
		}
		RecordSpanError(span, ex.Err)
		return nil
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

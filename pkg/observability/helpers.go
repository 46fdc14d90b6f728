package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/milan604/httpcore"

// Span attribute keys set by the client interceptors.
var (
	AttrHTTPMethod     = attribute.Key("http.request.method")
	AttrHTTPStatusCode = attribute.Key("http.response.status_code")
	AttrURL            = attribute.Key("url.full")
	AttrRequestPath    = attribute.Key("httpcore.request.path")
	AttrRequestID      = attribute.Key("httpcore.request.id")
	AttrErrorCode      = attribute.Key("httpcore.error.code")
)

// AddSpanAttributes adds attributes to the span in ctx.
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// RecordSpanError marks span failed with err.
func RecordSpanError(span trace.Span, err error) {
	if span.IsRecording() && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

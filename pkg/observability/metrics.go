package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/milan604/httpcore/pkg/apperr"
	corehttp "github.com/milan604/httpcore/pkg/http"
)

const metricsStartKey = "httpcore.observability.start"

// ExchangeMetrics records exchange counts and durations through an otel
// MeterProvider.
type ExchangeMetrics struct {
	exchanges metric.Int64Counter
	duration  metric.Float64Histogram
	now       func() time.Time
}

var _ corehttp.Interceptor = (*ExchangeMetrics)(nil)

// NewExchangeMetrics creates the instruments on mp.
func NewExchangeMetrics(mp metric.MeterProvider) (*ExchangeMetrics, error) {
	meter := mp.Meter(instrumentationName)
	m := &ExchangeMetrics{now: time.Now}
	var err error

	if m.exchanges, err = meter.Int64Counter("httpcore.client.exchanges",
		metric.WithDescription("Backend calls by outcome"),
		metric.WithUnit("{exchange}")); err != nil {
		return nil, fmt.Errorf("observability: create exchanges counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("httpcore.client.duration",
		metric.WithDescription("Backend call duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	); err != nil {
		return nil, fmt.Errorf("observability: create duration histogram: %w", err)
	}
	return m, nil
}

func (m *ExchangeMetrics) InterceptRequest(_ context.Context, req *corehttp.RequestDescriptor) error {
	req.Metadata.Set(metricsStartKey, m.now())
	return nil
}

func (m *ExchangeMetrics) InterceptResponse(ctx context.Context, ex *corehttp.Exchange) error {
	attrs := []attribute.KeyValue{
		AttrHTTPMethod.String(ex.Request.Method),
		AttrHTTPStatusCode.Int(ex.Status()),
	}
	if ae, ok := apperr.As(ex.Err); ok {
		attrs = append(attrs, AttrErrorCode.String(ae.Code))
	}
	opt := metric.WithAttributes(attrs...)

	m.exchanges.Add(ctx, 1, opt)
	if v, ok := ex.Request.Metadata.Value(metricsStartKey); ok {
		if start, ok := v.(time.Time); ok {
			m.duration.Record(ctx, m.now().Sub(start).Seconds(), opt)
		}
	}
	return nil
}

package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/milan604/httpcore/pkg/apperr"
	"github.com/milan604/httpcore/pkg/config"
	corehttp "github.com/milan604/httpcore/pkg/http"
	"github.com/milan604/httpcore/pkg/observability"
)

func init() { gin.SetMode(gin.TestMode) }

// newBackend records the traceparent header of the last request.
func newBackend(t *testing.T, traceparent *atomic.Value) *httptest.Server {
	t.Helper()
	r := gin.New()
	r.GET("/projects/42", func(c *gin.Context) {
		traceparent.Store(c.GetHeader("traceparent"))
		c.JSON(http.StatusOK, gin.H{"id": 42})
	})
	r.GET("/missing", func(c *gin.Context) {
		traceparent.Store(c.GetHeader("traceparent"))
		c.JSON(http.StatusNotFound, gin.H{"message": "no such project", "code": "NOT_FOUND"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTracing(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, tp
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestTracer_SpanPerExchange(t *testing.T) {
	var traceparent atomic.Value
	srv := newBackend(t, &traceparent)
	sr, tp := newTracing(t)

	client, err := corehttp.NewClient(corehttp.Config{BaseURL: srv.URL, Timeout: 2 * time.Second},
		corehttp.WithInterceptor(observability.NewTracer(tp)))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/projects/42")
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /projects/42", span.Name())
	assert.Equal(t, trace.SpanKindClient, span.SpanKind())
	assert.Equal(t, codes.Ok, span.Status().Code)

	attrs := attrMap(span.Attributes())
	assert.Equal(t, "GET", attrs[observability.AttrHTTPMethod].AsString())
	assert.Equal(t, int64(200), attrs[observability.AttrHTTPStatusCode].AsInt64())
	assert.Equal(t, srv.URL+"/projects/42", attrs[observability.AttrURL].AsString())
	assert.NotEmpty(t, attrs[observability.AttrRequestID].AsString())

	header, _ := traceparent.Load().(string)
	require.NotEmpty(t, header, "trace context is propagated to the backend")
	assert.Contains(t, header, span.SpanContext().TraceID().String())
	assert.Contains(t, header, span.SpanContext().SpanID().String())
}

func TestTracer_ChildOfCallerSpan(t *testing.T) {
	var traceparent atomic.Value
	srv := newBackend(t, &traceparent)
	sr, tp := newTracing(t)

	client, err := corehttp.NewClient(corehttp.Config{BaseURL: srv.URL, Timeout: 2 * time.Second},
		corehttp.WithInterceptor(observability.NewTracer(tp)))
	require.NoError(t, err)

	ctx, parent := tp.Tracer("test").Start(context.Background(), "handler")
	_, err = client.Get(ctx, "/projects/42")
	require.NoError(t, err)
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), spans[0].SpanContext().TraceID())
}

func TestTracer_RecordsFailure(t *testing.T) {
	var traceparent atomic.Value
	srv := newBackend(t, &traceparent)
	sr, tp := newTracing(t)

	client, err := corehttp.NewClient(corehttp.Config{BaseURL: srv.URL, Timeout: 2 * time.Second},
		corehttp.WithInterceptor(observability.NewTracer(tp)))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/missing")
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "no such project", span.Status().Description)

	attrs := attrMap(span.Attributes())
	assert.Equal(t, int64(404), attrs[observability.AttrHTTPStatusCode].AsInt64())
	assert.Equal(t, "NOT_FOUND", attrs[observability.AttrErrorCode].AsString())
	require.Len(t, span.Events(), 1)
	assert.Equal(t, "exception", span.Events()[0].Name)
}

func TestTracer_NetworkFailureHasNoStatusAttribute(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	sr, tp := newTracing(t)

	client, err := corehttp.NewClient(corehttp.Config{BaseURL: base, Timeout: time.Second},
		corehttp.WithInterceptor(observability.NewTracer(tp)))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/projects/42")
	require.True(t, apperr.IsCode(err, apperr.CodeNetworkError))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := attrMap(spans[0].Attributes())
	_, hasStatus := attrs[observability.AttrHTTPStatusCode]
	assert.False(t, hasStatus)
	assert.Equal(t, apperr.CodeNetworkError, attrs[observability.AttrErrorCode].AsString())
}

func TestExchangeMetrics(t *testing.T) {
	var traceparent atomic.Value
	srv := newBackend(t, &traceparent)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	em, err := observability.NewExchangeMetrics(mp)
	require.NoError(t, err)
	client, err := corehttp.NewClient(corehttp.Config{BaseURL: srv.URL, Timeout: 2 * time.Second},
		corehttp.WithInterceptor(em))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.Get(ctx, "/projects/42")
	require.NoError(t, err)
	_, err = client.Get(ctx, "/projects/42")
	require.NoError(t, err)
	_, err = client.Get(ctx, "/missing")
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	sum, ok := byName["httpcore.client.exchanges"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[int64]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(observability.AttrHTTPStatusCode)
		counts[v.AsInt64()] += dp.Value
		if v.AsInt64() == 404 {
			code, _ := dp.Attributes.Value(observability.AttrErrorCode)
			assert.Equal(t, "NOT_FOUND", code.AsString())
		}
	}
	assert.Equal(t, map[int64]int64{200: 2, 404: 1}, counts)

	hist, ok := byName["httpcore.client.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	assert.Equal(t, uint64(3), total)
}

func TestNew_FromConfig(t *testing.T) {
	cfg, err := config.New(config.WithDefaults(map[string]any{
		config.KeyServiceName:     "billing",
		config.KeyTracingEndpoint: "http://127.0.0.1:4318",
		config.KeyTracingInsecure: true,
	}))
	require.NoError(t, err)

	obs, err := observability.New(context.Background(), nil, cfg)
	require.NoError(t, err)
	require.NotNil(t, obs.TracerProvider())
	assert.NotNil(t, obs.ClientTracer())

	_, span := obs.StartSpan(context.Background(), "startup")
	assert.True(t, span.SpanContext().IsValid())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = obs.Shutdown(ctx)
}

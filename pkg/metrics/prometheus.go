// Package metrics exposes Prometheus metrics for the transport. Collector is
// installed with corehttp.WithInterceptor.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/milan604/httpcore/pkg/apperr"
	corehttp "github.com/milan604/httpcore/pkg/http"
)

const startKey = "httpcore.metrics.start"

// Collector counts exchanges by method, status and error code, and observes
// their duration. Status is "0" when no response arrived; code is empty on
// success.
type Collector struct {
	exchanges *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	registry  *prometheus.Registry
	now       func() time.Time
}

var _ corehttp.Interceptor = (*Collector)(nil)

// NewCollector registers the metrics on a private registry under namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()

	exchanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_exchanges_total",
			Help:      "Total number of backend calls by outcome",
		},
		[]string{"method", "status", "code"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "client_exchange_duration_seconds",
			Help:      "Histogram of backend call durations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "client_in_flight_exchanges",
		Help:      "Current number of in-flight backend calls",
	})

	reg.MustRegister(exchanges, duration, inFlight)

	return &Collector{
		exchanges: exchanges,
		duration:  duration,
		inFlight:  inFlight,
		registry:  reg,
		now:       time.Now,
	}
}

func (c *Collector) InterceptRequest(_ context.Context, req *corehttp.RequestDescriptor) error {
	req.Metadata.Set(startKey, c.now())
	c.inFlight.Inc()
	return nil
}

func (c *Collector) InterceptResponse(_ context.Context, ex *corehttp.Exchange) error {
	c.inFlight.Dec()

	code := ""
	if ae, ok := apperr.As(ex.Err); ok {
		code = ae.Code
	}
	method := ex.Request.Method
	c.exchanges.WithLabelValues(method, strconv.Itoa(ex.Status()), code).Inc()

	if v, ok := ex.Request.Metadata.Value(startKey); ok {
		if start, ok := v.(time.Time); ok {
			c.duration.WithLabelValues(method).Observe(c.now().Sub(start).Seconds())
		}
	}
	return nil
}

// Registry is the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

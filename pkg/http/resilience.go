package http

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// errServerFailure marks a 5xx inside the breaker. The response itself still
// reaches the normalizer.
var errServerFailure = errors.New("server failure")

// BreakerSettings configures WithCircuitBreaker.
type BreakerSettings struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests allowed while probing. Defaults to 1.
	HalfOpenRequests uint32
}

// WithCircuitBreaker fails fast while the backend keeps returning 5xx or is
// unreachable. Calls rejected by an open breaker resolve to NETWORK_ERROR.
func WithCircuitBreaker(s BreakerSettings) ClientOption {
	return func(c *Client) {
		if s.MaxFailures == 0 {
			s.MaxFailures = 5
		}
		if s.Name == "" {
			s.Name = "httpcore"
		}
		c.breakerSettings = &s
	}
}

func newBreaker(s BreakerSettings, onStateChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker[*ResponseEnvelope] {
	return gobreaker.NewCircuitBreaker[*ResponseEnvelope](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: onStateChange,
		// the caller giving up says nothing about the backend
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// WithRateLimit caps outgoing calls at rps with the given burst. Waiting for a
// slot honours the context; running out of deadline resolves to TIMEOUT_ERROR.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// waitForSlot maps limiter failures onto context errors so the normalizer
// can classify them.
func waitForSlot(ctx context.Context, lim *rate.Limiter) error {
	err := lim.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("rate limit: %w", ctxErr)
	}
	if _, ok := ctx.Deadline(); ok {
		// Wait refuses up front when the deadline cannot be met.
		return fmt.Errorf("rate limit: %v: %w", err, context.DeadlineExceeded)
	}
	return fmt.Errorf("rate limit: %w", err)
}

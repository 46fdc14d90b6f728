package http

import (
	"fmt"

	"github.com/milan604/httpcore/pkg/config"
	"github.com/milan604/httpcore/pkg/logger"
)

// NewClientFromConfig builds a Client from the "http.*" section of cfg.
// Rate limiting and the circuit breaker are switched on when configured;
// opts are applied after them and can override either.
func NewClientFromConfig(log logger.LogManager, cfg *config.Config, store TokenStore, nav Navigator, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("http: nil config")
	}
	s, err := cfg.ClientSettings()
	if err != nil {
		return nil, err
	}

	var configured []ClientOption
	if s.RateLimitRPS > 0 {
		configured = append(configured, WithRateLimit(s.RateLimitRPS, s.RateLimitBurst))
	}
	if s.BreakerEnabled {
		configured = append(configured, WithCircuitBreaker(BreakerSettings{
			Name:        s.ServiceName,
			MaxFailures: s.BreakerMaxFailures,
			OpenTimeout: s.BreakerOpenTimeout,
		}))
	}

	client, err := NewClient(Config{
		BaseURL:    s.BaseURL,
		Timeout:    s.Timeout,
		TokenStore: store,
		Navigator:  nav,
		LoginURL:   s.LoginURL,
		DevMode:    s.DevMode,
		UserAgent:  s.UserAgent,
		Logger:     log,
	}, append(configured, opts...)...)
	if err != nil {
		return nil, err
	}
	if log != nil {
		log.InfoF("http client ready: base=%s timeout=%s dev=%t", s.BaseURL, s.Timeout, s.DevMode)
	}
	return client, nil
}

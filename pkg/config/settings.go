package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gvalidator "github.com/go-playground/validator/v10"

	"github.com/milan604/httpcore/pkg/utils"
)

// Keys read by ClientSettings.
const (
	KeyBaseURL         = "http.base_url"
	KeyTimeout         = "http.timeout"
	KeyLoginURL        = "http.login_url"
	KeyDevMode         = "http.dev_mode"
	KeyUserAgent       = "http.user_agent"
	KeyRateLimitRPS    = "http.rate_limit.rps"
	KeyRateLimitBurst  = "http.rate_limit.burst"
	KeyBreakerEnabled  = "http.breaker.enabled"
	KeyBreakerFailures = "http.breaker.max_failures"
	KeyBreakerOpenFor  = "http.breaker.open_timeout"
	KeyTokenStore      = "token.store"
	KeyTokenRedisAddr  = "token.redis.addr"
	KeyTokenRedisPass  = "token.redis.password"
	KeyTokenRedisKey   = "token.redis.key"
	KeyTokenRedisTTL   = "token.redis.ttl"
	KeySessionBrokers  = "session.kafka.brokers"
	KeySessionTopic    = "session.kafka.topic"
	KeyLogLevel        = "log.level"
	KeyLogEncoding     = "log.encoding"
	KeyLogFile         = "log.file"
	KeyTracingEndpoint = "tracing.otlp_endpoint"
	KeyTracingInsecure = "tracing.insecure"
	KeyServiceName     = "service.name"
)

const (
	DefaultTimeout      = 30 * time.Second
	defaultBreakerOpen  = 30 * time.Second
	defaultBreakerFails = 5
)

// ClientDefaults is meant for WithDefaults.
func ClientDefaults() map[string]any {
	return map[string]any{
		KeyTimeout:         DefaultTimeout,
		KeyLoginURL:        "/login",
		KeyDevMode:         false,
		KeyBreakerEnabled:  false,
		KeyBreakerFailures: defaultBreakerFails,
		KeyBreakerOpenFor:  defaultBreakerOpen,
		KeyTokenStore:      "memory",
		KeyTokenRedisKey:   "httpcore:access_token",
		KeySessionTopic:    "session.expired",
		KeyLogLevel:        "info",
		KeyLogEncoding:     "console",
		KeyServiceName:     "httpcore",
	}
}

// ClientSettings is the validated view of the transport's configuration.
type ClientSettings struct {
	BaseURL   string        `validate:"required,url"`
	Timeout   time.Duration `validate:"gt=0"`
	LoginURL  string        `validate:"required"`
	DevMode   bool
	UserAgent string

	RateLimitRPS   float64 `validate:"gte=0"`
	RateLimitBurst int     `validate:"gte=0"`

	BreakerEnabled     bool
	BreakerMaxFailures uint32        `validate:"required_if=BreakerEnabled true"`
	BreakerOpenTimeout time.Duration `validate:"gte=0"`

	TokenStore    string `validate:"oneof=memory redis"`
	RedisAddr     string `validate:"required_if=TokenStore redis"`
	RedisPassword string
	RedisKey      string
	RedisTTL      time.Duration `validate:"gte=0"`

	SessionBrokers []string
	SessionTopic   string `validate:"required_with=SessionBrokers"`

	TracingEndpoint string
	TracingInsecure bool
	ServiceName     string
}

var validate = gvalidator.New(gvalidator.WithRequiredStructEnabled())

// ClientSettings reads and validates the client section.
func (c *Config) ClientSettings() (ClientSettings, error) {
	s := ClientSettings{
		BaseURL:            c.GetString(KeyBaseURL),
		Timeout:            c.GetDurationD(KeyTimeout, DefaultTimeout),
		LoginURL:           c.GetStringD(KeyLoginURL, "/login"),
		DevMode:            c.GetBool(KeyDevMode),
		UserAgent:          c.GetString(KeyUserAgent),
		RateLimitRPS:       c.GetFloat64(KeyRateLimitRPS),
		RateLimitBurst:     c.GetInt(KeyRateLimitBurst),
		BreakerEnabled:     c.GetBool(KeyBreakerEnabled),
		BreakerMaxFailures: uint32(c.GetIntD(KeyBreakerFailures, defaultBreakerFails)),
		BreakerOpenTimeout: c.GetDurationD(KeyBreakerOpenFor, defaultBreakerOpen),
		TokenStore:         strings.ToLower(c.GetStringD(KeyTokenStore, "memory")),
		RedisAddr:          c.GetString(KeyTokenRedisAddr),
		RedisPassword:      c.GetString(KeyTokenRedisPass),
		RedisKey:           c.GetString(KeyTokenRedisKey),
		RedisTTL:           c.GetDuration(KeyTokenRedisTTL),
		SessionBrokers:     brokers(c.GetStringSlice(KeySessionBrokers)),
		SessionTopic:       c.GetString(KeySessionTopic),
		TracingEndpoint:    c.GetString(KeyTracingEndpoint),
		TracingInsecure:    c.GetBool(KeyTracingInsecure),
		ServiceName:        c.GetStringD(KeyServiceName, "httpcore"),
	}
	if err := validate.Struct(s); err != nil {
		return ClientSettings{}, describe(err)
	}
	return s, nil
}

// brokers accepts both a list and a single comma separated string (env vars).
func brokers(in []string) []string {
	var out []string
	for _, b := range in {
		out = append(out, utils.SplitAndTrim(b, ",")...)
	}
	return out
}

func describe(err error) error {
	var verrs gvalidator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("config: invalid client settings: %s: %w", strings.Join(msgs, "; "), err)
}

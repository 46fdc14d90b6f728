// Package http is the single transport every backend call goes through. It
// injects the bearer credential, dispatches the request and resolves to either
// the unwrapped payload or exactly one *apperr.APIError.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/milan604/httpcore/pkg/apperr"
	"github.com/milan604/httpcore/pkg/i18n"
	"github.com/milan604/httpcore/pkg/json"
	"github.com/milan604/httpcore/pkg/logger"
	"github.com/milan604/httpcore/pkg/version"
)

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config is everything NewClient needs. Only BaseURL is usually set; a nil
// TokenStore or Navigator disables the matching behaviour.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	TokenStore TokenStore
	Navigator  Navigator
	// LoginURL is handed to the Navigator on the first 401 of a request.
	LoginURL string
	// DevMode turns on request timing and request/response logging.
	DevMode    bool
	UserAgent  string
	Logger     logger.LogManager
	Translator *i18n.Translator
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        logger.LogManager
	userAgent  string
	now        func() time.Time

	limiter         *rate.Limiter
	breakerSettings *BreakerSettings
	breaker         *gobreaker.CircuitBreaker[*ResponseEnvelope]

	normalizer *errorNormalizer

	userRequest  []RequestInterceptor
	userResponse []ResponseInterceptor
	paired       int

	requestChain  []RequestInterceptor
	responseChain []ResponseInterceptor
}

// ClientOption configures the HTTP client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom http.Client. Its Timeout is overwritten by
// Config.Timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets a logger for the client; it wins over Config.Logger.
func WithLogger(l logger.LogManager) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock replaces time.Now for timing and error timestamps.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRequestInterceptor appends a request interceptor. User interceptors run
// after the built-in ones, in the order they were added.
func WithRequestInterceptor(ic RequestInterceptor) ClientOption {
	return func(c *Client) {
		c.userRequest = append(c.userRequest, ic)
	}
}

// WithResponseInterceptor appends a response interceptor. It runs after the
// error normalizer, so ex.Err is already an *apperr.APIError on failure.
func WithResponseInterceptor(ic ResponseInterceptor) ClientOption {
	return func(c *Client) {
		c.userResponse = append(c.userResponse, ic)
	}
}

// WithInterceptor installs both halves of ic.
func WithInterceptor(ic Interceptor) ClientOption {
	return func(c *Client) {
		onRequest, onResponse := pair(c.paired, ic)
		c.paired++
		c.userRequest = append(c.userRequest, onRequest)
		c.userResponse = append(c.userResponse, onResponse)
	}
}

// NewClient builds a Client and installs the built-in interceptors once.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{},
		log:        cfg.Logger,
		userAgent:  cfg.UserAgent,
		now:        time.Now,
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("http: invalid base URL %q: %w", cfg.BaseURL, err)
		}
		if !u.IsAbs() || u.Host == "" {
			return nil, fmt.Errorf("http: base URL %q must be absolute", cfg.BaseURL)
		}
		c.baseURL = u
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logger.NewNop()
	}
	if c.userAgent == "" {
		c.userAgent = version.UserAgent()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.httpClient.Timeout = timeout

	tr := cfg.Translator
	if tr == nil {
		tr = i18n.Default()
	}
	loginURL := cfg.LoginURL
	if loginURL == "" {
		loginURL = "/login"
	}
	c.normalizer = &errorNormalizer{
		store:    cfg.TokenStore,
		nav:      cfg.Navigator,
		loginURL: loginURL,
		log:      c.log,
		tr:       tr,
		now:      c.now,
	}

	if c.breakerSettings != nil {
		c.breaker = newBreaker(*c.breakerSettings, func(name string, from, to gobreaker.State) {
			c.log.WarnF("circuit breaker %s: %s -> %s", name, from, to)
		})
	}

	c.requestChain = []RequestInterceptor{
		requestIDInterceptor,
		localeInterceptor,
		authInterceptor(cfg.TokenStore),
	}
	if cfg.DevMode {
		c.requestChain = append(c.requestChain, timingInterceptor(c.now))
	}
	c.requestChain = append(c.requestChain, c.userRequest...)

	c.responseChain = append([]ResponseInterceptor{c.normalizer.intercept}, c.userResponse...)

	if cfg.DevMode {
		dev := &devInstrumentation{log: c.log, now: c.now}
		c.requestChain = append(c.requestChain, dev.onRequest)
		c.responseChain = append(c.responseChain, dev.onResponse)
	}
	return c, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return c.Do(ctx, NewRequest(http.MethodGet, path, nil, opts...))
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (any, error) {
	return c.Do(ctx, NewRequest(http.MethodPost, path, body, opts...))
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (any, error) {
	return c.Do(ctx, NewRequest(http.MethodPut, path, body, opts...))
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (any, error) {
	return c.Do(ctx, NewRequest(http.MethodPatch, path, body, opts...))
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return c.Do(ctx, NewRequest(http.MethodDelete, path, nil, opts...))
}

// Do runs one exchange. The payload is decoded per req.ResponseType; any
// failure is returned as *apperr.APIError.
func (c *Client) Do(ctx context.Context, req *RequestDescriptor) (any, error) {
	env, err := c.exchange(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodePayload(env.Body, req.ResponseType), nil
}

func (c *Client) exchange(ctx context.Context, req *RequestDescriptor) (*ResponseEnvelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return nil, apperr.New(0, apperr.CodeUnknownError, c.normalizer.message(ctx, "status.default"),
			apperr.WithTimestamp(c.normalizer.timestamp()),
			apperr.WithCause(errors.New("nil request")),
		)
	}

	ex := &Exchange{Request: req}
	hreq, err := c.prepare(ctx, req)
	if err != nil {
		ex.Err = c.invalidRequest(ctx, req, err)
	} else {
		ex.Response, ex.Err = c.dispatch(ctx, req, hreq)
	}

	runResponseChain(ctx, c.responseChain, ex)
	return c.settle(ctx, ex)
}

// prepare runs the request chain and builds the wire request.
func (c *Client) prepare(ctx context.Context, req *RequestDescriptor) (*http.Request, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, errors.New("empty request path")
	}
	req.Header = req.Metadata.dispatchHeader(req.Header)
	if req.Query == nil {
		req.Query = make(url.Values)
	}
	resolved, err := c.resolve(req.Path)
	if err != nil {
		return nil, err
	}
	req.URL = resolved

	if err := runRequestChain(ctx, c.requestChain, req); err != nil {
		return nil, err
	}

	target, err := withQuery(req.URL, req.Query)
	if err != nil {
		return nil, err
	}
	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	hreq.Header = req.Header.Clone()
	if contentType != "" && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	if hreq.Header.Get("Accept") == "" {
		hreq.Header.Set("Accept", acceptFor(req.ResponseType))
	}
	if hreq.Header.Get("Accept-Encoding") == "" {
		hreq.Header.Set("Accept-Encoding", acceptEncoding)
	}
	if hreq.Header.Get("User-Agent") == "" {
		hreq.Header.Set("User-Agent", c.userAgent)
	}
	return hreq, nil
}

// resolve joins path onto the base URL; absolute URLs are used as given.
func (c *Client) resolve(path string) (string, error) {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path, nil
	}
	if c.baseURL == nil {
		return "", fmt.Errorf("relative path %q without a base URL", path)
	}
	return strings.TrimRight(c.baseURL.String(), "/") + "/" + strings.TrimLeft(path, "/"), nil
}

func withQuery(raw string, q url.Values) (string, error) {
	if len(q) == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	merged := u.Query()
	for k, vs := range q {
		for _, v := range vs {
			merged.Add(k, v)
		}
	}
	u.RawQuery = merged.Encode()
	return u.String(), nil
}

func acceptFor(rt ResponseType) string {
	if rt == ResponseJSON {
		return "application/json, text/plain, */*"
	}
	return "*/*"
}

func (c *Client) dispatch(ctx context.Context, req *RequestDescriptor, hreq *http.Request) (*ResponseEnvelope, error) {
	if c.limiter != nil {
		if err := waitForSlot(ctx, c.limiter); err != nil {
			return nil, err
		}
	}
	if c.breaker == nil {
		return c.roundTrip(req, hreq)
	}
	env, err := c.breaker.Execute(func() (*ResponseEnvelope, error) {
		env, err := c.roundTrip(req, hreq)
		if err == nil && env.StatusCode >= http.StatusInternalServerError {
			return env, errServerFailure
		}
		return env, err
	})
	if errors.Is(err, errServerFailure) {
		return env, nil
	}
	return env, err
}

// roundTrip sends the request and reads the whole body. A body that cannot be
// read counts as no response at all.
func (c *Client) roundTrip(req *RequestDescriptor, hreq *http.Request) (*ResponseEnvelope, error) {
	resp, err := c.httpClient.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	header := resp.Header.Clone()
	header.Del("Content-Encoding")
	header.Del("Content-Length")
	return &ResponseEnvelope{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       data,
		Request:    req,
	}, nil
}

// settle enforces the contract: a 2xx envelope or one *apperr.APIError.
func (c *Client) settle(ctx context.Context, ex *Exchange) (*ResponseEnvelope, error) {
	if ex.Err == nil && !ex.Response.OK() {
		ex.Err = c.normalizer.normalize(ctx, ex)
	}
	if ex.Err == nil {
		return ex.Response, nil
	}
	if ae, ok := apperr.As(ex.Err); ok {
		return nil, ae
	}
	return nil, apperr.New(ex.Status(), apperr.CodeUnknownError, c.normalizer.message(ctx, "status.default"),
		apperr.WithTimestamp(c.normalizer.timestamp()),
		apperr.WithPath(ex.Request.Path),
		apperr.WithCause(ex.Err),
	)
}

func (c *Client) invalidRequest(ctx context.Context, req *RequestDescriptor, err error) *apperr.APIError {
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	msg := c.normalizer.tr.T(i18n.LocaleFromContext(ctx), i18n.Domain+":request.invalid", map[string]any{"reason": err.Error()})
	return apperr.New(0, apperr.CodeUnknownError, msg,
		apperr.WithTimestamp(c.normalizer.timestamp()),
		apperr.WithPath(req.Path),
		apperr.WithCause(err),
	)
}

// decodeInto is the shared tail of the typed helpers.
func decodeInto[T any](ctx context.Context, c *Client, req *RequestDescriptor) (T, error) {
	var out T
	env, err := c.exchange(ctx, req)
	if err != nil {
		return out, err
	}
	if len(bytes.TrimSpace(env.Body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(env.Body, &out); err != nil {
		return out, apperr.New(env.StatusCode, apperr.CodeUnknownError, c.normalizer.message(ctx, "response.invalid"),
			apperr.WithTimestamp(c.normalizer.timestamp()),
			apperr.WithPath(req.Path),
			apperr.WithCause(err),
		)
	}
	return out, nil
}

// GetAs performs a GET and decodes the JSON payload into T.
func GetAs[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (T, error) {
	return decodeInto[T](ctx, c, NewRequest(http.MethodGet, path, nil, opts...))
}

// PostAs performs a POST and decodes the JSON payload into T.
func PostAs[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	return decodeInto[T](ctx, c, NewRequest(http.MethodPost, path, body, opts...))
}

// PutAs performs a PUT and decodes the JSON payload into T.
func PutAs[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	return decodeInto[T](ctx, c, NewRequest(http.MethodPut, path, body, opts...))
}

// PatchAs performs a PATCH and decodes the JSON payload into T.
func PatchAs[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	return decodeInto[T](ctx, c, NewRequest(http.MethodPatch, path, body, opts...))
}

// DeleteAs performs a DELETE and decodes the JSON payload into T.
func DeleteAs[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (T, error) {
	return decodeInto[T](ctx, c, NewRequest(http.MethodDelete, path, nil, opts...))
}

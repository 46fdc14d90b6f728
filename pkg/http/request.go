package http

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ResponseType selects how a successful body is turned into a payload.
type ResponseType int

const (
	// ResponseJSON decodes the body as JSON into any. Bodies that are not valid
	// JSON come back as string.
	ResponseJSON ResponseType = iota
	// ResponseBlob returns the raw body as []byte.
	ResponseBlob
	// ResponseText returns the body as string.
	ResponseText
)

func (t ResponseType) String() string {
	switch t {
	case ResponseBlob:
		return "blob"
	case ResponseText:
		return "text"
	default:
		return "json"
	}
}

// Metadata is per-request bookkeeping shared by the interceptors. It must not
// be copied.
type Metadata struct {
	// RequestStartTime is only stamped in dev mode.
	RequestStartTime time.Time
	RequestID        string

	retried atomic.Bool

	mu     sync.Mutex
	values map[string]any
	// callerHeader is the header set as the caller built it, before any
	// interceptor touched it.
	callerHeader http.Header
}

// Retried reports whether the 401 handling already ran for this request.
func (m *Metadata) Retried() bool { return m.retried.Load() }

// MarkRetried flips the retried flag. It returns false when the flag was
// already set, so exactly one caller wins.
func (m *Metadata) MarkRetried() bool { return m.retried.CompareAndSwap(false, true) }

// Set stores interceptor-scoped state.
func (m *Metadata) Set(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]any)
	}
	m.values[key] = v
}

// Value returns state stored with Set.
func (m *Metadata) Value(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// dispatchHeader snapshots h on the first dispatch and returns a fresh copy of
// that snapshot on every dispatch, so interceptor edits never leak into the
// next one.
func (m *Metadata) dispatchHeader(h http.Header) http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callerHeader == nil {
		m.callerHeader = h.Clone()
		if m.callerHeader == nil {
			m.callerHeader = make(http.Header)
		}
	}
	return m.callerHeader.Clone()
}

// take removes key and reports whether it was present.
func (m *Metadata) take(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	delete(m.values, key)
	return ok
}

// RequestDescriptor is the mutable description of one outgoing call. It is
// owned by a single in-flight call; interceptors edit it in place. Header is
// reset to what the caller set before each dispatch. A descriptor must not be
// copied after first use: Metadata holds a mutex and the retried flag.
type RequestDescriptor struct {
	Method string
	// Path is what the caller passed; URL is Path resolved against the base URL.
	Path         string
	URL          string
	Header       http.Header
	Query        url.Values
	Body         any
	ResponseType ResponseType
	Metadata     Metadata
}

// RequestOption customizes a descriptor.
type RequestOption func(*RequestDescriptor)

// WithHeader sets a single header.
func WithHeader(key, value string) RequestOption {
	return func(r *RequestDescriptor) { r.Header.Set(key, value) }
}

// WithHeaders sets several headers.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *RequestDescriptor) {
		for k, v := range headers {
			r.Header.Set(k, v)
		}
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(r *RequestDescriptor) { r.Query.Add(key, value) }
}

// WithQueryParams merges url.Values into the query.
func WithQueryParams(params url.Values) RequestOption {
	return func(r *RequestDescriptor) {
		for k, vs := range params {
			for _, v := range vs {
				r.Query.Add(k, v)
			}
		}
	}
}

// WithResponseType overrides the default JSON decoding.
func WithResponseType(t ResponseType) RequestOption {
	return func(r *RequestDescriptor) { r.ResponseType = t }
}

// NewRequest builds a descriptor for Client.Do. Keep the returned value to
// re-dispatch it later: the retried flag travels with it.
func NewRequest(method, path string, body any, opts ...RequestOption) *RequestDescriptor {
	r := &RequestDescriptor{
		Method: strings.ToUpper(method),
		Path:   path,
		Header: make(http.Header),
		Query:  make(url.Values),
		Body:   body,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ResponseEnvelope is a received response with its body already read and
// decompressed.
type ResponseEnvelope struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    *RequestDescriptor
}

// OK reports a 2xx status.
func (r *ResponseEnvelope) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Exchange is what response interceptors see: the request, the response if
// one arrived, and the error so far.
type Exchange struct {
	Request  *RequestDescriptor
	Response *ResponseEnvelope
	Err      error
}

// Succeeded is true only for a 2xx response with no error.
func (e *Exchange) Succeeded() bool {
	return e.Err == nil && e.Response.OK()
}

// Status returns the response status or 0 when nothing was received.
func (e *Exchange) Status() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

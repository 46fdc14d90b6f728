package http_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/milan604/httpcore/pkg/apperr"
	corehttp "github.com/milan604/httpcore/pkg/http"
	"github.com/milan604/httpcore/pkg/logger"
)

type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.steps = append(r.steps, s)
	r.mu.Unlock()
}

type pairedInterceptor struct {
	name string
	rec  *recorder
	fail error
}

func (p *pairedInterceptor) InterceptRequest(context.Context, *corehttp.RequestDescriptor) error {
	p.rec.add(p.name + ".request")
	return p.fail
}

func (p *pairedInterceptor) InterceptResponse(context.Context, *corehttp.Exchange) error {
	p.rec.add(p.name + ".response")
	return nil
}

func TestInterceptorOrder(t *testing.T) {
	srv := newBackend(t, func(r *gin.Engine) {
		r.GET("/missing", statusHandler(http.StatusNotFound, nil))
	})
	rec := &recorder{}
	client := newClient(t, srv.URL, func(s *clientSetup) {
		s.cfg.TokenStore = &fakeStore{token: "tok"}
		s.opts = append(s.opts,
			corehttp.WithRequestInterceptor(func(_ context.Context, req *corehttp.RequestDescriptor) error {
				// built-ins already ran
				assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
				assert.NotEmpty(t, req.Metadata.RequestID)
				rec.add("first.request")
				return nil
			}),
			corehttp.WithInterceptor(&pairedInterceptor{name: "paired", rec: rec}),
			corehttp.WithResponseInterceptor(func(_ context.Context, ex *corehttp.Exchange) error {
				// the normalizer ran first
				ae, ok := apperr.As(ex.Err)
				assert.True(t, ok)
				assert.Equal(t, http.StatusNotFound, ae.Status)
				rec.add("last.response")
				return nil
			}),
		)
	})

	_, err := client.Get(context.Background(), "/missing")
	require.Error(t, err)
	assert.Equal(t, []string{"first.request", "paired.request", "paired.response", "last.response"}, rec.steps)
}

func TestRequestInterceptorFailure(t *testing.T) {
	var hits int
	srv := newBackend(t, func(r *gin.Engine) {
		r.GET("/x", func(c *gin.Context) { hits++; c.Status(http.StatusOK) })
	})
	rec := &recorder{}
	var sawErr error
	client := newClient(t, srv.URL, func(s *clientSetup) {
		s.opts = append(s.opts,
			corehttp.WithInterceptor(&pairedInterceptor{name: "before", rec: rec}),
			corehttp.WithInterceptor(&pairedInterceptor{name: "failing", rec: rec, fail: errBoom}),
			corehttp.WithInterceptor(&pairedInterceptor{name: "after", rec: rec}),
			corehttp.WithResponseInterceptor(func(_ context.Context, ex *corehttp.Exchange) error {
				sawErr = ex.Err
				return nil
			}),
		)
	})

	_, err := client.Get(context.Background(), "/x")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeUnknownError, ae.Code)
	assert.Equal(t, 0, ae.Status)
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, hits)

	// only interceptors whose request side succeeded see the response
	assert.Equal(t, []string{"before.request", "failing.request", "before.response"}, rec.steps)
	assert.Same(t, ae, sawErr)
}

func TestResponseInterceptorError(t *testing.T) {
	srv := newBackend(t, func(r *gin.Engine) {
		r.GET("/ok", statusHandler(http.StatusOK, gin.H{"fine": true}))
		r.GET("/teapot", statusHandler(http.StatusTeapot, nil))
	})
	client := newClient(t, srv.URL, func(s *clientSetup) {
		s.opts = append(s.opts, corehttp.WithResponseInterceptor(func(_ context.Context, ex *corehttp.Exchange) error {
			if ex.Request.Path == "/ok" {
				return errBoom
			}
			// clearing the error does not turn a failure into a success
			ex.Err = nil
			return nil
		}))
	})

	_, err := client.Get(context.Background(), "/ok")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeUnknownError, ae.Code)
	assert.Equal(t, http.StatusOK, ae.Status)
	assert.ErrorIs(t, err, errBoom)

	_, err = client.Get(context.Background(), "/teapot")
	assert.Equal(t, http.StatusTeapot, apperr.StatusOf(err))
}

func TestResponseInterceptorCanReplaceWithAPIError(t *testing.T) {
	srv := newBackend(t, func(r *gin.Engine) {
		r.GET("/legacy", statusHandler(http.StatusOK, gin.H{"ok": false, "reason": "quota"}))
	})
	quota := apperr.New(http.StatusTooManyRequests, "QUOTA", "quota exceeded")
	client := newClient(t, srv.URL, func(s *clientSetup) {
		s.opts = append(s.opts, corehttp.WithResponseInterceptor(func(_ context.Context, ex *corehttp.Exchange) error {
			if ex.Succeeded() && string(ex.Response.Body) == `{"ok":false,"reason":"quota"}` {
				return quota
			}
			return nil
		}))
	})

	_, err := client.Get(context.Background(), "/legacy")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Same(t, quota, ae)
}

func TestDevMode_LogsWithoutChangingResults(t *testing.T) {
	srv := newBackend(t, func(r *gin.Engine) {
		r.POST("/orders", statusHandler(http.StatusCreated, gin.H{"id": 9}))
		r.GET("/missing", statusHandler(http.StatusNotFound, nil))
	})
	log, logs := newObservedLogger(zapcore.DebugLevel)
	dev := newClient(t, srv.URL, func(s *clientSetup) {
		s.cfg.DevMode = true
		s.cfg.Logger = log
	})
	plain := newClient(t, srv.URL)
	ctx := context.Background()

	devGot, devErr := dev.Post(ctx, "/orders", map[string]int{"qty": 2})
	plainGot, plainErr := plain.Post(ctx, "/orders", map[string]int{"qty": 2})
	require.NoError(t, devErr)
	require.NoError(t, plainErr)
	assert.Equal(t, plainGot, devGot)

	_, devErr = dev.Get(ctx, "/missing")
	_, plainErr = plain.Get(ctx, "/missing")
	assert.Equal(t, plainErr, devErr)

	var messages []string
	for _, e := range logs.All() {
		messages = append(messages, e.Message)
	}
	require.Len(t, messages, 4)
	assert.Contains(t, messages[0], "→ POST "+srv.URL+"/orders")
	assert.Contains(t, messages[0], `body={"qty":2}`)
	assert.Contains(t, messages[1], "← 201 POST "+srv.URL+"/orders in 0s")
	assert.Contains(t, messages[3], "✗ 404 GET "+srv.URL+"/missing")
	assert.Contains(t, messages[3], "code=UNKNOWN_ERROR")
}

func TestDevMode_StampsStartTimeOnlyInDevMode(t *testing.T) {
	srv := newBackend(t, func(r *gin.Engine) {
		r.GET("/x", statusHandler(http.StatusOK, nil))
	})
	ctx := context.Background()

	req := corehttp.NewRequest(http.MethodGet, "/x", nil)
	_, err := newClient(t, srv.URL).Do(ctx, req)
	require.NoError(t, err)
	assert.True(t, req.Metadata.RequestStartTime.IsZero())

	req = corehttp.NewRequest(http.MethodGet, "/x", nil)
	_, err = newClient(t, srv.URL, func(s *clientSetup) { s.cfg.DevMode = true }).Do(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, req.Metadata.RequestStartTime)
}

// panickyLogger blows up on every formatted log line.
type panickyLogger struct{ logger.LogManager }

func (panickyLogger) InfoFCtx(context.Context, string, ...any)  { panic("log sink down") }
func (panickyLogger) ErrorFCtx(context.Context, string, ...any) { panic("log sink down") }

func TestDevMode_LoggingFailureIsIsolated(t *testing.T) {
	srv := newBackend(t, func(r *gin.Engine) {
		r.GET("/ok", statusHandler(http.StatusOK, gin.H{"ok": true}))
		r.GET("/missing", statusHandler(http.StatusNotFound, nil))
	})
	client := newClient(t, srv.URL, func(s *clientSetup) {
		s.cfg.DevMode = true
		s.cfg.Logger = panickyLogger{logger.NewNop()}
	})

	got, err := client.Get(context.Background(), "/ok")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, got)

	_, err = client.Get(context.Background(), "/missing")
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}

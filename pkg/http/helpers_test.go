package http_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	corehttp "github.com/milan604/httpcore/pkg/http"
	"github.com/milan604/httpcore/pkg/logger"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

const fixedStamp = "2024-03-01T12:30:00.000Z"

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore records every interaction with the token store.
type fakeStore struct {
	mu        sync.Mutex
	token     string
	getErr    error
	removeErr error
	removed   int
}

func (s *fakeStore) GetToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.getErr
}

func (s *fakeStore) RemoveToken(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed++
	if s.removeErr != nil {
		return s.removeErr
	}
	s.token = ""
	return nil
}

func (s *fakeStore) setToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *fakeStore) removals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}

// fakeNavigator records redirects.
type fakeNavigator struct {
	mu        sync.Mutex
	redirects []corehttp.LoginRedirect
	err       error
}

func (n *fakeNavigator) RedirectToLogin(_ context.Context, r corehttp.LoginRedirect) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, r)
	return n.err
}

func (n *fakeNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.redirects)
}

func newBackend(t *testing.T, register func(r *gin.Engine)) *httptest.Server {
	t.Helper()
	r := gin.New()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newObservedLogger(level zapcore.Level) (logger.LogManager, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return logger.FromZap(zap.New(core)), logs
}

type clientSetup struct {
	cfg  corehttp.Config
	opts []corehttp.ClientOption
}

func newClient(t *testing.T, baseURL string, mutate ...func(*clientSetup)) *corehttp.Client {
	t.Helper()
	s := &clientSetup{
		cfg:  corehttp.Config{BaseURL: baseURL, Timeout: 2 * time.Second},
		opts: []corehttp.ClientOption{corehttp.WithClock(func() time.Time { return fixedNow })},
	}
	for _, m := range mutate {
		m(s)
	}
	c, err := corehttp.NewClient(s.cfg, s.opts...)
	require.NoError(t, err)
	return c
}

var errBoom = errors.New("boom")

// statusHandler answers with a fixed status and optional JSON body.
func statusHandler(status int, body any) gin.HandlerFunc {
	return func(c *gin.Context) {
		if body == nil {
			c.Status(status)
			return
		}
		c.JSON(status, body)
	}
}

// headerRecorder remembers one header of every request it serves.
type headerRecorder struct {
	mu   sync.Mutex
	name string
	seen []string
}

func (h *headerRecorder) handler(status int) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.mu.Lock()
		h.seen = append(h.seen, c.GetHeader(h.name))
		h.mu.Unlock()
		c.Status(status)
	}
}

func (h *headerRecorder) values() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

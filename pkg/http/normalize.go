package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/milan604/httpcore/pkg/apperr"
	"github.com/milan604/httpcore/pkg/i18n"
	"github.com/milan604/httpcore/pkg/logger"
	"github.com/milan604/httpcore/pkg/utils"
)

// errorNormalizer turns every failed exchange into exactly one *apperr.APIError.
// It is the first response interceptor.
type errorNormalizer struct {
	store    TokenStore
	nav      Navigator
	loginURL string
	log      logger.LogManager
	tr       *i18n.Translator
	now      func() time.Time
}

func (n *errorNormalizer) intercept(ctx context.Context, ex *Exchange) error {
	if ex.Succeeded() {
		return nil
	}
	if ae, ok := apperr.As(ex.Err); ok {
		ex.Err = ae
		return nil
	}
	ex.Err = n.normalize(ctx, ex)
	return nil
}

func (n *errorNormalizer) normalize(ctx context.Context, ex *Exchange) *apperr.APIError {
	req := ex.Request

	if ex.Response == nil {
		cause := ex.Err
		if cause == nil {
			cause = errors.New("no response received")
		}
		if isTimeout(cause) {
			return apperr.New(0, apperr.CodeTimeoutError, n.message(ctx, "timeout"),
				apperr.WithTimestamp(n.timestamp()),
				apperr.WithPath(req.Path),
				apperr.WithCause(cause),
			)
		}
		opts := []apperr.Option{
			apperr.WithTimestamp(n.timestamp()),
			apperr.WithPath(req.Path),
			apperr.WithCause(cause),
		}
		key := "network"
		if errors.Is(cause, gobreaker.ErrOpenState) || errors.Is(cause, gobreaker.ErrTooManyRequests) {
			key = "circuit_open"
			opts = append(opts, apperr.WithDetails(map[string]any{"reason": "circuit_open"}))
		}
		return apperr.New(0, apperr.CodeNetworkError, n.message(ctx, key), opts...)
	}

	status := ex.Response.StatusCode
	backend := apperr.ParseBackendError(ex.Response.Body)

	switch {
	case status == http.StatusUnauthorized && req.Metadata.MarkRetried():
		n.expireSession(ctx, req)
		return n.build(ctx, req, status, backend, apperr.CodeUnauthorized)
	case status == http.StatusForbidden:
		n.log.WarnFCtx(ctx, "access denied: %s %s (request %s): %s",
			req.Method, req.Path, req.Metadata.RequestID, utils.Coalesce(backend.Message, backend.Code, "no reason given"))
	}
	return n.build(ctx, req, status, backend, apperr.CodeUnknownError)
}

// expireSession runs once per descriptor. Failures here are logged and never
// replace the 401 error the caller receives.
func (n *errorNormalizer) expireSession(ctx context.Context, req *RequestDescriptor) {
	if n.store != nil {
		if err := n.store.RemoveToken(ctx); err != nil {
			n.log.ErrorFCtx(ctx, "remove token after 401 on %s %s: %v", req.Method, req.Path, err)
		}
	}
	if n.nav == nil {
		return
	}
	redirect := LoginRedirect{LoginURL: n.loginURL, From: req.Path, RequestID: req.Metadata.RequestID}
	if err := n.nav.RedirectToLogin(ctx, redirect); err != nil {
		n.log.ErrorFCtx(ctx, "redirect to %s after 401 on %s %s: %v", n.loginURL, req.Method, req.Path, err)
		return
	}
	n.log.InfoFCtx(ctx, "session expired on %s %s, redirected to %s", req.Method, req.Path, n.loginURL)
}

// build prefers whatever the backend said and falls back to the localized
// status table.
func (n *errorNormalizer) build(ctx context.Context, req *RequestDescriptor, status int, be apperr.BackendError, defaultCode string) *apperr.APIError {
	message := be.Message
	if message == "" {
		message = n.statusMessage(ctx, status)
	}
	return apperr.New(status, utils.Coalesce(be.Code, defaultCode), message,
		apperr.WithDetails(be.Details),
		apperr.WithValidationErrors(be.ValidationErrors),
		apperr.WithTimestamp(utils.Coalesce(be.Timestamp, n.timestamp())),
		apperr.WithPath(utils.Coalesce(be.Path, req.Path)),
	)
}

func (n *errorNormalizer) statusMessage(ctx context.Context, status int) string {
	if msg, ok := n.tr.Message(ctx, i18n.Domain+":status."+strconv.Itoa(status), nil); ok {
		return msg
	}
	return n.message(ctx, "status.default")
}

func (n *errorNormalizer) message(ctx context.Context, key string) string {
	msg, _ := n.tr.Message(ctx, i18n.Domain+":"+key, nil)
	return msg
}

func (n *errorNormalizer) timestamp() string {
	return utils.FormatISO8601(n.now())
}

// isTimeout covers context deadlines, http.Client.Timeout and net.Error timeouts.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

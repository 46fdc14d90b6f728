package http

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/milan604/httpcore/pkg/apperr"
	"github.com/milan604/httpcore/pkg/json"
	"github.com/milan604/httpcore/pkg/logger"
	"github.com/milan604/httpcore/pkg/utils"
)

const devBodyLimit = 2048

// devInstrumentation logs both sides of every exchange in dev mode. It only
// observes: panics are swallowed and nothing it does reaches the caller.
type devInstrumentation struct {
	log logger.LogManager
	now func() time.Time
}

func (d *devInstrumentation) onRequest(ctx context.Context, req *RequestDescriptor) error {
	defer d.swallow()
	d.log.InfoFCtx(ctx, "→ %s %s params=%v body=%s",
		req.Method, req.URL, map[string][]string(req.Query), describeBody(req.Body))
	return nil
}

func (d *devInstrumentation) onResponse(ctx context.Context, ex *Exchange) error {
	defer d.swallow()
	req := ex.Request
	elapsed := "n/a"
	if !req.Metadata.RequestStartTime.IsZero() {
		elapsed = d.now().Sub(req.Metadata.RequestStartTime).Round(time.Microsecond).String()
	}

	if ex.Succeeded() {
		d.log.InfoFCtx(ctx, "← %d %s %s in %s body=%s",
			ex.Response.StatusCode, req.Method, req.URL, elapsed, utils.Truncate(string(ex.Response.Body), devBodyLimit, true))
		return nil
	}
	if ae, ok := apperr.As(ex.Err); ok {
		d.log.ErrorFCtx(ctx, "✗ %d %s %s in %s code=%s message=%q",
			ae.Status, req.Method, req.URL, elapsed, ae.Code, ae.Message)
		return nil
	}
	d.log.ErrorFCtx(ctx, "✗ %d %s %s in %s: %v", ex.Status(), req.Method, req.URL, elapsed, ex.Err)
	return nil
}

func (d *devInstrumentation) swallow() {
	_ = recover()
}

func describeBody(body any) string {
	switch b := body.(type) {
	case nil:
		return "<none>"
	case string:
		return utils.Truncate(b, devBodyLimit, true)
	case []byte:
		return utils.Truncate(string(b), devBodyLimit, true)
	case *RawBody:
		if b == nil {
			return "<none>"
		}
		return "<" + b.ContentType + ">"
	case io.Reader:
		return "<stream>"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Sprintf("%+v", b)
		}
		return utils.Truncate(string(data), devBodyLimit, true)
	}
}

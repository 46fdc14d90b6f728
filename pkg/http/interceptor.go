package http

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/milan604/httpcore/pkg/i18n"
	"github.com/milan604/httpcore/pkg/logger"
)

// RequestInterceptor runs before dispatch and may edit the descriptor.
// Returning an error aborts the call.
type RequestInterceptor func(ctx context.Context, req *RequestDescriptor) error

// ResponseInterceptor runs after dispatch, in registration order. It may
// inspect or replace ex.Err; a returned error replaces ex.Err.
type ResponseInterceptor func(ctx context.Context, ex *Exchange) error

// Interceptor is implemented by components that hook both sides of an
// exchange, such as metrics or tracing. InterceptResponse is called for every
// exchange whose InterceptRequest ran, including aborted ones.
type Interceptor interface {
	InterceptRequest(ctx context.Context, req *RequestDescriptor) error
	InterceptResponse(ctx context.Context, ex *Exchange) error
}

// HeaderRequestID carries the request id to the backend.
const HeaderRequestID = "X-Request-ID"

// requestIDInterceptor reuses the caller's request id when there is one. A
// re-dispatched descriptor keeps the id of its first dispatch.
func requestIDInterceptor(ctx context.Context, req *RequestDescriptor) error {
	id := req.Header.Get(HeaderRequestID)
	if id == "" {
		id = req.Metadata.RequestID
	}
	if id == "" {
		id = logger.RequestIDFromContext(ctx)
	}
	if id == "" {
		id = uuid.NewString()
	}
	req.Metadata.RequestID = id
	req.Header.Set(HeaderRequestID, id)
	return nil
}

func localeInterceptor(ctx context.Context, req *RequestDescriptor) error {
	if loc := i18n.LocaleFromContext(ctx); loc != "" && req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", loc)
	}
	return nil
}

func timingInterceptor(now func() time.Time) RequestInterceptor {
	return func(_ context.Context, req *RequestDescriptor) error {
		req.Metadata.RequestStartTime = now()
		return nil
	}
}

// pair splits an Interceptor into its two halves. The response half only
// runs when the request half ran and succeeded for the same descriptor.
func pair(idx int, ic Interceptor) (RequestInterceptor, ResponseInterceptor) {
	key := fmt.Sprintf("httpcore.interceptor.%d", idx)
	onRequest := func(ctx context.Context, req *RequestDescriptor) error {
		if err := ic.InterceptRequest(ctx, req); err != nil {
			return err
		}
		req.Metadata.Set(key, true)
		return nil
	}
	onResponse := func(ctx context.Context, ex *Exchange) error {
		if !ex.Request.Metadata.take(key) {
			return nil
		}
		return ic.InterceptResponse(ctx, ex)
	}
	return onRequest, onResponse
}

func runRequestChain(ctx context.Context, chain []RequestInterceptor, req *RequestDescriptor) error {
	for _, ic := range chain {
		if err := ic(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseChain gives every interceptor a turn, even after an earlier one
// failed; a returned error becomes the exchange error.
func runResponseChain(ctx context.Context, chain []ResponseInterceptor, ex *Exchange) {
	for _, ic := range chain {
		if err := ic(ctx, ex); err != nil {
			ex.Err = err
		}
	}
}

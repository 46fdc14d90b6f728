package http

import (
	"context"
)

// HTTPClient is the caller-facing surface of Client, for mocking in services
// built on top of it.
type HTTPClient interface {
	Do(ctx context.Context, req *RequestDescriptor) (any, error)

	Get(ctx context.Context, path string, opts ...RequestOption) (any, error)
	Post(ctx context.Context, path string, body any, opts ...RequestOption) (any, error)
	Put(ctx context.Context, path string, body any, opts ...RequestOption) (any, error)
	Patch(ctx context.Context, path string, body any, opts ...RequestOption) (any, error)
	Delete(ctx context.Context, path string, opts ...RequestOption) (any, error)
}

// Ensure Client implements HTTPClient interface.
var _ HTTPClient = (*Client)(nil)

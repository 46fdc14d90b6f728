package http

import (
	"context"
	"fmt"
)

// TokenStore holds the bearer credential. GetToken returns "" when no token is
// stored; that is not an error.
type TokenStore interface {
	GetToken(ctx context.Context) (string, error)
	RemoveToken(ctx context.Context) error
}

// LoginRedirect describes the navigation triggered by an authentication failure.
type LoginRedirect struct {
	LoginURL string
	// From is the path of the request that was rejected.
	From      string
	RequestID string
}

// Navigator sends the user to the login entry point.
type Navigator interface {
	RedirectToLogin(ctx context.Context, r LoginRedirect) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, r LoginRedirect) error

func (f NavigatorFunc) RedirectToLogin(ctx context.Context, r LoginRedirect) error {
	return f(ctx, r)
}

const bearerPrefix = "Bearer "

// authInterceptor attaches the stored credential. Absence leaves the headers
// untouched; a store failure aborts the call.
func authInterceptor(store TokenStore) RequestInterceptor {
	return func(ctx context.Context, req *RequestDescriptor) error {
		if store == nil {
			return nil
		}
		token, err := store.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", bearerPrefix+token)
		}
		return nil
	}
}

package apperr

import (
	"net/http"
)

// IsRetryable says whether err is worth another attempt. The transport never
// retries on its own; callers owning a retry policy can use this.
func IsRetryable(err error) bool {
	ae, ok := As(err)
	if !ok {
		return false
	}
	switch ae.Code {
	case CodeNetworkError, CodeTimeoutError:
		return true
	}
	switch ae.Status {
	case http.StatusRequestTimeout, // 408
		http.StatusTooEarly,            // 425
		http.StatusTooManyRequests,     // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	}
	return false
}

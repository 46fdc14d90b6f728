package apperr

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/milan604/httpcore/pkg/json"
)

// BackendError is the error body a backend may send with a non-2xx response.
// Every field is optional; empty strings and nil values mean "not supplied".
type BackendError struct {
	Message          string
	Code             string
	Details          any
	Timestamp        string
	Path             string
	ValidationErrors any
}

// ParseBackendError extracts the known fields from a raw error body.
// Top-level fields win; a nested {"error": {...}} object is consulted for
// message and code when the top level has none. Non-JSON bodies yield a zero value.
func ParseBackendError(body []byte) BackendError {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || (trimmed[0] != '{') || !gjson.Valid(trimmed) {
		return BackendError{}
	}

	root := gjson.Parse(trimmed)
	be := BackendError{
		Message:          scalar(root.Get("message")),
		Code:             scalar(root.Get("code")),
		Details:          decode(root.Get("details")),
		Timestamp:        scalar(root.Get("timestamp")),
		Path:             scalar(root.Get("path")),
		ValidationErrors: decode(root.Get("validationErrors")),
	}

	if nested := root.Get("error"); nested.IsObject() {
		if be.Message == "" {
			be.Message = scalar(nested.Get("message"))
		}
		if be.Code == "" {
			be.Code = scalar(nested.Get("code"))
		}
		if be.Details == nil {
			be.Details = decode(nested.Get("details"))
		}
	}
	return be
}

// scalar returns strings and numbers as text; objects, arrays and null are ignored.
func scalar(r gjson.Result) string {
	switch r.Type {
	case gjson.String, gjson.Number:
		return strings.TrimSpace(r.String())
	default:
		return ""
	}
}

func decode(r gjson.Result) any {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(r.Raw), &v); err != nil {
		return r.String()
	}
	return v
}

package http

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/milan604/httpcore/pkg/json"
)

// RawBody is sent as-is with its content type. Use it for uploads and any
// payload that must not be JSON encoded.
type RawBody struct {
	ContentType string
	Reader      io.Reader
}

// MultipartFile is one file part of a multipart body.
type MultipartFile struct {
	Field    string
	Filename string
	Content  io.Reader
}

// NewMultipartBody builds a multipart/form-data body from plain fields and files.
func NewMultipartBody(fields map[string]string, files ...MultipartFile) (*RawBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("multipart field %q: %w", k, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, fmt.Errorf("multipart file %q: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("multipart file %q: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &RawBody{ContentType: w.FormDataContentType(), Reader: &buf}, nil
}

// encodeBody returns the wire body and its default content type. Strings,
// byte slices and readers pass through untouched; everything else is JSON.
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *RawBody:
		if b == nil {
			return nil, "", nil
		}
		return b.Reader, b.ContentType, nil
	case []byte:
		return bytes.NewReader(b), "application/octet-stream", nil
	case string:
		return strings.NewReader(b), "text/plain; charset=utf-8", nil
	case url.Values:
		return strings.NewReader(b.Encode()), "application/x-www-form-urlencoded", nil
	case io.Reader:
		return b, "application/octet-stream", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// decodePayload unwraps a successful body according to the response type.
func decodePayload(body []byte, rt ResponseType) any {
	switch rt {
	case ResponseBlob:
		if body == nil {
			return []byte{}
		}
		return body
	case ResponseText:
		return string(body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

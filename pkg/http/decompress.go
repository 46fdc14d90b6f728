package http

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// acceptEncoding is advertised on every request. Setting it ourselves turns
// off net/http's transparent gzip, so readBody handles all four.
const acceptEncoding = "gzip, deflate, br, zstd"

var gzipReaderPool = sync.Pool{
	New: func() any { return new(gzip.Reader) },
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		d, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return d
	},
}

// maxBodyBytes bounds what we buffer from a single response.
const maxBodyBytes = 64 << 20

// readBody reads and decodes the response body according to Content-Encoding.
// Stacked encodings ("gzip, br") are undone in reverse order.
func readBody(body io.Reader, contentEncoding string) ([]byte, error) {
	encodings := strings.Split(contentEncoding, ",")
	r := body
	var closers []func()
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	for i := len(encodings) - 1; i >= 0; i-- {
		switch strings.ToLower(strings.TrimSpace(encodings[i])) {
		case "", "identity":
		case "gzip", "x-gzip":
			gr := gzipReaderPool.Get().(*gzip.Reader)
			if err := gr.Reset(r); err != nil {
				gzipReaderPool.Put(gr)
				return nil, fmt.Errorf("gzip: %w", err)
			}
			closers = append(closers, func() { _ = gr.Close(); gzipReaderPool.Put(gr) })
			r = gr
		case "deflate":
			fr := flate.NewReader(r)
			closers = append(closers, func() { _ = fr.Close() })
			r = fr
		case "br":
			r = brotli.NewReader(r)
		case "zstd":
			d, ok := zstdDecoderPool.Get().(*zstd.Decoder)
			if !ok || d == nil {
				return nil, fmt.Errorf("zstd: decoder unavailable")
			}
			if err := d.Reset(r); err != nil {
				zstdDecoderPool.Put(d)
				return nil, fmt.Errorf("zstd: %w", err)
			}
			closers = append(closers, func() { _ = d.Reset(nil); zstdDecoderPool.Put(d) })
			r = d
		default:
			return nil, fmt.Errorf("unsupported content encoding %q", encodings[i])
		}
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)
	}
	return data, nil
}

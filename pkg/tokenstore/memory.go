// Package tokenstore provides TokenStore implementations for the transport:
// an in-process store, a Redis-backed store shared between instances, and a
// wrapper that drops expired JWTs before they are sent.
package tokenstore

import (
	"context"
	"sync"

	corehttp "github.com/milan604/httpcore/pkg/http"
)

var (
	_ corehttp.TokenStore = (*Memory)(nil)
	_ corehttp.TokenStore = (*Redis)(nil)
	_ corehttp.TokenStore = (*JWTExpiry)(nil)
)

// Memory keeps the token in process memory.
type Memory struct {
	mu    sync.RWMutex
	token string
}

// NewMemory returns a store holding token, which may be empty.
func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

func (m *Memory) GetToken(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *Memory) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *Memory) RemoveToken(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// Package tokenstore keeps the single bearer token the client
// authenticates with.
package tokenstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoToken is returned when no token has been stored.
var ErrNoToken = errors.New("no token stored")

// Store holds one secret. Token is Get under the name api.TokenSource
// expects.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Token(ctx context.Context) (string, error)
}

// Memory is a process-lifetime Store.
type Memory struct {
	mu    sync.Mutex
	token string
}

// NewMemory returns a Memory store holding token (which may be empty).
func NewMemory(token string) *Memory {
	return &Memory{token: strings.TrimSpace(token)}
}

func (m *Memory) Get(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

// Token implements api.TokenSource.
func (m *Memory) Token(ctx context.Context) (string, error) {
	return m.Get(ctx)
}

func (m *Memory) Set(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = strings.TrimSpace(token)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

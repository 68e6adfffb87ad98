// Package session provides authenticated HTTP clients for the farm data API.
//
// Callers ask for the current handle with Client before every request attempt and call
// Refresh after an authorization failure. A refreshed handle replaces the previous one
// for every subsequent caller.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// ErrAuth is returned when credentials cannot be obtained or are rejected.
var ErrAuth = errors.New("authentication failed")

// Provider supplies the current authenticated client.
type Provider interface {
	Client(ctx context.Context) (*http.Client, error)
	Refresh(ctx context.Context) (*http.Client, error)
}

// ObtainFunc logs in and returns a freshly authenticated client.
type ObtainFunc func(ctx context.Context) (*http.Client, error)

// Manager holds the shared session and swaps it in place on Refresh.
type Manager struct {
	obtain ObtainFunc

	mu         sync.Mutex
	client     *http.Client
	generation int
}

func NewManager(obtain ObtainFunc) *Manager {
	return &Manager{obtain: obtain}
}

// Client returns the current handle, logging in on first use.
func (m *Manager) Client(ctx context.Context) (*http.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}
	return m.obtainLocked(ctx)
}

// Refresh discards the current handle and logs in again.
func (m *Manager) Refresh(ctx context.Context) (*http.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = nil
	return m.obtainLocked(ctx)
}

// Generation counts successful logins. Used to confirm a swap happened.
func (m *Manager) Generation() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

func (m *Manager) obtainLocked(ctx context.Context) (*http.Client, error) {
	client, err := m.obtain(ctx)
	if err != nil {
		if errors.Is(err, ErrAuth) {
			return nil, err
		}
		return nil, errors.Join(ErrAuth, err)
	}
	if client == nil {
		return nil, ErrAuth
	}
	m.client = client
	m.generation++
	return client, nil
}

// Static wraps a fixed client. Refresh returns the same client.
type Static struct {
	HTTP *http.Client
}

func (s Static) Client(context.Context) (*http.Client, error)  { return s.HTTP, nil }
func (s Static) Refresh(context.Context) (*http.Client, error) { return s.HTTP, nil }

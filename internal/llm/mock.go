package llm

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/tariff/internal/model"
)

// MockClient is a scripted Client used by tests and dry runs.
// It records every request it receives.
type MockClient struct {
	handler func(req Request) (string, error)
	backend model.Backend
	calls   []Request
	delay   time.Duration
	mu      sync.Mutex
}

// NewMockClient creates a mock client that replies with an empty string.
func NewMockClient(provider, modelName string) *MockClient {
	return &MockClient{
		backend: model.Backend{Provider: provider, Model: modelName},
		handler: func(Request) (string, error) { return "", nil },
	}
}

// WithResponse makes every call return text.
func (m *MockClient) WithResponse(text string) *MockClient {
	return m.WithHandler(func(Request) (string, error) { return text, nil })
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	return m.WithHandler(func(Request) (string, error) { return "", err })
}

// WithHandler installs a function computing the reply for each request.
func (m *MockClient) WithHandler(fn func(req Request) (string, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
	return m
}

// WithDelay makes every call block for d or until the context is done.
func (m *MockClient) WithDelay(d time.Duration) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Backend identifies the mock backend.
func (m *MockClient) Backend() model.Backend {
	return m.backend
}

// Complete records the request and replies via the configured handler.
func (m *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	handler := m.handler
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	return handler(req)
}

// Calls returns a copy of the requests received so far.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]Request, len(m.calls))
	copy(calls, m.calls)
	return calls
}

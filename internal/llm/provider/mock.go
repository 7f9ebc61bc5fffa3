package provider

import (
	"context"
	"sync"
)

// MockProvider is a configurable in-memory provider for tests. It
// records every request it receives.
type MockProvider struct {
	// Response is returned from CreateCompletion when Err is nil.
	Response string

	// Err, when set, fails every completion.
	Err error

	// Delay, when set, is waited before responding so tests can
	// exercise timeouts. The wait respects context cancellation.
	Delay func(ctx context.Context) error

	mu       sync.Mutex
	requests []CompletionRequest
}

// NewMockProvider creates a mock that answers every request with the
// given content.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

// Name returns the provider name
func (m *MockProvider) Name() string {
	return "mock"
}

// CreateCompletion records the request and returns the configured
// response or error.
func (m *MockProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Delay != nil {
		if err := m.Delay(ctx); err != nil {
			return nil, err
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &CompletionResponse{
		Content:      m.Response,
		FinishReason: "stop",
	}, nil
}

// Requests returns a copy of every request received so far.
func (m *MockProvider) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockProvider) LastRequest() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.requests) == 0 {
		return nil
	}
	req := m.requests[len(m.requests)-1]
	return &req
}

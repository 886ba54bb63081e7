package mocks

import (
	"context"
	"sync"

	"github.com/oljefondvakt/fundwatch/internal/generation"
)

// MockGenerator implements generation.Generator for testing.
type MockGenerator struct {
	// GenerateFn, if set, replaces the default Result/Err response.
	GenerateFn func(ctx context.Context, req generation.Request) (*generation.Result, error)

	// Default response values
	Result *generation.Result
	Err    error

	mu       sync.Mutex
	requests []generation.Request
}

var _ generation.Generator = (*MockGenerator)(nil)

// Generate implements generation.Generator.
func (m *MockGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	return m.Result, m.Err
}

// Calls returns the number of Generate calls.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockGenerator) Requests() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generation.Request(nil), m.requests...)
}

// NewMockGeneratorWithError creates a MockGenerator that always fails with err.
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{Err: err}
}

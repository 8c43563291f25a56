package pipeline

import (
	"context"
	"sync"

	"github.com/quipufin/quipu/internal/model"
)

// MockExtractor is a deterministic service.Extractor for tests.
type MockExtractor struct {
	mu      sync.Mutex
	results map[string]model.ExtractionResult
	err     error
	calls   int
}

// NewMockExtractor creates a mock extractor with canned per-transcript results.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		results: make(map[string]model.ExtractionResult),
	}
}

// SetResult registers the result returned for a transcript.
func (m *MockExtractor) SetResult(transcript string, result model.ExtractionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[transcript] = result
}

// SetError makes every Extract call fail.
func (m *MockExtractor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Extract was invoked.
func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Extract returns the canned result for the transcript, or zero candidates.
func (m *MockExtractor) Extract(_ context.Context, transcript, _ string) (model.ExtractionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return model.ExtractionResult{}, m.err
	}
	return m.results[transcript], nil
}

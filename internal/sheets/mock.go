package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/tariff/internal/model"
)

// MockWriter records history exports in memory.
type MockWriter struct {
	WriteFunc func(ctx context.Context, summaries []model.ClassificationSummary) error
	Writes    [][]model.ClassificationSummary
	mu        sync.Mutex
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write records the export and returns the result of WriteFunc, if set.
func (m *MockWriter) Write(ctx context.Context, summaries []model.ClassificationSummary) error {
	m.mu.Lock()
	m.Writes = append(m.Writes, summaries)
	fn := m.WriteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, summaries)
	}
	return nil
}

// WriteCount returns the number of recorded exports.
func (m *MockWriter) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Writes)
}

package testutils

import "context"

// MockEmbedder is a test embedder returning a fixed vector.
type MockEmbedder struct {
	// Vector is returned for every Embed call.
	Vector []float32
}

// NewMockEmbedder creates a mock embedder with a small fixed vector.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Vector: []float32{0.1, 0.2, 0.3}}
}

func (m *MockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return m.Vector, nil
}

func (m *MockEmbedder) Close() error {
	return nil
}

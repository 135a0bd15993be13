package llm

import (
	"context"
	"fmt"

	"github.com/kolzchut/ragbot/pkg/engine"
)

// MockClient is a canned-answer client for local runs without an API key.
type MockClient struct{}

// NewMockClient creates a new mock answering client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Answer returns a canned answer echoing the retrieved documents.
func (c *MockClient) Answer(_ context.Context, _ string, docs []engine.Document) (*Result, error) {
	return &Result{
		Text: fmt.Sprintf("Mock answer with docs___%v", docs),
	}, nil
}

var _ Client = (*MockClient)(nil)

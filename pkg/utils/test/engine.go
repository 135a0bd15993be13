package testutils

import (
	"context"
	"sync"

	"github.com/kolzchut/ragbot/pkg/engine"
)

// UpdateCall records one MockEngine.UpdateDocs invocation.
type UpdateCall struct {
	Docs           []engine.Document
	DeleteExisting bool
}

// MockEngine is a test engine that records its calls.
type MockEngine struct {
	mu sync.Mutex

	// Answer is returned by AnswerQuery.
	Answer *engine.Answer

	// AnswerErr, CreateErr and UpdateErr inject failures.
	AnswerErr error
	CreateErr error
	UpdateErr error

	createCalls [][]engine.Document
	updateCalls []UpdateCall
}

// NewMockEngine creates a mock engine with an empty canned answer.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		Answer: &engine.Answer{},
	}
}

func (m *MockEngine) AnswerQuery(_ context.Context, _ string, _ int, _ string) (*engine.Answer, error) {
	if m.AnswerErr != nil {
		return nil, m.AnswerErr
	}
	return m.Answer, nil
}

func (m *MockEngine) CreateParagraphs(_ context.Context, docs []engine.Document) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls = append(m.createCalls, docs)
	return nil
}

func (m *MockEngine) UpdateDocs(_ context.Context, docs []engine.Document, deleteExisting bool) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls = append(m.updateCalls, UpdateCall{Docs: docs, DeleteExisting: deleteExisting})
	return nil
}

// CreateCalls returns the recorded CreateParagraphs invocations.
func (m *MockEngine) CreateCalls() [][]engine.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// UpdateCalls returns the recorded UpdateDocs invocations.
func (m *MockEngine) UpdateCalls() []UpdateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCalls
}

var _ engine.Engine = (*MockEngine)(nil)

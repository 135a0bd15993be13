// Package llm provides the answering model client: it turns a user query and
// its retrieved documents into an answer, driven by the current answering
// configuration (model, prompts, temperature).
package llm

import (
	"context"

	"github.com/kolzchut/ragbot/pkg/engine"
)

// Result is a single model answer with its cost accounting.
type Result struct {
	// Text is the answer text.
	Text string

	// Elapsed is the model round-trip time in seconds.
	Elapsed float64

	// Tokens is the number of completion tokens used.
	Tokens int
}

// Client answers a query given its top retrieved documents.
type Client interface {
	Answer(ctx context.Context, query string, docs []engine.Document) (*Result, error)
}

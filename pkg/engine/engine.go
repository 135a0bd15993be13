// Package engine defines the answering engine collaborator contract: the
// component that owns retrieval ranking, embedding, and LLM answer synthesis.
package engine

import "context"

// Document is a corpus paragraph as the engine exchanges it with callers.
// The store may carry additional engine-managed derived fields (embedding
// vectors, last-update timestamps) that are not part of this surface.
type Document struct {
	DocID   int    `json:"doc_id"`
	Title   string `json:"title"`
	Link    string `json:"link"`
	Content string `json:"content"`
}

// Metadata describes how an answer was produced.
type Metadata struct {
	LLMModel      string  `json:"llm_model"`
	LLMTime       float64 `json:"llm_time"`
	RetrievalTime float64 `json:"retrieval_time"`
	Tokens        int     `json:"tokens"`
}

// Answer is the result of answering a single query.
type Answer struct {
	Documents []Document `json:"docs"`
	Text      string     `json:"llm_result"`
	Metadata  Metadata   `json:"metadata"`
}

// Engine answers user queries over the embedded corpus and owns (re)embedding
// of documents into the store.
type Engine interface {
	// AnswerQuery retrieves up to numPages documents for the query and
	// synthesizes an answer with the named model.
	AnswerQuery(ctx context.Context, query string, numPages int, model string) (*Answer, error)

	// CreateParagraphs embeds and indexes a full corpus of documents.
	CreateParagraphs(ctx context.Context, docs []Document) error

	// UpdateDocs embeds and indexes a batch of documents sharing one
	// identifier. deleteExisting signals update (as opposed to create)
	// semantics to implementations that track both.
	UpdateDocs(ctx context.Context, docs []Document, deleteExisting bool) error
}

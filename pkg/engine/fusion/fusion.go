// Package fusion provides the built-in answering engine: lexical retrieval
// over the embedding partitions combined with LLM answer synthesis, plus the
// ingestion paths that (re)index corpus documents with optional embedding
// vectors.
package fusion

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kolzchut/ragbot/pkg/embeddings"
	"github.com/kolzchut/ragbot/pkg/engine"
	"github.com/kolzchut/ragbot/pkg/llm"
	"github.com/kolzchut/ragbot/pkg/store"
)

// Config is the configuration options for the fusion engine.
type Config struct {
	// Driver is the document store backend.
	Driver store.Driver

	// LLM synthesizes the final answer.
	LLM llm.Client

	// Embedder generates optional document embeddings at ingestion time.
	// When nil, documents are indexed without vector fields.
	Embedder embeddings.Embedder

	// EmbeddingPrefix names the partition documents are ingested into and
	// prefixes the partitions retrieval runs over.
	EmbeddingPrefix string

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Engine implements engine.Engine over a document store and an LLM client.
type Engine struct {
	config *Config
	logger *zap.Logger
}

// NewEngine creates a new fusion engine.
func NewEngine(c *Config) *Engine {
	return &Engine{config: c, logger: c.Logger}
}

// AnswerQuery retrieves up to numPages documents matching the query and asks
// the model for an answer grounded in them.
func (e *Engine) AnswerQuery(ctx context.Context, query string, numPages int, model string) (*engine.Answer, error) {
	start := time.Now()

	hits, err := e.config.Driver.Search(ctx, e.config.EmbeddingPrefix+"*", store.Query{
		Field: "content",
		Value: query,
		Size:  numPages,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving documents: %w", err)
	}

	retrievalTime := math.Round(time.Since(start).Seconds()*10000) / 10000

	docs := make([]engine.Document, 0, len(hits))
	for _, hit := range hits {
		doc, err := decodeDocument(hit.Source)
		if err != nil {
			e.logger.Warn("skipping undecodable document",
				zap.String("index", hit.Index),
				zap.String("id", hit.ID),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, doc)
	}

	result, err := e.config.LLM.Answer(ctx, query, docs)
	if err != nil {
		return nil, fmt.Errorf("synthesizing answer: %w", err)
	}

	e.logger.Debug("query answered",
		zap.Int("docs", len(docs)),
		zap.Float64("retrieval_time", retrievalTime),
		zap.Float64("llm_time", result.Elapsed),
	)

	return &engine.Answer{
		Documents: docs,
		Text:      result.Text,
		Metadata: engine.Metadata{
			LLMModel:      model,
			LLMTime:       result.Elapsed,
			RetrievalTime: retrievalTime,
			Tokens:        result.Tokens,
		},
	}, nil
}

// CreateParagraphs embeds and indexes a full corpus into the embedding
// partition, creating it if absent.
func (e *Engine) CreateParagraphs(ctx context.Context, docs []engine.Document) error {
	if err := e.ensureIndex(ctx); err != nil {
		return err
	}

	for _, doc := range docs {
		if err := e.indexDocument(ctx, doc); err != nil {
			return err
		}
	}

	e.logger.Info("corpus ingested",
		zap.Int("docs", len(docs)),
		zap.String("index", e.config.EmbeddingPrefix),
	)
	return nil
}

// UpdateDocs embeds and indexes a batch of documents sharing one identifier.
// Existing matches are removed by the caller before update-semantics calls.
func (e *Engine) UpdateDocs(ctx context.Context, docs []engine.Document, deleteExisting bool) error {
	if err := e.ensureIndex(ctx); err != nil {
		return err
	}

	for _, doc := range docs {
		if err := e.indexDocument(ctx, doc); err != nil {
			return err
		}
	}

	e.logger.Info("docs indexed",
		zap.Int("docs", len(docs)),
		zap.Bool("delete_existing", deleteExisting),
	)
	return nil
}

// indexDocument stores one document with its engine-managed derived fields.
func (e *Engine) indexDocument(ctx context.Context, doc engine.Document) error {
	stored := map[string]any{
		"doc_id":       doc.DocID,
		"title":        doc.Title,
		"link":         doc.Link,
		"content":      doc.Content,
		"last_updated": time.Now().UTC().Format(time.RFC3339),
	}

	if e.config.Embedder != nil {
		vector, err := e.config.Embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embedding doc %d: %w", doc.DocID, err)
		}
		stored["content_vector"] = vector
	}

	if err := e.config.Driver.Insert(ctx, e.config.EmbeddingPrefix, "", stored); err != nil {
		return fmt.Errorf("indexing doc %d: %w", doc.DocID, err)
	}
	return nil
}

func (e *Engine) ensureIndex(ctx context.Context) error {
	exists, err := e.config.Driver.IndexExists(ctx, e.config.EmbeddingPrefix)
	if err != nil {
		return fmt.Errorf("checking embedding index: %w", err)
	}
	if exists {
		return nil
	}
	if err := e.config.Driver.CreateIndex(ctx, e.config.EmbeddingPrefix); err != nil {
		return fmt.Errorf("creating embedding index: %w", err)
	}
	e.logger.Info("embedding index created", zap.String("index", e.config.EmbeddingPrefix))
	return nil
}

func decodeDocument(source map[string]any) (engine.Document, error) {
	raw, err := json.Marshal(source)
	if err != nil {
		return engine.Document{}, fmt.Errorf("marshaling document source: %w", err)
	}

	var doc engine.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return engine.Document{}, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

var _ engine.Engine = (*Engine)(nil)

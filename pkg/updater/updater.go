// Package updater orchestrates document updates against the embedded corpus:
// a catalog of pending re-embedding requests, upsert/delete/find operations
// on the embedding partitions, and full corpus reinitialization. Actual
// re-embedding and indexing is delegated to the engine collaborator.
package updater

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/kolzchut/ragbot/pkg/engine"
	"github.com/kolzchut/ragbot/pkg/store"
)

// catalogDocID is the fixed id of the single pending-update catalog record.
const catalogDocID = "1"

// queueField is the catalog's pending-queue array field.
const queueField = "doc_ids_queue"

// catalog is the pending-update record: a set-semantics queue of document
// identifiers awaiting re-embedding, the identifiers that failed processing,
// and a lock token (empty when unlocked).
type catalog struct {
	DocIDsQueue  []string `json:"doc_ids_queue"`
	DocIDsFailed []string `json:"doc_ids_failed"`
	Lock         string   `json:"lock"`
}

// Config is the configuration options for the updater service.
type Config struct {
	// Driver is the document store backend.
	Driver store.Driver

	// Engine performs the actual re-embedding and indexing.
	Engine engine.Engine

	// UpdatesIndex holds the single pending-update catalog record.
	UpdatesIndex string

	// EmbeddingPrefix prefixes the embedded document partitions.
	EmbeddingPrefix string

	// IdentifierField is the engine-defined document identifier field
	// (e.g. "doc_id").
	IdentifierField string

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Service manages the pending-update catalog and document lifecycle
// operations. All work happens synchronously on the caller's context.
type Service struct {
	config *Config
	logger *zap.Logger
}

// NewService creates the updater, initializing the catalog record if the
// updates partition does not exist yet.
func NewService(ctx context.Context, c *Config) (*Service, error) {
	s := &Service{config: c, logger: c.Logger}

	exists, err := c.Driver.IndexExists(ctx, c.UpdatesIndex)
	if err != nil {
		return nil, fmt.Errorf("checking updates index: %w", err)
	}
	if !exists {
		if err := c.Driver.CreateIndex(ctx, c.UpdatesIndex); err != nil {
			return nil, fmt.Errorf("creating updates index: %w", err)
		}
		seed := catalog{DocIDsQueue: []string{}, DocIDsFailed: []string{}}
		if err := c.Driver.Insert(ctx, c.UpdatesIndex, catalogDocID, seed); err != nil {
			return nil, fmt.Errorf("storing update catalog: %w", err)
		}
		c.Logger.Info("updates index created", zap.String("index", c.UpdatesIndex))
	}

	return s, nil
}

// EnqueueReembed appends docID to the pending queue only if not already
// present, via the store's atomic conditional update.
func (s *Service) EnqueueReembed(ctx context.Context, docID string) error {
	s.logger.Info("update requested for page", zap.String("doc_id", docID))

	if err := s.config.Driver.AppendUnique(ctx, s.config.UpdatesIndex, catalogDocID, queueField, docID); err != nil {
		return fmt.Errorf("queueing doc %q for update: %w", docID, err)
	}
	return nil
}

// DeleteAllMatching deletes every document across the embedding partitions
// matching the identifier. Returns whether at least one was deleted.
func (s *Service) DeleteAllMatching(ctx context.Context, docID string) (bool, error) {
	deleted, err := s.config.Driver.DeleteByQuery(ctx, s.docsPattern(), store.Query{
		Field: s.config.IdentifierField,
		Value: docID,
	})
	if err != nil {
		return false, fmt.Errorf("deleting docs matching %q: %w", docID, err)
	}
	return deleted > 0, nil
}

// DeleteNthMatching deletes the zero-based nth document matching the
// identifier, in store order. Negative positions and fewer than n+1 matches
// report false with no deletion; the nth match is deleted by its store
// identity so sibling duplicates survive.
func (s *Service) DeleteNthMatching(ctx context.Context, docID string, n int) (bool, error) {
	if n < 0 {
		return false, nil
	}

	hits, err := s.config.Driver.Search(ctx, s.docsPattern(), store.Query{
		Field: s.config.IdentifierField,
		Value: docID,
		Size:  n + 1,
	})
	if err != nil {
		return false, fmt.Errorf("finding docs matching %q: %w", docID, err)
	}

	if len(hits) <= n {
		return false, nil
	}

	if err := s.config.Driver.DeleteByID(ctx, hits[n].Index, hits[n].ID); err != nil {
		return false, fmt.Errorf("deleting doc %s/%s: %w", hits[n].Index, hits[n].ID, err)
	}
	return true, nil
}

// Find returns every document matching the identifier across the embedding
// partitions, with derived vector fields excluded, or nil when none match.
func (s *Service) Find(ctx context.Context, docID string) ([]store.Hit, error) {
	hits, err := s.config.Driver.Search(ctx, s.docsPattern(), store.Query{
		Field:         s.config.IdentifierField,
		Value:         docID,
		ExcludeFields: []string{"*vector*"},
	})
	if err != nil {
		return nil, fmt.Errorf("finding docs matching %q: %w", docID, err)
	}

	if len(hits) == 0 {
		return nil, nil
	}
	return hits, nil
}

// Upsert updates or creates a batch of documents sharing one identifier.
// Update semantics (deleteExisting) first remove the existing matches; both
// paths then delegate embedding and indexing to the engine. The single-
// identifier invariant is enforced by the boundary caller, not here.
func (s *Service) Upsert(ctx context.Context, docs []engine.Document, deleteExisting bool) error {
	if deleteExisting && len(docs) > 0 {
		if _, err := s.DeleteAllMatching(ctx, strconv.Itoa(docs[0].DocID)); err != nil {
			return err
		}
	}

	if err := s.config.Engine.UpdateDocs(ctx, docs, deleteExisting); err != nil {
		return fmt.Errorf("updating docs via engine: %w", err)
	}
	return nil
}

// ReinitializeCorpus deletes every embedding partition and delegates full
// corpus ingestion to the engine. Destructive and irreversible; the boundary
// caller gates access.
func (s *Service) ReinitializeCorpus(ctx context.Context, docs []engine.Document) error {
	if ok := s.deleteEmbeddingIndices(ctx); !ok {
		s.logger.Warn("embedding partition enumeration failed, proceeding to ingestion",
			zap.String("prefix", s.config.EmbeddingPrefix),
		)
	}

	if err := s.config.Engine.CreateParagraphs(ctx, docs); err != nil {
		return fmt.Errorf("creating paragraphs via engine: %w", err)
	}
	return nil
}

// deleteEmbeddingIndices removes all partitions under the embedding prefix.
// A failure deleting one partition is logged and skipped; only a failure
// enumerating the partitions reports false.
func (s *Service) deleteEmbeddingIndices(ctx context.Context) bool {
	indices, err := s.config.Driver.ListIndices(ctx, s.config.EmbeddingPrefix)
	if err != nil {
		s.logger.Error("listing embedding partitions failed",
			zap.String("prefix", s.config.EmbeddingPrefix),
			zap.Error(err),
		)
		return false
	}

	if len(indices) == 0 {
		s.logger.Info("no embedding partitions found",
			zap.String("prefix", s.config.EmbeddingPrefix),
		)
		return true
	}

	for _, index := range indices {
		if err := s.config.Driver.DeleteIndex(ctx, index); err != nil {
			s.logger.Error("deleting embedding partition failed",
				zap.String("index", index),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("embedding partition deleted", zap.String("index", index))
	}

	return true
}

func (s *Service) docsPattern() string {
	return s.config.EmbeddingPrefix + "*"
}

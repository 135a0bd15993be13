package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kolzchut/ragbot/pkg/corpus"
	"github.com/kolzchut/ragbot/pkg/engine"
	"github.com/kolzchut/ragbot/pkg/interactions"
	"github.com/kolzchut/ragbot/pkg/settings"
)

type errorResponse struct {
	Error string `json:"error"`
}

// SearchRequest is the search endpoint payload.
type SearchRequest struct {
	Query     string `json:"query"`
	AskedFrom string `json:"asked_from"`
}

// SearchDocument is a retrieved document as returned to the client.
type SearchDocument struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Link    string `json:"link"`
	Content string `json:"content"`
}

// SearchResponse is the composed search result; it is also what gets
// persisted as the search interaction.
type SearchResponse struct {
	ConversationID string           `json:"conversation_id"`
	Type           string           `json:"interaction_type"`
	LLMResult      string           `json:"llm_result"`
	Docs           []SearchDocument `json:"docs"`
	ConfigVersion  int              `json:"config_version"`
	CodeVersion    string           `json:"code_version"`
	Question       string           `json:"question"`
	AskedFrom      string           `json:"asked_from"`
	Metadata       engine.Metadata  `json:"metadata"`
}

// RateRequest records a rating for a prior conversation.
type RateRequest struct {
	ConversationID string `json:"conversation_id"`
	Rating         *int   `json:"rating"`
}

// DocumentRequest is the create/update payload for document operations.
// All documents in one request must share one doc_id.
type DocumentRequest struct {
	Operation string            `json:"operation"`
	Documents []engine.Document `json:"documents"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	s.logger.Debug("health check endpoint accessed")
	return c.SendStatus(fiber.StatusOK)
}

// handleGetConfig returns the current answering configuration.
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	rec, err := s.settings.Get(c.Context())
	if err != nil {
		s.logger.Error("fetching configuration failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to fetch configuration"})
	}
	return c.JSON(rec)
}

// handleSetConfig appends a new configuration version. Omitted fields
// inherit from the current record.
func (s *Server) handleSetConfig(c *fiber.Ctx) error {
	var partial settings.Partial
	if err := c.BodyParser(&partial); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	if err := s.settings.Set(c.Context(), partial); err != nil {
		s.logger.Error("storing configuration failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to store configuration"})
	}
	return c.SendStatus(fiber.StatusOK)
}

// handleSearch answers a query and queues the resulting search interaction.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "query is required"})
	}

	ctx := c.Context()
	conversationID := uuid.NewString()

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Error("fetching configuration failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to fetch configuration"})
	}

	numPages, err := strconv.Atoi(cfg.NumOfPages)
	if err != nil {
		s.logger.Error("invalid num_of_pages in configuration",
			zap.String("num_of_pages", cfg.NumOfPages),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "invalid configuration"})
	}

	answer, err := s.engine.AnswerQuery(ctx, req.Query, numPages, cfg.Model)
	if err != nil {
		s.logger.Error("answering query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to answer query"})
	}

	docs := make([]SearchDocument, len(answer.Documents))
	stored := make([]interactions.Document, len(answer.Documents))
	for i, doc := range answer.Documents {
		docs[i] = SearchDocument{
			ID:      doc.DocID,
			Title:   doc.Title,
			Link:    doc.Link,
			Content: doc.Content,
		}
		stored[i] = interactions.Document(docs[i])
	}

	result := SearchResponse{
		ConversationID: conversationID,
		Type:           interactions.TypeSearch,
		LLMResult:      answer.Text,
		Docs:           docs,
		ConfigVersion:  cfg.Version,
		CodeVersion:    s.config.CodeVersion,
		Question:       req.Query,
		AskedFrom:      req.AskedFrom,
		Metadata:       answer.Metadata,
	}

	s.queue.Submit(interactions.Interaction{
		ConversationID: conversationID,
		Type:           interactions.TypeSearch,
		Question:       req.Query,
		AskedFrom:      req.AskedFrom,
		LLMResult:      answer.Text,
		Docs:           stored,
		ConfigVersion:  cfg.Version,
		CodeVersion:    s.config.CodeVersion,
		Metadata:       &answer.Metadata,
	})

	s.logger.Debug("search performed",
		zap.String("conversation_id", conversationID),
	)

	return c.JSON(result)
}

// handleRate queues a rating for a prior conversation. Ratings whose
// conversation has no persisted search record are discarded by the queue's
// integrity check.
func (s *Server) handleRate(c *fiber.Ctx) error {
	var req RateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if req.ConversationID == "" || req.Rating == nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "conversation_id and rating are required"})
	}

	s.queue.Submit(interactions.Interaction{
		ConversationID: req.ConversationID,
		Type:           interactions.TypeRating,
		Rating:         req.Rating,
	})

	return c.SendStatus(fiber.StatusOK)
}

// handleInitialize deletes all embedding partitions and re-ingests the
// corpus file. Destructive; deployment must gate access to this route.
func (s *Server) handleInitialize(c *fiber.Ctx) error {
	docs, err := corpus.Load(s.config.CorpusPath)
	if err != nil {
		s.logger.Error("loading corpus failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to load corpus"})
	}

	if err := s.updater.ReinitializeCorpus(c.Context(), docs); err != nil {
		s.logger.Error("reinitializing corpus failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to reinitialize corpus"})
	}

	return c.SendStatus(fiber.StatusCreated)
}

// handleOperateDocs creates or updates a batch of documents sharing one
// doc_id.
func (s *Server) handleOperateDocs(c *fiber.Ctx) error {
	var req DocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	operation := strings.ToLower(req.Operation)
	if operation != "create" && operation != "update" {
		return c.SendStatus(fiber.StatusUnprocessableEntity)
	}

	ids := make(map[int]struct{})
	for _, doc := range req.Documents {
		ids[doc.DocID] = struct{}{}
	}
	if len(ids) > 1 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errorResponse{Error: "All documents must have the same doc_id"})
	}

	deleteExisting := operation == "update"
	if err := s.updater.Upsert(c.Context(), req.Documents, deleteExisting); err != nil {
		s.logger.Error("document operation failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "failed to apply document operation"})
	}

	return c.SendStatus(fiber.StatusCreated)
}

// handleDeleteDoc deletes one occurrence of a document by identifier and
// base-1 position.
func (s *Server) handleDeleteDoc(c *fiber.Ctx) error {
	docID := c.Query("doc_id")
	objID := c.Query("obj_id")
	if docID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "doc_id is required"})
	}

	// obj_id arrives base-1; positions are zero-based internally.
	pos, err := strconv.Atoi(objID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Invalid id: must be an integer."})
	}
	n := pos - 1

	deleted, err := s.updater.DeleteNthMatching(c.Context(), docID, n)
	if err != nil {
		s.logger.Error("deleting doc failed",
			zap.String("doc_id", docID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to delete document"})
	}
	if !deleted {
		return c.SendStatus(fiber.StatusNotFound)
	}
	return c.SendStatus(fiber.StatusOK)
}

// handleGetDoc returns all documents matching an identifier, without derived
// vector fields.
func (s *Server) handleGetDoc(c *fiber.Ctx) error {
	docID := c.Query("doc_id")
	if docID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "doc_id is required"})
	}

	hits, err := s.updater.Find(c.Context(), docID)
	if err != nil {
		s.logger.Error("finding doc failed",
			zap.String("doc_id", docID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to fetch document"})
	}
	if hits == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	sources := make([]map[string]any, len(hits))
	for i, hit := range hits {
		sources[i] = hit.Source
	}
	return c.JSON(sources)
}

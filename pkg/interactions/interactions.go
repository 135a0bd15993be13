// Package interactions provides an asynchronous queue for persisting chatbot
// interactions (search events and user ratings) into weekly store partitions.
//
// The queue decouples persistence from the request-serving hot path: Submit
// never blocks, and a single background worker drains submissions in strict
// FIFO order.
package interactions

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kolzchut/ragbot/pkg/engine"
	"github.com/kolzchut/ragbot/pkg/store"
)

// Interaction types.
const (
	TypeSearch = "search"
	TypeRating = "rating"
)

var defaultQueueSize uint = 256

// Document is a retrieved document as persisted with a search interaction,
// keyed the way the client-facing response keys it.
type Document struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Link    string `json:"link"`
	Content string `json:"content"`
}

// Interaction is a single chatbot event. The correlation id links a rating
// back to the search it rates. Timestamp is stamped at persistence time, not
// at submission time.
type Interaction struct {
	ConversationID string `json:"conversation_id"`
	Type           string `json:"interaction_type"`

	Question      string           `json:"question,omitempty"`
	AskedFrom     string           `json:"asked_from,omitempty"`
	LLMResult     string           `json:"llm_result,omitempty"`
	Docs          []Document       `json:"docs,omitempty"`
	ConfigVersion int              `json:"config_version,omitempty"`
	CodeVersion   string           `json:"code_version,omitempty"`
	Metadata      *engine.Metadata `json:"metadata,omitempty"`

	Rating *int `json:"rating,omitempty"`

	Timestamp string `json:"timestamp,omitempty"`
}

// Config is the configuration options for the interaction queue.
type Config struct {
	// Driver is the document store backend.
	Driver store.Driver

	// IndexPrefix prefixes the weekly partitions ({prefix}_{iso_week}).
	IndexPrefix string

	// QueueSize is the capacity of the buffered channel (defaults to 256).
	// A full queue drops new submissions rather than blocking the submitter.
	QueueSize uint

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Queue persists interactions asynchronously via a single drain worker.
type Queue struct {
	config *Config
	queue  chan Interaction
	wg     sync.WaitGroup
	logger *zap.Logger

	dropped        atomic.Uint64
	droppedRatings atomic.Uint64
	failed         atomic.Uint64
}

// NewQueue creates an interaction queue, ensures the current week's partition
// exists, and starts the drain worker.
func NewQueue(ctx context.Context, c *Config) (*Queue, error) {
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}

	q := &Queue{
		config: c,
		queue:  make(chan Interaction, c.QueueSize),
		logger: c.Logger,
	}

	if err := q.ensureIndex(ctx, q.currentIndexName()); err != nil {
		return nil, err
	}

	q.wg.Add(1)
	go q.worker()

	return q, nil
}

// Submit appends the interaction to the queue without blocking.
// Returns true if queued, false if the queue is full and the interaction was
// dropped.
func (q *Queue) Submit(in Interaction) bool {
	select {
	case q.queue <- in:
		q.logger.Debug("interaction queued",
			zap.String("type", in.Type),
			zap.String("conversation_id", in.ConversationID),
		)
		return true
	default:
		q.dropped.Add(1)
		q.logger.Error("interaction not queued, queue full, interaction dropped",
			zap.String("type", in.Type),
			zap.String("conversation_id", in.ConversationID),
		)
		return false
	}
}

// Close signals the worker to stop and waits for queued interactions to
// drain. Call this during graceful shutdown after the HTTP server has
// stopped.
func (q *Queue) Close() {
	close(q.queue)
	q.wg.Wait()
}

// Dropped returns the number of submissions dropped due to a full queue.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// DroppedRatings returns the number of orphaned ratings discarded by the
// integrity check.
func (q *Queue) DroppedRatings() uint64 { return q.droppedRatings.Load() }

// Failed returns the number of interactions the worker could not persist.
func (q *Queue) Failed() uint64 { return q.failed.Load() }

// worker drains the queue in submission order, one interaction at a time.
func (q *Queue) worker() {
	defer q.wg.Done()
	q.logger.Debug("interaction worker started")

	for in := range q.queue {
		q.persist(in)
	}

	q.logger.Debug("interaction worker stopped")
}

// persist writes one interaction into the partition current at drain time.
// Errors are logged and counted, never fatal to the worker.
func (q *Queue) persist(in Interaction) {
	ctx := context.Background()
	index := q.currentIndexName()

	if in.Type == TypeRating {
		ok, err := q.searchRecordExists(ctx, index, in.ConversationID)
		if err != nil {
			q.failed.Add(1)
			q.logger.Error("rating integrity check failed",
				zap.String("conversation_id", in.ConversationID),
				zap.Error(err),
			)
			return
		}
		if !ok {
			// Orphaned rating: no search record shares the correlation id.
			// Dropping it is an accepted data-loss policy.
			q.droppedRatings.Add(1)
			q.logger.Debug("orphaned rating dropped",
				zap.String("conversation_id", in.ConversationID),
			)
			return
		}
	}

	in.Timestamp = time.Now().UTC().Format(time.RFC3339)

	if err := q.ensureIndex(ctx, index); err != nil {
		q.failed.Add(1)
		q.logger.Error("creating interactions index failed",
			zap.String("index", index),
			zap.Error(err),
		)
		return
	}

	if err := q.config.Driver.Insert(ctx, index, "", in); err != nil {
		q.failed.Add(1)
		q.logger.Error("persisting interaction failed",
			zap.String("type", in.Type),
			zap.String("conversation_id", in.ConversationID),
			zap.Error(err),
		)
		return
	}

	q.logger.Debug("interaction persisted",
		zap.String("type", in.Type),
		zap.String("index", index),
	)
}

// searchRecordExists reports whether a search interaction with the given
// conversation id is already persisted in the current week's partition.
func (q *Queue) searchRecordExists(ctx context.Context, index, conversationID string) (bool, error) {
	exists, err := q.config.Driver.IndexExists(ctx, index)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	count, err := q.config.Driver.Count(ctx, index, store.Query{
		Field: "conversation_id",
		Value: conversationID,
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (q *Queue) ensureIndex(ctx context.Context, index string) error {
	exists, err := q.config.Driver.IndexExists(ctx, index)
	if err != nil {
		return fmt.Errorf("checking index %q: %w", index, err)
	}
	if exists {
		return nil
	}
	if err := q.config.Driver.CreateIndex(ctx, index); err != nil {
		return fmt.Errorf("creating index %q: %w", index, err)
	}
	q.logger.Debug("interactions index created", zap.String("index", index))
	return nil
}

// currentIndexName names the partition for the current ISO calendar week.
func (q *Queue) currentIndexName() string {
	_, week := time.Now().UTC().ISOWeek()
	return fmt.Sprintf("%s_%d", q.config.IndexPrefix, week)
}

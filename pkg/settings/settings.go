// Package settings owns the versioned answering configuration: model name,
// prompt templates, temperature and page count. Records are appended to a
// dedicated store partition (history is retained) and reads go through a
// time-boxed in-memory cache.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kolzchut/ragbot/pkg/store"
)

// ErrUnavailable is returned when the store yields no configuration record
// outside the empty-store case.
var ErrUnavailable = errors.New("configuration unavailable")

// Record is one version of the answering configuration. Page count and
// temperature are serialized as strings, matching the persisted layout.
type Record struct {
	Model        string `json:"model"`
	NumOfPages   string `json:"num_of_pages"`
	Temperature  string `json:"temperature"`
	UserPrompt   string `json:"user_prompt"`
	SystemPrompt string `json:"system_prompt"`
	Version      int    `json:"version"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// Partial is a set of optional configuration overrides. Nil fields inherit
// from the current record.
type Partial struct {
	Model        *string `json:"model"`
	NumOfPages   *string `json:"num_of_pages"`
	Temperature  *string `json:"temperature"`
	UserPrompt   *string `json:"user_prompt"`
	SystemPrompt *string `json:"system_prompt"`
}

// Store manages configuration records in a document store partition.
// All access is serialized behind a mutex, so concurrent writers cannot
// observe the same prior version.
type Store struct {
	driver      store.Driver
	index       string
	cachePeriod time.Duration
	logger      *zap.Logger

	mu          sync.Mutex
	current     *Record
	lastRefresh time.Time
}

// New creates a settings store backed by the named partition, creating the
// partition if it does not exist.
func New(ctx context.Context, driver store.Driver, index string, cachePeriod time.Duration, logger *zap.Logger) (*Store, error) {
	exists, err := driver.IndexExists(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("checking configurations index: %w", err)
	}
	if !exists {
		if err := driver.CreateIndex(ctx, index); err != nil {
			return nil, fmt.Errorf("creating configurations index: %w", err)
		}
		logger.Debug("configurations index created", zap.String("index", index))
	}

	return &Store{
		driver:      driver,
		index:       index,
		cachePeriod: cachePeriod,
		logger:      logger,
	}, nil
}

// Get returns the current configuration. On an empty store it writes and
// returns the seed record. A cached record younger than the cache period is
// returned without consulting the store; otherwise the highest-version record
// is fetched and the cache refreshed.
func (s *Store) Get(ctx context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getLocked(ctx)
	if err != nil {
		return Record{}, err
	}
	return *rec, nil
}

// Set merges partial over the current record, back-fills any field empty in
// both from the seed, bumps the version, stamps a fresh timestamp and appends
// the result to the store. The in-memory cache is refreshed immediately,
// bypassing the cache window.
func (s *Store) Set(ctx context.Context, partial Partial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getLocked(ctx)
	if err != nil {
		return err
	}

	next := *current
	applyPartial(&next, partial)
	backfillSeed(&next)
	next.Version = current.Version + 1
	next.Timestamp = time.Now().UTC().Format(time.RFC3339)

	if err := s.driver.Insert(ctx, s.index, "", next); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}

	s.current = &next
	s.lastRefresh = time.Now()

	s.logger.Info("configuration updated", zap.Int("version", next.Version))
	return nil
}

// getLocked implements Get. Callers must hold s.mu.
func (s *Store) getLocked(ctx context.Context) (*Record, error) {
	count, err := s.driver.Count(ctx, s.index, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("counting configurations: %w", err)
	}

	if count == 0 {
		seed := SeedRecord()
		if err := s.driver.Insert(ctx, s.index, "", seed); err != nil {
			return nil, fmt.Errorf("storing seed configuration: %w", err)
		}
		s.current = &seed
		s.lastRefresh = time.Now()
		s.logger.Info("seed configuration stored")
		return s.current, nil
	}

	if s.current != nil && time.Since(s.lastRefresh) < s.cachePeriod {
		return s.current, nil
	}

	hits, err := s.driver.Search(ctx, s.index, store.Query{
		Size:      1,
		SortField: "version",
		SortDesc:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching configuration: %w", err)
	}
	if len(hits) == 0 {
		return nil, ErrUnavailable
	}

	rec, err := decodeRecord(hits[0].Source)
	if err != nil {
		return nil, err
	}

	s.current = rec
	s.lastRefresh = time.Now()
	return s.current, nil
}

func applyPartial(rec *Record, p Partial) {
	if p.Model != nil {
		rec.Model = *p.Model
	}
	if p.NumOfPages != nil {
		rec.NumOfPages = *p.NumOfPages
	}
	if p.Temperature != nil {
		rec.Temperature = *p.Temperature
	}
	if p.UserPrompt != nil {
		rec.UserPrompt = *p.UserPrompt
	}
	if p.SystemPrompt != nil {
		rec.SystemPrompt = *p.SystemPrompt
	}
}

// backfillSeed restores any field missing from both the partial and the
// current record to its seed value, keeping every stored record complete.
func backfillSeed(rec *Record) {
	seed := SeedRecord()
	if rec.Model == "" {
		rec.Model = seed.Model
	}
	if rec.NumOfPages == "" {
		rec.NumOfPages = seed.NumOfPages
	}
	if rec.Temperature == "" {
		rec.Temperature = seed.Temperature
	}
	if rec.UserPrompt == "" {
		rec.UserPrompt = seed.UserPrompt
	}
	if rec.SystemPrompt == "" {
		rec.SystemPrompt = seed.SystemPrompt
	}
}

func decodeRecord(source map[string]any) (*Record, error) {
	raw, err := json.Marshal(source)
	if err != nil {
		return nil, fmt.Errorf("marshaling configuration source: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding configuration record: %w", err)
	}
	return &rec, nil
}

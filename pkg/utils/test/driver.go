// Package testutils provides shared mocks and counting wrappers for tests.
package testutils

import (
	"context"
	"sync"

	"github.com/kolzchut/ragbot/pkg/store"
)

// CountingDriver wraps a store.Driver and counts the calls that reach the
// backend, so tests can assert cache hits and write suppression.
type CountingDriver struct {
	store.Driver

	mu       sync.Mutex
	searches int
	counts   int
	inserts  int
	deletes  int

	// EmptySearch forces Search to return no hits, simulating a store that
	// yields nothing for a query.
	EmptySearch bool
}

// NewCountingDriver wraps the given backend driver.
func NewCountingDriver(backend store.Driver) *CountingDriver {
	return &CountingDriver{Driver: backend}
}

func (d *CountingDriver) Search(ctx context.Context, index string, q store.Query) ([]store.Hit, error) {
	d.mu.Lock()
	d.searches++
	empty := d.EmptySearch
	d.mu.Unlock()

	if empty {
		return nil, nil
	}
	return d.Driver.Search(ctx, index, q)
}

func (d *CountingDriver) Count(ctx context.Context, index string, q store.Query) (int, error) {
	d.mu.Lock()
	d.counts++
	d.mu.Unlock()
	return d.Driver.Count(ctx, index, q)
}

func (d *CountingDriver) Insert(ctx context.Context, index, id string, doc any) error {
	d.mu.Lock()
	d.inserts++
	d.mu.Unlock()
	return d.Driver.Insert(ctx, index, id, doc)
}

func (d *CountingDriver) DeleteByID(ctx context.Context, index, id string) error {
	d.mu.Lock()
	d.deletes++
	d.mu.Unlock()
	return d.Driver.DeleteByID(ctx, index, id)
}

// Searches returns the number of Search calls observed.
func (d *CountingDriver) Searches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.searches
}

// Counts returns the number of Count calls observed.
func (d *CountingDriver) Counts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts
}

// Inserts returns the number of Insert calls observed.
func (d *CountingDriver) Inserts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inserts
}

// Deletes returns the number of DeleteByID calls observed.
func (d *CountingDriver) Deletes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deletes
}

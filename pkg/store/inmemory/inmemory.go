// Package inmemory provides an in-memory store.Driver, used by tests and
// storeless local runs.
package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kolzchut/ragbot/pkg/store"
)

type document struct {
	id     string
	source map[string]any
}

// Driver implements store.Driver using per-index document slices guarded by
// a single RWMutex. Documents keep insertion order, which stands in for the
// store's natural query ordering.
type Driver struct {
	mu      sync.RWMutex
	indices map[string][]*document
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		indices: make(map[string][]*document),
	}
}

func (d *Driver) IndexExists(_ context.Context, index string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.indices[index]
	return ok, nil
}

func (d *Driver) CreateIndex(_ context.Context, index string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.indices[index]; !ok {
		d.indices[index] = []*document{}
	}
	return nil
}

func (d *Driver) Insert(_ context.Context, index, id string, doc any) error {
	source, err := toSource(doc)
	if err != nil {
		return err
	}

	if id == "" {
		id = uuid.NewString()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.indices[index] = append(d.indices[index], &document{id: id, source: source})
	return nil
}

func (d *Driver) AppendUnique(_ context.Context, index, id, field, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	docs, ok := d.indices[index]
	if !ok {
		return store.ErrNotFound{Index: index}
	}

	for _, doc := range docs {
		if doc.id != id {
			continue
		}

		values, _ := doc.source[field].([]any)
		for _, v := range values {
			if v == value {
				return nil
			}
		}
		doc.source[field] = append(values, any(value))
		return nil
	}

	return store.ErrNotFound{Index: index, ID: id}
}

func (d *Driver) Search(_ context.Context, index string, q store.Query) ([]store.Hit, error) {
	return d.search(index, q)
}

func (d *Driver) Count(_ context.Context, index string, q store.Query) (int, error) {
	hits, err := d.search(index, q)
	if err != nil {
		return 0, err
	}
	return len(hits), nil
}

func (d *Driver) DeleteByQuery(_ context.Context, index string, q store.Query) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	deleted := 0
	for _, name := range d.resolveLocked(index) {
		kept := d.indices[name][:0]
		for _, doc := range d.indices[name] {
			if matches(doc, q) {
				deleted++
			} else {
				kept = append(kept, doc)
			}
		}
		d.indices[name] = kept
	}

	return deleted, nil
}

func (d *Driver) DeleteByID(_ context.Context, index, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range d.resolveLocked(index) {
		for i, doc := range d.indices[name] {
			if doc.id == id {
				d.indices[name] = append(d.indices[name][:i], d.indices[name][i+1:]...)
				return nil
			}
		}
	}

	return store.ErrNotFound{Index: index, ID: id}
}

func (d *Driver) ListIndices(_ context.Context, prefix string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var names []string
	for name := range d.indices {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (d *Driver) DeleteIndex(_ context.Context, index string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.indices[index]; !ok {
		return store.ErrNotFound{Index: index}
	}
	delete(d.indices, index)
	return nil
}

func (d *Driver) Close() error {
	return nil
}

func (d *Driver) search(index string, q store.Query) ([]store.Hit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var hits []store.Hit
	for _, name := range d.resolveLocked(index) {
		for _, doc := range d.indices[name] {
			if !matches(doc, q) {
				continue
			}
			hits = append(hits, store.Hit{
				Index:  name,
				ID:     doc.id,
				Source: project(doc.source, q.ExcludeFields),
			})
		}
	}

	if q.SortField != "" {
		sortHits(hits, q.SortField, q.SortDesc)
	}

	if q.Size > 0 && len(hits) > q.Size {
		hits = hits[:q.Size]
	}

	return hits, nil
}

// resolveLocked expands a trailing-'*' index pattern into concrete index
// names. Callers must hold at least the read lock.
func (d *Driver) resolveLocked(index string) []string {
	if !strings.HasSuffix(index, "*") {
		if _, ok := d.indices[index]; !ok {
			return nil
		}
		return []string{index}
	}

	prefix := strings.TrimSuffix(index, "*")
	var names []string
	for name := range d.indices {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}

func matches(doc *document, q store.Query) bool {
	if q.Field == "" {
		return true
	}
	v, ok := doc.source[q.Field]
	if !ok {
		return false
	}
	return stringify(v) == q.Value
}

func project(source map[string]any, exclude []string) map[string]any {
	out := make(map[string]any, len(source))
	for k, v := range source {
		excluded := false
		for _, pattern := range exclude {
			if ok, _ := path.Match(pattern, k); ok {
				excluded = true
				break
			}
		}
		if !excluded {
			out[k] = v
		}
	}
	return out
}

func sortHits(hits []store.Hit, field string, desc bool) {
	less := func(a, b store.Hit) bool {
		av, bv := a.Source[field], b.Source[field]
		af, aok := toFloat(av)
		bf, bok := toFloat(bv)
		if aok && bok {
			return af < bf
		}
		return stringify(av) < stringify(bv)
	}

	// Insertion sort keeps equal keys in insertion order, matching the
	// stable ordering real stores give same-score hits.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0; j-- {
			a, b := hits[j-1], hits[j]
			swap := less(b, a)
			if desc {
				swap = less(a, b)
			}
			if !swap {
				break
			}
			hits[j-1], hits[j] = b, a
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// JSON round-trips integers as float64; keep "7" rather than "7e+00".
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// toSource normalizes any document value (struct or map) into a
// map[string]any via a JSON round-trip.
func toSource(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling document: %w", err)
	}

	var source map[string]any
	if err := json.Unmarshal(raw, &source); err != nil {
		return nil, fmt.Errorf("unmarshaling document: %w", err)
	}
	return source, nil
}

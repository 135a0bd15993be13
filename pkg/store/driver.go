// Package store defines the partition-oriented document store driver contract.
//
// A partition ("index") is a named, independently creatable and queryable
// subdivision of the store. Drivers expose the minimal surface the service
// needs: index lifecycle, single-document inserts, field-match queries with
// size/sort/exclusion control, conditional array appends, and deletion by
// query or by store identity.
package store

import "context"

// Hit is a single search match, carrying the store identity of the document
// (the partition it lives in plus the store-assigned id) alongside its source.
type Hit struct {
	Index  string
	ID     string
	Source map[string]any
}

// Query describes a search or deletion predicate.
//
// A zero Field matches all documents. Index arguments passed to Driver methods
// may end in '*' to address every partition sharing the prefix.
type Query struct {
	// Field and Value form a single-field match predicate.
	Field string
	Value string

	// Size bounds the number of hits returned. Zero means driver default.
	Size int

	// SortField orders hits by the named field when set; SortDesc flips the
	// direction. Without a sort the store's natural ordering applies.
	SortField string
	SortDesc  bool

	// ExcludeFields removes matching source fields from returned hits.
	// Patterns may contain '*' wildcards (e.g. "*vector*").
	ExcludeFields []string
}

// Driver is the document store contract. Implementations must be safe for
// concurrent use.
type Driver interface {
	// IndexExists reports whether the named partition exists.
	IndexExists(ctx context.Context, index string) (bool, error)

	// CreateIndex creates the named partition.
	CreateIndex(ctx context.Context, index string) error

	// Insert stores a document in the partition. An empty id lets the store
	// assign one.
	Insert(ctx context.Context, index, id string, doc any) error

	// AppendUnique atomically appends value to the named array field of the
	// document, only if the value is not already present.
	AppendUnique(ctx context.Context, index, id, field, value string) error

	// Search returns the hits matching q, in the store's ordering for the
	// query.
	Search(ctx context.Context, index string, q Query) ([]Hit, error)

	// Count returns the number of documents matching q.
	Count(ctx context.Context, index string, q Query) (int, error)

	// DeleteByQuery removes every document matching q and returns the number
	// deleted.
	DeleteByQuery(ctx context.Context, index string, q Query) (int, error)

	// DeleteByID removes a single document by its store identity.
	DeleteByID(ctx context.Context, index, id string) error

	// ListIndices returns the names of partitions whose name starts with
	// prefix.
	ListIndices(ctx context.Context, prefix string) ([]string, error)

	// DeleteIndex removes the named partition and everything in it.
	DeleteIndex(ctx context.Context, index string) error

	// Close releases any resources held by the driver.
	Close() error
}

// Package elastic provides the Elasticsearch store.Driver implementation.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/kolzchut/ragbot/pkg/store"
)

// Config holds connection settings for the Elasticsearch driver.
// CloudID + APIKey take precedence over Addresses when set.
type Config struct {
	Addresses []string
	CloudID   string
	APIKey    string
}

// Driver implements store.Driver against an Elasticsearch cluster.
type Driver struct {
	client *elasticsearch.Client
	logger *zap.Logger
}

// NewDriver creates a new Elasticsearch driver and verifies connectivity.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	cfg := elasticsearch.Config{}
	if c.CloudID != "" {
		cfg.CloudID = c.CloudID
		cfg.APIKey = c.APIKey
	} else {
		cfg.Addresses = c.Addresses
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	d := &Driver{client: client, logger: logger}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("connecting to elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info: %s", res.String())
	}

	logger.Info("connected to Elasticsearch",
		zap.Strings("addresses", c.Addresses),
		zap.Bool("managed", c.CloudID != ""),
	)

	return d, nil
}

func (d *Driver) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := d.client.Indices.Exists(
		[]string{index},
		d.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("checking index %q: %w", index, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("checking index %q: %s", index, res.String())
	}
}

func (d *Driver) CreateIndex(ctx context.Context, index string) error {
	res, err := d.client.Indices.Create(
		index,
		d.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("creating index %q: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("creating index %q: %s", index, res.String())
	}

	d.logger.Debug("index created", zap.String("index", index))
	return nil
}

func (d *Driver) Insert(ctx context.Context, index, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}

	opts := []func(*esapi.IndexRequest){
		d.client.Index.WithContext(ctx),
	}
	if id != "" {
		opts = append(opts, d.client.Index.WithDocumentID(id))
	}

	res, err := d.client.Index(index, bytes.NewReader(body), opts...)
	if err != nil {
		return fmt.Errorf("indexing document into %q: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing document into %q: %s", index, res.String())
	}
	return nil
}

func (d *Driver) AppendUnique(ctx context.Context, index, id, field, value string) error {
	script := map[string]any{
		"script": map[string]any{
			"source": fmt.Sprintf(
				"if(ctx._source.%s.contains(params.value)) { return } ctx._source.%s.add(params.value)",
				field, field,
			),
			"lang":   "painless",
			"params": map[string]any{"value": value},
		},
	}

	body, err := json.Marshal(script)
	if err != nil {
		return fmt.Errorf("marshaling update script: %w", err)
	}

	res, err := d.client.Update(
		index, id, bytes.NewReader(body),
		d.client.Update.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("updating %s/%s: %w", index, id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return store.ErrNotFound{Index: index, ID: id}
	}
	if res.IsError() {
		return fmt.Errorf("updating %s/%s: %s", index, id, res.String())
	}
	return nil
}

func (d *Driver) Search(ctx context.Context, index string, q store.Query) ([]store.Hit, error) {
	body, err := json.Marshal(searchBody(q))
	if err != nil {
		return nil, fmt.Errorf("marshaling search body: %w", err)
	}

	res, err := d.client.Search(
		d.client.Search.WithContext(ctx),
		d.client.Search.WithIndex(index),
		d.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("searching %q: %s", index, res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Index  string         `json:"_index"`
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	hits := make([]store.Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, store.Hit{Index: h.Index, ID: h.ID, Source: h.Source})
	}
	return hits, nil
}

func (d *Driver) Count(ctx context.Context, index string, q store.Query) (int, error) {
	body, err := json.Marshal(map[string]any{"query": queryClause(q)})
	if err != nil {
		return 0, fmt.Errorf("marshaling count body: %w", err)
	}

	res, err := d.client.Count(
		d.client.Count.WithContext(ctx),
		d.client.Count.WithIndex(index),
		d.client.Count.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return 0, fmt.Errorf("counting %q: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("counting %q: %s", index, res.String())
	}

	var parsed struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return parsed.Count, nil
}

func (d *Driver) DeleteByQuery(ctx context.Context, index string, q store.Query) (int, error) {
	body, err := json.Marshal(map[string]any{"query": queryClause(q)})
	if err != nil {
		return 0, fmt.Errorf("marshaling delete body: %w", err)
	}

	res, err := d.client.DeleteByQuery(
		[]string{index},
		bytes.NewReader(body),
		d.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting by query in %q: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("deleting by query in %q: %s", index, res.String())
	}

	var parsed struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decoding delete response: %w", err)
	}
	return parsed.Deleted, nil
}

func (d *Driver) DeleteByID(ctx context.Context, index, id string) error {
	res, err := d.client.Delete(
		index, id,
		d.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", index, id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return store.ErrNotFound{Index: index, ID: id}
	}
	if res.IsError() {
		return fmt.Errorf("deleting %s/%s: %s", index, id, res.String())
	}
	return nil
}

func (d *Driver) ListIndices(ctx context.Context, prefix string) ([]string, error) {
	res, err := d.client.Indices.Get(
		[]string{prefix + "*"},
		d.client.Indices.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("listing indices %q: %w", prefix, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("listing indices %q: %s", prefix, res.String())
	}

	var parsed map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding indices response: %w", err)
	}

	names := make([]string, 0, len(parsed))
	for name := range parsed {
		names = append(names, name)
	}
	return names, nil
}

func (d *Driver) DeleteIndex(ctx context.Context, index string) error {
	res, err := d.client.Indices.Delete(
		[]string{index},
		d.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("deleting index %q: %w", index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return store.ErrNotFound{Index: index}
	}
	if res.IsError() {
		return fmt.Errorf("deleting index %q: %s", index, res.String())
	}

	d.logger.Debug("index deleted", zap.String("index", index))
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// The underlying HTTP transport doesn't require explicit cleanup.
	return nil
}

func searchBody(q store.Query) map[string]any {
	body := map[string]any{"query": queryClause(q)}

	if q.Size > 0 {
		body["size"] = q.Size
	}
	if q.SortField != "" {
		order := "asc"
		if q.SortDesc {
			order = "desc"
		}
		body["sort"] = []any{
			map[string]any{q.SortField: map[string]any{"order": order}},
		}
	}
	if len(q.ExcludeFields) > 0 {
		body["_source"] = map[string]any{"excludes": q.ExcludeFields}
	}

	return body
}

func queryClause(q store.Query) map[string]any {
	if q.Field == "" {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{
		"match": map[string]any{q.Field: q.Value},
	}
}

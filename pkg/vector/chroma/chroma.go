// Package chroma provides a native vector backend on a Chroma server,
// spoken to over its v2 REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/vecstore/pkg/vector"
)

const (
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"

	defaultScanLimit = 1000
	rebuildBatch     = 500
	requestTimeout   = 60 * time.Second
)

// Reserved record metadata keys. User metadata is kept whole as JSON under
// metaPayload; its scalar fields are also copied to the top level so that
// where clauses can match them.
const (
	metaPayload   = "_metadata"
	metaCreatedAt = "_created_at"
	metaUpdatedAt = "_updated_at"
)

// Collection metadata keys recording the vecstore definition.
const (
	collMetric    = "vecstore_metric"
	collDimension = "vecstore_dimension"
)

var includeRecords = []string{"metadatas", "embeddings"}

// Config holds configuration for the Chroma backend.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	Tenant   string
	Database string

	// CollectionPrefix namespaces Chroma collection names. Defaults to "vecstore-".
	CollectionPrefix string

	Index vector.IndexParams

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Backend implements vector.NativeBackend on Chroma. Each vecstore
// collection maps to one Chroma collection.
type Backend struct {
	root   string
	base   string
	prefix string
	index  vector.IndexParams
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu  sync.RWMutex
	ids map[string]string
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("chroma: status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound
}

// New creates a Backend for the configured server. No request is made until
// Probe.
func New(c Config) (*Backend, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}
	root, err := url.Parse(strings.TrimSuffix(c.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing chroma URL: %w", err)
	}

	tenant := c.Tenant
	if tenant == "" {
		tenant = DefaultTenant
	}
	database := c.Database
	if database == "" {
		database = DefaultDatabase
	}
	prefix := c.CollectionPrefix
	if prefix == "" {
		prefix = "vecstore-"
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Backend{
		root:   root.String(),
		base:   fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s", root.String(), url.PathEscape(tenant), url.PathEscape(database)),
		prefix: prefix,
		index:  c.Index.WithDefaults(),
		client: client,
		logger: logger,
		now:    time.Now,
		ids:    make(map[string]string),
	}, nil
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "chroma"
}

// Probe checks that the server answers its heartbeat.
func (b *Backend) Probe(ctx context.Context) error {
	if err := b.do(ctx, http.MethodGet, b.root+"/api/v2/heartbeat", nil, nil); err != nil {
		return fmt.Errorf("%w: chroma heartbeat: %v", vector.ErrBackendUnavailable, err)
	}

	b.logger.Info("chroma backend initialized",
		"url", b.root,
		"m", b.index.M,
		"ef_construction", b.index.EfConstruction,
	)
	return nil
}

// EnsureIndex creates the Chroma collection. An existing collection with a
// different dimension or metric is dropped and recreated.
func (b *Backend) EnsureIndex(ctx context.Context, c vector.Collection) error {
	name := b.collectionName(c.Name)

	var existing chromaCollection
	err := b.do(ctx, http.MethodGet, b.base+"/collections/"+url.PathEscape(name), nil, &existing)
	switch {
	case err == nil:
		if sameDefinition(existing.Metadata, c) {
			b.remember(c.Name, existing.ID)
			return nil
		}
		b.logger.Warn("collection definition changed, recreating chroma collection",
			"collection", c.Name,
			"dimension", c.Dimension,
			"metric", string(c.Metric),
		)
		if err := b.DeleteCollection(ctx, c.Name); err != nil {
			return err
		}
	case !isNotFound(err):
		return fmt.Errorf("reading chroma collection %s: %w", name, err)
	}

	return b.create(ctx, c)
}

// RebuildIndex rebuilds the HNSW graph by recreating the collection and
// re-adding every record. Chroma has no in-place rebuild.
func (b *Backend) RebuildIndex(ctx context.Context, c vector.Collection) error {
	if err := b.EnsureIndex(ctx, c); err != nil {
		return err
	}
	id, err := b.collectionID(ctx, c.Name)
	if err != nil {
		return err
	}

	records, err := b.readAll(ctx, id)
	if err != nil {
		return fmt.Errorf("reading records of %s: %w", c.Name, err)
	}

	if err := b.DeleteCollection(ctx, c.Name); err != nil {
		return err
	}
	if err := b.create(ctx, c); err != nil {
		return err
	}
	id, err = b.collectionID(ctx, c.Name)
	if err != nil {
		return err
	}

	for start := 0; start < len(records.IDs); start += rebuildBatch {
		end := min(start+rebuildBatch, len(records.IDs))
		req := upsertRequest{
			IDs:        records.IDs[start:end],
			Embeddings: records.Embeddings[start:end],
			Metadatas:  records.Metadatas[start:end],
		}
		if err := b.do(ctx, http.MethodPost, b.recordsURL(id, "upsert"), req, nil); err != nil {
			return fmt.Errorf("re-adding records of %s: %w", c.Name, err)
		}
	}

	b.logger.Info("rebuilt chroma collection", "collection", c.Name, "records", len(records.IDs))
	return nil
}

// Store upserts records. created_at is carried over from records that
// already exist.
func (b *Backend) Store(ctx context.Context, collection string, vectors []vector.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	id, err := b.collectionID(ctx, collection)
	if err != nil {
		return err
	}

	ids := make([]string, len(vectors))
	for i, v := range vectors {
		ids[i] = v.ID
	}

	var existing getResponse
	if err := b.do(ctx, http.MethodPost, b.recordsURL(id, "get"), getRequest{IDs: ids, Include: []string{"metadatas"}}, &existing); err != nil {
		return fmt.Errorf("reading existing records: %w", err)
	}
	created := make(map[string]int64, len(existing.IDs))
	for i, rid := range existing.IDs {
		if i < len(existing.Metadatas) {
			created[rid] = toInt64(existing.Metadatas[i][metaCreatedAt])
		}
	}

	now := b.now().UnixMilli()
	req := upsertRequest{
		IDs:        ids,
		Embeddings: make([][]float32, len(vectors)),
		Metadatas:  make([]map[string]any, len(vectors)),
	}
	for i, v := range vectors {
		createdAt := now
		switch {
		case created[v.ID] != 0:
			createdAt = created[v.ID]
		case !v.CreatedAt.IsZero():
			createdAt = v.CreatedAt.UnixMilli()
		}

		meta, err := encodeMetadata(v.Metadata, createdAt, now)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", v.ID, err)
		}
		req.Embeddings[i] = v.Embedding
		req.Metadatas[i] = meta
	}

	if err := b.do(ctx, http.MethodPost, b.recordsURL(id, "upsert"), req, nil); err != nil {
		return fmt.Errorf("upserting records: %w", err)
	}

	b.logger.Debug("stored vectors in chroma",
		"collection", collection,
		"count", len(vectors),
	)
	return nil
}

// SimilaritySearch queries the collection's HNSW index.
func (b *Backend) SimilaritySearch(ctx context.Context, collection string, query []float32, topK int, metric vector.Metric, filter vector.Filter) ([]vector.SearchResult, error) {
	if topK <= 0 {
		return []vector.SearchResult{}, nil
	}

	id, err := b.collectionID(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrBackendQueryFailed, err)
	}

	var resp queryResponse
	err = b.do(ctx, http.MethodPost, b.recordsURL(id, "query"), queryRequest{
		QueryEmbeddings: [][]float32{query},
		NResults:        topK,
		Where:           toWhere(filter),
		Include:         []string{"metadatas", "distances"},
	}, &resp)
	if err != nil {
		b.logger.Warn("chroma search failed",
			"collection", collection,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", vector.ErrBackendQueryFailed, err)
	}

	results := []vector.SearchResult{}
	if len(resp.IDs) == 0 {
		return results, nil
	}

	for i, rid := range resp.IDs[0] {
		r := vector.SearchResult{ID: rid}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			r.Score = score(metric, resp.Distances[0][i])
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			r.Metadata = decodeMetadata(resp.Metadatas[0][i])
		}
		results = append(results, r)
	}

	vector.SortResults(results)

	b.logger.Debug("queried chroma",
		"collection", collection,
		"results", len(results),
	)
	return results, nil
}

// BatchGet returns the stored vectors among ids.
func (b *Backend) BatchGet(ctx context.Context, collection string, ids []string) ([]vector.Vector, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	id, err := b.collectionID(ctx, collection)
	if err != nil {
		return nil, err
	}

	var resp getResponse
	if err := b.do(ctx, http.MethodPost, b.recordsURL(id, "get"), getRequest{IDs: ids, Include: includeRecords}, &resp); err != nil {
		return nil, fmt.Errorf("getting records: %w", err)
	}
	return toVectors(collection, resp), nil
}

// Scan returns up to limit vectors in the server's storage order.
func (b *Backend) Scan(ctx context.Context, collection string, limit int) ([]vector.Vector, error) {
	if limit <= 0 {
		limit = defaultScanLimit
	}

	id, err := b.collectionID(ctx, collection)
	if err != nil {
		return nil, err
	}

	var resp getResponse
	if err := b.do(ctx, http.MethodPost, b.recordsURL(id, "get"), getRequest{Limit: limit, Include: includeRecords}, &resp); err != nil {
		return nil, fmt.Errorf("scanning records: %w", err)
	}

	out := toVectors(collection, resp)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Delete removes records by ID.
func (b *Backend) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	id, err := b.collectionID(ctx, collection)
	if err != nil {
		return err
	}

	if err := b.do(ctx, http.MethodPost, b.recordsURL(id, "delete"), deleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}

	b.logger.Debug("deleted vectors from chroma",
		"collection", collection,
		"count", len(ids),
	)
	return nil
}

// DeleteCollection drops the Chroma collection if it exists.
func (b *Backend) DeleteCollection(ctx context.Context, collection string) error {
	name := b.collectionName(collection)

	b.mu.Lock()
	delete(b.ids, collection)
	b.mu.Unlock()

	err := b.do(ctx, http.MethodDelete, b.base+"/collections/"+url.PathEscape(name), nil, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("dropping chroma collection %s: %w", name, err)
	}

	b.logger.Info("dropped chroma collection", "collection", collection)
	return nil
}

// Stats returns the record count and the collection's declared dimension.
func (b *Backend) Stats(ctx context.Context, collection string) (vector.BackendStats, error) {
	id, err := b.collectionID(ctx, collection)
	if err != nil {
		return vector.BackendStats{}, err
	}

	var count int64
	if err := b.do(ctx, http.MethodGet, b.recordsURL(id, "count"), nil, &count); err != nil {
		return vector.BackendStats{}, fmt.Errorf("counting records: %w", err)
	}

	stats := vector.BackendStats{Count: count}
	if count > 0 {
		var info chromaCollection
		name := b.collectionName(collection)
		if err := b.do(ctx, http.MethodGet, b.base+"/collections/"+url.PathEscape(name), nil, &info); err != nil {
			return vector.BackendStats{}, fmt.Errorf("reading chroma collection %s: %w", name, err)
		}
		stats.AvgDimension = float64(toInt64(info.Metadata[collDimension]))
	}
	return stats, nil
}

// Close releases idle connections.
func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *Backend) create(ctx context.Context, c vector.Collection) error {
	name := b.collectionName(c.Name)

	var created chromaCollection
	err := b.do(ctx, http.MethodPost, b.base+"/collections", createCollectionRequest{
		Name: name,
		Metadata: map[string]any{
			collMetric:    string(c.Metric),
			collDimension: c.Dimension,
		},
		Configuration: &collectionConfig{HNSW: &hnswConfig{
			Space:          space(c.Metric),
			MaxNeighbors:   b.index.M,
			EfConstruction: b.index.EfConstruction,
			EfSearch:       b.index.EfSearch,
		}},
		GetOrCreate: true,
	}, &created)
	if err != nil {
		return fmt.Errorf("creating chroma collection %s: %w", name, err)
	}
	b.remember(c.Name, created.ID)

	b.logger.Info("chroma collection ready",
		"collection", c.Name,
		"dimension", c.Dimension,
		"metric", string(c.Metric),
	)
	return nil
}

// readAll pages through every record of a collection.
func (b *Backend) readAll(ctx context.Context, id string) (getResponse, error) {
	var all getResponse
	for offset := 0; ; offset += rebuildBatch {
		var page getResponse
		if err := b.do(ctx, http.MethodPost, b.recordsURL(id, "get"), getRequest{
			Limit:   rebuildBatch,
			Offset:  offset,
			Include: includeRecords,
		}, &page); err != nil {
			return getResponse{}, err
		}

		all.IDs = append(all.IDs, page.IDs...)
		all.Embeddings = append(all.Embeddings, page.Embeddings...)
		all.Metadatas = append(all.Metadatas, page.Metadatas...)

		if len(page.IDs) < rebuildBatch {
			return all, nil
		}
	}
}

// collectionID resolves a vecstore collection to its Chroma ID.
func (b *Backend) collectionID(ctx context.Context, collection string) (string, error) {
	b.mu.RLock()
	id, ok := b.ids[collection]
	b.mu.RUnlock()
	if ok {
		return id, nil
	}

	name := b.collectionName(collection)
	var c chromaCollection
	if err := b.do(ctx, http.MethodGet, b.base+"/collections/"+url.PathEscape(name), nil, &c); err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("chroma collection %s does not exist", name)
		}
		return "", fmt.Errorf("reading chroma collection %s: %w", name, err)
	}

	b.remember(collection, c.ID)
	return c.ID, nil
}

func (b *Backend) remember(collection, id string) {
	b.mu.Lock()
	b.ids[collection] = id
	b.mu.Unlock()
}

func (b *Backend) collectionName(collection string) string {
	return b.prefix + collection
}

func (b *Backend) recordsURL(id, op string) string {
	return b.base + "/collections/" + url.PathEscape(id) + "/" + op
}

// do sends a JSON request and decodes a JSON answer into out when given.
func (b *Backend) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func sameDefinition(meta map[string]any, c vector.Collection) bool {
	metric, _ := meta[collMetric].(string)
	return metric == string(c.Metric) && toInt64(meta[collDimension]) == int64(c.Dimension)
}

func space(m vector.Metric) string {
	switch m {
	case vector.MetricEuclidean:
		return "l2"
	case vector.MetricDotProduct:
		return "ip"
	default:
		return "cosine"
	}
}

// score converts a Chroma distance into the backend-independent scale.
// Chroma reports squared L2, 1-cos and 1-dot.
func score(m vector.Metric, d float64) float64 {
	switch m {
	case vector.MetricEuclidean:
		return 1 / (1 + math.Sqrt(math.Max(d, 0)))
	default:
		return 1 - d
	}
}

// toWhere turns equality predicates into a where clause. Several predicates
// are joined with $and.
func toWhere(f vector.Filter) map[string]any {
	if len(f) == 0 {
		return nil
	}

	clauses := make([]map[string]any, 0, len(f))
	for _, key := range f.Keys() {
		clauses = append(clauses, map[string]any{key: map[string]any{"$eq": f[key]}})
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return map[string]any{"$and": clauses}
}

func encodeMetadata(meta map[string]any, createdAt, updatedAt int64) (map[string]any, error) {
	out := make(map[string]any, len(meta)+3)
	for k, v := range meta {
		if k == metaPayload || k == metaCreatedAt || k == metaUpdatedAt {
			continue
		}
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			out[k] = v
		}
	}

	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			return nil, err
		}
		out[metaPayload] = string(raw)
	}
	out[metaCreatedAt] = createdAt
	out[metaUpdatedAt] = updatedAt
	return out, nil
}

func decodeMetadata(meta map[string]any) map[string]any {
	raw, ok := meta[metaPayload].(string)
	if !ok || raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func toVectors(collection string, resp getResponse) []vector.Vector {
	out := make([]vector.Vector, 0, len(resp.IDs))
	for i, id := range resp.IDs {
		v := vector.Vector{ID: id, Collection: collection}
		if i < len(resp.Embeddings) {
			v.Embedding = resp.Embeddings[i]
		}
		if i < len(resp.Metadatas) {
			meta := resp.Metadatas[i]
			v.Metadata = decodeMetadata(meta)
			if ms := toInt64(meta[metaCreatedAt]); ms != 0 {
				v.CreatedAt = time.UnixMilli(ms).UTC()
			}
			if ms := toInt64(meta[metaUpdatedAt]); ms != 0 {
				v.UpdatedAt = time.UnixMilli(ms).UTC()
			}
		}
		out = append(out, v)
	}
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case uint:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

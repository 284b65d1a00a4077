// Package qdrant provides a native vector backend on a Qdrant server.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/vecstore/pkg/vector"
)

// Reserved payload keys. They are stripped from returned metadata.
const (
	payloadID        = "_id"
	payloadCreatedAt = "_created_at"
	payloadUpdatedAt = "_updated_at"
)

const defaultScanLimit = 1000

// pointNamespace derives deterministic point UUIDs from string vector IDs.
var pointNamespace = uuid.MustParse("6f1c7a52-3c1e-4b8e-9d0a-7e0c2b9f4a11")

// Config holds configuration for the Qdrant backend.
type Config struct {
	// Addr is the gRPC address of the server, e.g. "localhost:6334".
	Addr string

	APIKey string
	UseTLS bool

	// CollectionPrefix namespaces Qdrant collection names. Defaults to "vecstore_".
	CollectionPrefix string

	Index vector.IndexParams

	Logger *slog.Logger
}

// Backend implements vector.NativeBackend on Qdrant. Each vecstore
// collection maps to one Qdrant collection with a single dense vector.
type Backend struct {
	client *qc.Client
	prefix string
	index  vector.IndexParams
	logger *slog.Logger
}

// New creates a client for the configured server. No request is made until
// Probe.
func New(c Config) (*Backend, error) {
	if c.Addr == "" {
		return nil, errors.New("qdrant address is required")
	}

	host, portStr, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant port: %w", err)
	}

	client, err := qc.NewClient(&qc.Config{
		Host:                   host,
		Port:                   port,
		APIKey:                 c.APIKey,
		UseTLS:                 c.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	prefix := c.CollectionPrefix
	if prefix == "" {
		prefix = "vecstore_"
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Backend{
		client: client,
		prefix: prefix,
		index:  c.Index.WithDefaults(),
		logger: logger,
	}, nil
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "qdrant"
}

// Probe checks that the server answers health checks.
func (b *Backend) Probe(ctx context.Context) error {
	reply, err := b.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("%w: qdrant health check: %v", vector.ErrBackendUnavailable, err)
	}

	b.logger.Info("qdrant backend initialized",
		"version", reply.GetVersion(),
		"m", b.index.M,
		"ef_construction", b.index.EfConstruction,
	)

	return nil
}

// EnsureIndex creates the Qdrant collection. An existing collection with a
// different vector size or distance is dropped and recreated.
func (b *Backend) EnsureIndex(ctx context.Context, c vector.Collection) error {
	name := b.collectionName(c.Name)

	exists, err := b.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking qdrant collection %s: %w", name, err)
	}

	if exists {
		info, err := b.client.GetCollectionInfo(ctx, name)
		if err != nil {
			return fmt.Errorf("reading qdrant collection %s: %w", name, err)
		}
		params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
		if params.GetSize() == uint64(c.Dimension) && params.GetDistance() == distance(c.Metric) {
			return nil
		}

		b.logger.Warn("collection definition changed, recreating qdrant collection",
			"collection", c.Name,
			"old_dimension", params.GetSize(),
			"new_dimension", c.Dimension,
		)
		if err := b.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("dropping qdrant collection %s: %w", name, err)
		}
	}

	if err := b.client.CreateCollection(ctx, &qc.CreateCollection{
		CollectionName: name,
		VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
			Size:     uint64(c.Dimension),
			Distance: distance(c.Metric),
		}),
		HnswConfig: b.hnswConfig(),
	}); err != nil {
		return fmt.Errorf("creating qdrant collection %s: %w", name, err)
	}

	b.logger.Info("qdrant collection ready",
		"collection", c.Name,
		"dimension", c.Dimension,
		"metric", string(c.Metric),
	)

	return nil
}

// RebuildIndex reapplies the HNSW parameters. Qdrant rebuilds the graph in
// the background when they differ from the collection's current ones.
func (b *Backend) RebuildIndex(ctx context.Context, c vector.Collection) error {
	if err := b.EnsureIndex(ctx, c); err != nil {
		return err
	}

	if err := b.client.UpdateCollection(ctx, &qc.UpdateCollection{
		CollectionName: b.collectionName(c.Name),
		HnswConfig:     b.hnswConfig(),
	}); err != nil {
		return fmt.Errorf("updating qdrant hnsw config for %s: %w", c.Name, err)
	}

	b.logger.Info("requested qdrant index rebuild", "collection", c.Name)

	return nil
}

// Store upserts vectors as points. created_at is carried over from points
// that already exist.
func (b *Backend) Store(ctx context.Context, collection string, vectors []vector.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	name := b.collectionName(collection)

	ids := make([]*qc.PointId, len(vectors))
	for i, v := range vectors {
		ids[i] = pointID(v.ID)
	}

	existing, err := b.client.Get(ctx, &qc.GetPoints{
		CollectionName: name,
		Ids:            ids,
		WithPayload:    qc.NewWithPayloadInclude(payloadID, payloadCreatedAt),
	})
	if err != nil {
		return fmt.Errorf("reading existing points: %w", err)
	}

	created := make(map[string]int64, len(existing))
	for _, p := range existing {
		created[p.GetPayload()[payloadID].GetStringValue()] = p.GetPayload()[payloadCreatedAt].GetIntegerValue()
	}

	now := time.Now().UnixMilli()
	points := make([]*qc.PointStruct, len(vectors))
	for i, v := range vectors {
		createdAt := now
		switch {
		case created[v.ID] != 0:
			createdAt = created[v.ID]
		case !v.CreatedAt.IsZero():
			createdAt = v.CreatedAt.UnixMilli()
		}

		payload, err := qc.TryValueMap(v.Metadata)
		if err != nil {
			return fmt.Errorf("converting metadata for %s: %w", v.ID, err)
		}
		if payload == nil {
			payload = make(map[string]*qc.Value, 3)
		}
		payload[payloadID] = qc.NewValueString(v.ID)
		payload[payloadCreatedAt] = qc.NewValueInt(createdAt)
		payload[payloadUpdatedAt] = qc.NewValueInt(now)

		points[i] = &qc.PointStruct{
			Id:      ids[i],
			Vectors: qc.NewVectorsDense(v.Embedding),
			Payload: payload,
		}
	}

	if _, err := b.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: name,
		Wait:           qc.PtrOf(true),
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	b.logger.Debug("stored vectors in qdrant",
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

	req := &qc.QueryPoints{
		CollectionName: b.collectionName(collection),
		Query:          qc.NewQueryDense(query),
		Filter:         toFilter(filter),
		Limit:          qc.PtrOf(uint64(topK)),
		WithPayload:    qc.NewWithPayload(true),
	}
	if b.index.EfSearch > 0 {
		req.Params = &qc.SearchParams{HnswEf: qc.PtrOf(uint64(b.index.EfSearch))}
	}

	points, err := b.client.Query(ctx, req)
	if err != nil {
		b.logger.Warn("qdrant search failed",
			"collection", collection,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", vector.ErrBackendQueryFailed, err)
	}

	results := make([]vector.SearchResult, 0, len(points))
	for _, p := range points {
		id, metadata := splitPayload(p.GetPayload())
		results = append(results, vector.SearchResult{
			ID:       id,
			Score:    score(metric, p.GetScore()),
			Metadata: metadata,
		})
	}

	vector.SortResults(results)

	b.logger.Debug("queried qdrant",
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

	pids := make([]*qc.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}

	points, err := b.client.Get(ctx, &qc.GetPoints{
		CollectionName: b.collectionName(collection),
		Ids:            pids,
		WithPayload:    qc.NewWithPayload(true),
		WithVectors:    qc.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	out := make([]vector.Vector, 0, len(points))
	for _, p := range points {
		out = append(out, toVector(collection, p))
	}

	return out, nil
}

// Scan returns up to limit vectors in point ID order.
func (b *Backend) Scan(ctx context.Context, collection string, limit int) ([]vector.Vector, error) {
	if limit <= 0 {
		limit = defaultScanLimit
	}

	points, err := b.client.Scroll(ctx, &qc.ScrollPoints{
		CollectionName: b.collectionName(collection),
		Limit:          qc.PtrOf(uint32(limit)),
		WithPayload:    qc.NewWithPayload(true),
		WithVectors:    qc.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("scrolling points: %w", err)
	}

	out := make([]vector.Vector, 0, len(points))
	for _, p := range points {
		out = append(out, toVector(collection, p))
	}

	return out, nil
}

// Delete removes points by vector ID.
func (b *Backend) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pids := make([]*qc.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}

	if _, err := b.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: b.collectionName(collection),
		Wait:           qc.PtrOf(true),
		Points:         qc.NewPointsSelector(pids...),
	}); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	b.logger.Debug("deleted vectors from qdrant",
		"collection", collection,
		"count", len(ids),
	)

	return nil
}

// DeleteCollection drops the Qdrant collection if it exists.
func (b *Backend) DeleteCollection(ctx context.Context, collection string) error {
	name := b.collectionName(collection)

	exists, err := b.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking qdrant collection %s: %w", name, err)
	}
	if !exists {
		return nil
	}

	if err := b.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("dropping qdrant collection %s: %w", name, err)
	}

	b.logger.Info("dropped qdrant collection", "collection", collection)

	return nil
}

// Stats returns the exact point count and the collection's vector size.
func (b *Backend) Stats(ctx context.Context, collection string) (vector.BackendStats, error) {
	name := b.collectionName(collection)

	count, err := b.client.Count(ctx, &qc.CountPoints{
		CollectionName: name,
		Exact:          qc.PtrOf(true),
	})
	if err != nil {
		return vector.BackendStats{}, fmt.Errorf("counting points: %w", err)
	}

	stats := vector.BackendStats{Count: int64(count)}
	if count > 0 {
		info, err := b.client.GetCollectionInfo(ctx, name)
		if err != nil {
			return vector.BackendStats{}, fmt.Errorf("reading qdrant collection %s: %w", name, err)
		}
		stats.AvgDimension = float64(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	}

	return stats, nil
}

// Close closes the gRPC connections.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) collectionName(collection string) string {
	return b.prefix + collection
}

func (b *Backend) hnswConfig() *qc.HnswConfigDiff {
	return &qc.HnswConfigDiff{
		M:           qc.PtrOf(uint64(b.index.M)),
		EfConstruct: qc.PtrOf(uint64(b.index.EfConstruction)),
	}
}

// pointID maps a string vector ID onto a stable UUIDv5 point ID.
func pointID(id string) *qc.PointId {
	return qc.NewID(uuid.NewSHA1(pointNamespace, []byte(id)).String())
}

func distance(m vector.Metric) qc.Distance {
	switch m {
	case vector.MetricEuclidean:
		return qc.Distance_Euclid
	case vector.MetricDotProduct:
		return qc.Distance_Dot
	default:
		return qc.Distance_Cosine
	}
}

// score converts a Qdrant score into the backend-independent scale.
// Qdrant reports Euclid results as distances.
func score(m vector.Metric, s float32) float64 {
	if m == vector.MetricEuclidean {
		return 1 / (1 + float64(s))
	}
	return float64(s)
}

// toFilter turns equality predicates into Must conditions. Numbers match
// through a closed range so integer and float payloads compare equal.
func toFilter(f vector.Filter) *qc.Filter {
	if len(f) == 0 {
		return nil
	}

	must := make([]*qc.Condition, 0, len(f))
	for _, key := range f.Keys() {
		switch v := f[key].(type) {
		case string:
			must = append(must, qc.NewMatch(key, v))
		case bool:
			must = append(must, qc.NewMatchBool(key, v))
		default:
			if n, ok := toFloat(v); ok {
				must = append(must, qc.NewRange(key, &qc.Range{Gte: qc.PtrOf(n), Lte: qc.PtrOf(n)}))
			}
		}
	}

	return &qc.Filter{Must: must}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// splitPayload separates the reserved keys from user metadata.
func splitPayload(payload map[string]*qc.Value) (string, map[string]any) {
	id := payload[payloadID].GetStringValue()

	var metadata map[string]any
	for k, v := range payload {
		switch k {
		case payloadID, payloadCreatedAt, payloadUpdatedAt:
			continue
		}
		if metadata == nil {
			metadata = make(map[string]any, len(payload))
		}
		metadata[k] = fromValue(v)
	}

	return id, metadata
}

func toVector(collection string, p *qc.RetrievedPoint) vector.Vector {
	id, metadata := splitPayload(p.GetPayload())
	return vector.Vector{
		ID:         id,
		Collection: collection,
		Embedding:  p.GetVectors().GetVector().GetDenseVector().GetData(),
		Metadata:   metadata,
		CreatedAt:  time.UnixMilli(p.GetPayload()[payloadCreatedAt].GetIntegerValue()).UTC(),
		UpdatedAt:  time.UnixMilli(p.GetPayload()[payloadUpdatedAt].GetIntegerValue()).UTC(),
	}
}

// fromValue converts a payload value to the shape encoding/json produces,
// so metadata reads back the same from every backend.
func fromValue(v *qc.Value) any {
	switch k := v.GetKind().(type) {
	case *qc.Value_DoubleValue:
		return k.DoubleValue
	case *qc.Value_IntegerValue:
		return float64(k.IntegerValue)
	case *qc.Value_StringValue:
		return k.StringValue
	case *qc.Value_BoolValue:
		return k.BoolValue
	case *qc.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for key, val := range k.StructValue.GetFields() {
			out[key] = fromValue(val)
		}
		return out
	case *qc.Value_ListValue:
		out := make([]any, 0, len(k.ListValue.GetValues()))
		for _, val := range k.ListValue.GetValues() {
			out = append(out, fromValue(val))
		}
		return out
	}
	return nil
}

// Package sqlitevec provides a SQLite-backed native vector backend using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/vecstore/pkg/similarity"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

// Backend implements vector.NativeBackend using one vec0 virtual table per
// collection plus a shared document table mapping string IDs to vec0 rowids.
type Backend struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	mu          sync.RWMutex
	collections map[string]vector.Collection
}

// Config holds configuration for the sqlite-vec backend.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	Logger *slog.Logger
}

// New opens the database and creates the shared tables. Call Probe to check
// that the sqlite-vec extension is usable.
func New(c Config) (*Backend, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Backend{
		db:          db,
		logger:      logger,
		now:         time.Now,
		collections: make(map[string]vector.Collection),
	}, nil
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "sqlite-vec"
}

// Probe verifies sqlite-vec is loaded and creates the shared tables.
func (b *Backend) Probe(ctx context.Context) error {
	var vecVersion string
	if err := b.db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		return fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrBackendUnavailable, err)
	}

	// vec0 virtual tables use integer rowids, so documents map their
	// string IDs to rowids here.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vec_documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			norm REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE (collection, doc_id)
		)`,
		`CREATE TABLE IF NOT EXISTS vec_collections (
			name TEXT PRIMARY KEY,
			dimension INTEGER NOT NULL,
			metric TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating sqlite-vec tables: %w", err)
		}
	}

	if err := b.loadCollections(ctx); err != nil {
		return err
	}

	b.logger.Info("sqlite-vec vector backend initialized",
		"vec_version", vecVersion,
	)

	return nil
}

func (b *Backend) loadCollections(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx, `SELECT name, dimension, metric FROM vec_collections`)
	if err != nil {
		return fmt.Errorf("loading collections: %w", err)
	}
	defer rows.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	for rows.Next() {
		var c vector.Collection
		if err := rows.Scan(&c.Name, &c.Dimension, &c.Metric); err != nil {
			return fmt.Errorf("scanning collection: %w", err)
		}
		b.collections[c.Name] = c
	}
	return rows.Err()
}

// EnsureIndex creates the collection's vec0 table. It is a no-op when the
// table already exists with the same dimension and metric. A changed
// definition drops the old table and its documents.
func (b *Backend) EnsureIndex(ctx context.Context, c vector.Collection) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.collections[c.Name]
	if ok && existing.Dimension == c.Dimension && existing.Metric == c.Metric {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if ok {
		b.logger.Warn("collection definition changed, dropping sqlite-vec table",
			"collection", c.Name,
			"old_dimension", existing.Dimension,
			"new_dimension", c.Dimension,
		)
		if err := dropCollection(ctx, tx, c.Name); err != nil {
			return err
		}
	}

	create := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d] distance_metric=%s)`,
		tableName(c.Name), c.Dimension, distanceMetric(c.Metric),
	)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating vec0 table for %s: %w", c.Name, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vec_collections(name, dimension, metric) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET dimension = excluded.dimension, metric = excluded.metric`,
		c.Name, c.Dimension, string(c.Metric),
	); err != nil {
		return fmt.Errorf("recording collection %s: %w", c.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	b.collections[c.Name] = vector.Collection{Name: c.Name, Dimension: c.Dimension, Metric: c.Metric}

	b.logger.Info("sqlite-vec index ready",
		"collection", c.Name,
		"dimension", c.Dimension,
		"metric", string(c.Metric),
	)

	return nil
}

// RebuildIndex rewrites every embedding of the collection's vec0 table,
// compacting its chunks.
func (b *Backend) RebuildIndex(ctx context.Context, c vector.Collection) error {
	if _, err := b.collection(c.Name); err != nil {
		return err
	}

	table := tableName(c.Name)

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT rowid, embedding FROM %s`, table))
	if err != nil {
		return fmt.Errorf("reading embeddings: %w", err)
	}

	type entry struct {
		rowID int64
		blob  []byte
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.rowID, &e.blob); err != nil {
			rows.Close()
			return fmt.Errorf("scanning embedding: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating embeddings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return fmt.Errorf("clearing vec0 table: %w", err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, table)
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, insert, e.rowID, e.blob); err != nil {
			return fmt.Errorf("reinserting rowid %d: %w", e.rowID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	b.logger.Info("rebuilt sqlite-vec index",
		"collection", c.Name,
		"vectors", len(entries),
	)

	return nil
}

// Store upserts vectors. vec0 does not support UPDATE, so replaced
// embeddings are deleted and reinserted under the same rowid.
func (b *Backend) Store(ctx context.Context, collection string, vectors []vector.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	if _, err := b.collection(collection); err != nil {
		return err
	}
	table := tableName(collection)

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := b.now().UnixMilli()
	for _, v := range vectors {
		metadata, err := json.Marshal(metadataOrEmpty(v.Metadata))
		if err != nil {
			return fmt.Errorf("marshaling metadata for %s: %w", v.ID, err)
		}

		createdAt := now
		if !v.CreatedAt.IsZero() {
			createdAt = v.CreatedAt.UnixMilli()
		}

		var rowID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO vec_documents(collection, doc_id, metadata, norm, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(collection, doc_id) DO UPDATE SET
				metadata = excluded.metadata,
				norm = excluded.norm,
				updated_at = excluded.updated_at
			RETURNING rowid`,
			collection, v.ID, string(metadata), similarity.Magnitude(v.Embedding), createdAt, now,
		).Scan(&rowID)
		if err != nil {
			return fmt.Errorf("upserting document %s: %w", v.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, table), rowID,
		); err != nil {
			return fmt.Errorf("deleting old embedding for doc %s: %w", v.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, table),
			rowID, vector.EncodeFloat32(v.Embedding),
		); err != nil {
			return fmt.Errorf("inserting embedding for doc %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	b.logger.Debug("stored vectors in sqlite-vec",
		"collection", collection,
		"count", len(vectors),
	)

	return nil
}

// SimilaritySearch finds the topK most similar documents. Unfiltered cosine
// and euclidean queries use the vec0 KNN index. Filtered or dot product
// queries score the candidate rows with sqlite-vec distance functions.
func (b *Backend) SimilaritySearch(ctx context.Context, collection string, query []float32, topK int, metric vector.Metric, filter vector.Filter) ([]vector.SearchResult, error) {
	if topK <= 0 {
		return []vector.SearchResult{}, nil
	}

	c, err := b.collection(collection)
	if err != nil {
		return nil, err
	}
	if uint(len(query)) != c.Dimension {
		return []vector.SearchResult{}, nil
	}

	qnorm := similarity.Magnitude(query)

	var (
		stmt string
		args []any
	)
	useIndex := len(filter) == 0 && metric != vector.MetricDotProduct && qnorm > 0
	if useIndex && metric == vector.MetricCosine {
		// vec0 has no cosine distance for zero vectors; score them by scan.
		zero, err := b.hasZeroVectors(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vector.ErrBackendQueryFailed, err)
		}
		useIndex = !zero
	}
	if useIndex {
		stmt, args = knnQuery(collection, query, topK, metric)
	} else {
		stmt, args = scanQuery(collection, query, qnorm, topK, metric, filter)
	}

	rows, err := b.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		b.logger.Warn("sqlite-vec search failed",
			"collection", collection,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", vector.ErrBackendQueryFailed, err)
	}
	defer rows.Close()

	results := make([]vector.SearchResult, 0, topK)
	for rows.Next() {
		var (
			r        vector.SearchResult
			metadata []byte
		)
		if err := rows.Scan(&r.ID, &metadata, &r.Score); err != nil {
			return nil, fmt.Errorf("%w: scanning result: %v", vector.ErrBackendQueryFailed, err)
		}
		if err := decodeMetadata(metadata, &r.Metadata); err != nil {
			return nil, fmt.Errorf("%w: %v", vector.ErrBackendQueryFailed, err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating results: %v", vector.ErrBackendQueryFailed, err)
	}

	results = vector.TopK(results, topK)

	b.logger.Debug("queried sqlite-vec",
		"collection", collection,
		"results", len(results),
	)

	return results, nil
}

// knnQuery ranks with the vec0 index, which orders by the table's own
// distance metric.
func knnQuery(collection string, query []float32, topK int, metric vector.Metric) (string, []any) {
	score := "CASE WHEN d.norm = 0 OR ve.distance IS NULL THEN 0.0 ELSE 1.0 - ve.distance END"
	if metric == vector.MetricEuclidean {
		score = "1.0 / (1.0 + ve.distance)"
	}

	stmt := fmt.Sprintf(`
		SELECT d.doc_id, d.metadata, %s AS score
		FROM %s ve
		INNER JOIN vec_documents d ON d.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance, d.doc_id`,
		score, tableName(collection),
	)

	return stmt, []any{vector.EncodeFloat32(query), topK}
}

func (b *Backend) hasZeroVectors(ctx context.Context, collection string) (bool, error) {
	var zero bool
	err := b.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM vec_documents WHERE collection = ? AND norm = 0)`,
		collection,
	).Scan(&zero)
	if err != nil {
		return false, fmt.Errorf("checking for zero vectors: %w", err)
	}
	return zero, nil
}

// scanQuery scores every candidate row. Metadata predicates select the
// candidate rowids from the document table.
func scanQuery(collection string, query []float32, qnorm float64, topK int, metric vector.Metric, filter vector.Filter) (string, []any) {
	blob := vector.EncodeFloat32(query)

	var (
		score string
		args  []any
	)
	switch {
	case qnorm == 0 && metric != vector.MetricEuclidean:
		score = "0.0"
	case metric == vector.MetricEuclidean:
		score = "1.0 / (1.0 + vec_distance_l2(ve.embedding, ?))"
		args = append(args, blob)
	case metric == vector.MetricDotProduct:
		score = "CASE WHEN d.norm = 0 THEN 0.0 ELSE (1.0 - vec_distance_cosine(ve.embedding, ?)) * d.norm * ? END"
		args = append(args, blob, qnorm)
	default:
		score = "CASE WHEN d.norm = 0 THEN 0.0 ELSE 1.0 - vec_distance_cosine(ve.embedding, ?) END"
		args = append(args, blob)
	}

	where := []string{"collection = ?"}
	args = append(args, collection)
	for _, key := range filter.Keys() {
		where = append(where, "json_extract(metadata, ?) = ?")
		args = append(args, jsonPath(key), filter[key])
	}
	args = append(args, topK)

	stmt := fmt.Sprintf(`
		SELECT d.doc_id, d.metadata, %s AS score
		FROM %s ve
		INNER JOIN vec_documents d ON d.rowid = ve.rowid
		WHERE ve.rowid IN (SELECT rowid FROM vec_documents WHERE %s)
		ORDER BY score DESC, d.doc_id
		LIMIT ?`,
		score, tableName(collection), strings.Join(where, " AND "),
	)

	return stmt, args
}

// BatchGet retrieves documents by their IDs.
func (b *Backend) BatchGet(ctx context.Context, collection string, ids []string) ([]vector.Vector, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := b.collection(collection); err != nil {
		return nil, err
	}

	placeholders, args := inClause(ids)
	stmt := fmt.Sprintf(`
		SELECT d.doc_id, d.metadata, d.created_at, d.updated_at, ve.embedding
		FROM vec_documents d
		INNER JOIN %s ve ON ve.rowid = d.rowid
		WHERE d.collection = ? AND d.doc_id IN (%s)
		ORDER BY d.doc_id`,
		tableName(collection), placeholders,
	)

	return b.queryVectors(ctx, collection, stmt, append([]any{collection}, args...))
}

// Scan returns up to limit vectors, newest first.
func (b *Backend) Scan(ctx context.Context, collection string, limit int) ([]vector.Vector, error) {
	if _, err := b.collection(collection); err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf(`
		SELECT d.doc_id, d.metadata, d.created_at, d.updated_at, ve.embedding
		FROM vec_documents d
		INNER JOIN %s ve ON ve.rowid = d.rowid
		WHERE d.collection = ?
		ORDER BY d.updated_at DESC, d.doc_id
		LIMIT ?`,
		tableName(collection),
	)

	return b.queryVectors(ctx, collection, stmt, []any{collection, limit})
}

func (b *Backend) queryVectors(ctx context.Context, collection, stmt string, args []any) ([]vector.Vector, error) {
	rows, err := b.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []vector.Vector
	for rows.Next() {
		var (
			v                    vector.Vector
			metadata, blob       []byte
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&v.ID, &metadata, &createdAt, &updatedAt, &blob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := decodeMetadata(metadata, &v.Metadata); err != nil {
			return nil, err
		}
		if v.Embedding, err = vector.DecodeFloat32(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", v.ID, err)
		}
		v.Collection = collection
		v.CreatedAt = time.UnixMilli(createdAt).UTC()
		v.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return out, nil
}

// Delete removes documents by their IDs.
func (b *Backend) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := b.collection(collection); err != nil {
		return err
	}

	placeholders, args := inClause(ids)
	args = append([]any{collection}, args...)

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE rowid IN (SELECT rowid FROM vec_documents WHERE collection = ? AND doc_id IN (%s))`,
		tableName(collection), placeholders,
	), args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM vec_documents WHERE collection = ? AND doc_id IN (%s)`, placeholders,
	), args...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	b.logger.Debug("deleted documents from sqlite-vec",
		"collection", collection,
		"count", len(ids),
	)

	return nil
}

// DeleteCollection drops the collection's vec0 table and documents.
func (b *Backend) DeleteCollection(ctx context.Context, collection string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.collections[collection]; !ok {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := dropCollection(ctx, tx, collection); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	delete(b.collections, collection)

	b.logger.Info("dropped sqlite-vec collection", "collection", collection)

	return nil
}

// Stats counts the collection's documents. Every embedding in a vec0 table
// has the table's dimension.
func (b *Backend) Stats(ctx context.Context, collection string) (vector.BackendStats, error) {
	c, err := b.collection(collection)
	if err != nil {
		return vector.BackendStats{}, err
	}

	var stats vector.BackendStats
	if err := b.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vec_documents WHERE collection = ?`, collection,
	).Scan(&stats.Count); err != nil {
		return vector.BackendStats{}, fmt.Errorf("counting documents: %w", err)
	}

	if stats.Count > 0 {
		stats.AvgDimension = float64(c.Dimension)
	}

	return stats, nil
}

// Close releases resources held by the backend.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) collection(name string) (vector.Collection, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.collections[name]
	if !ok {
		return vector.Collection{}, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
	}
	return c, nil
}

func dropCollection(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableName(name))); err != nil {
		return fmt.Errorf("dropping vec0 table for %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_documents WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("deleting documents for %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting collection record %s: %w", name, err)
	}
	return nil
}

// tableName returns the quoted vec0 table identifier for a collection.
func tableName(collection string) string {
	return `"vec_` + strings.ReplaceAll(collection, `"`, `""`) + `"`
}

// distanceMetric maps a metric onto a vec0 distance_metric. Dot product
// collections index by cosine and rescale by stored norms at query time.
func distanceMetric(m vector.Metric) string {
	if m == vector.MetricEuclidean {
		return "l2"
	}
	return "cosine"
}

func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

func inClause(ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}

func decodeMetadata(raw []byte, dst *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding metadata: %w", err)
	}
	return nil
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

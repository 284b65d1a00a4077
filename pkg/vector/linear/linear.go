// Package linear provides the exact-search fallback backend.
//
// Embeddings are stored as opaque float32 blobs in a plain SQL table. A query
// scans a bounded window of the collection's newest rows, scores each row in
// Go and keeps the best topK. Metadata filters are evaluated by the database
// so the scan window only holds candidate rows.
package linear

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqljson"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"
	_ "modernc.org/sqlite"             // register the cgo-free SQLite driver as "sqlite"

	"github.com/papercomputeco/vecstore/pkg/similarity"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

const (
	// DefaultScanLimit bounds the rows scored per query.
	DefaultScanLimit = 1000

	// DefaultDriver is the database/sql driver used when Config.Driver is empty.
	DefaultDriver = "sqlite"

	tableName = "vecstore_vectors"
)

var columns = []string{"id", "embedding", "metadata", "created_at", "updated_at"}

// Config holds configuration for the linear backend.
type Config struct {
	// Driver is the database/sql driver name: "sqlite" (default) or "pgx".
	Driver string

	// DSN is the data source name. For SQLite use ":memory:" for an
	// in-process database.
	DSN string

	// ScanLimit bounds the rows scanned per query. Defaults to DefaultScanLimit.
	ScanLimit int

	Logger *slog.Logger
}

// Backend implements vector.Backend with exact linear scans.
type Backend struct {
	db        *sql.DB
	dialect   string
	scanLimit int
	logger    *slog.Logger
	now       func() time.Time
}

// New opens the database and creates the vector table if needed.
func New(ctx context.Context, c Config) (*Backend, error) {
	driver := c.Driver
	if driver == "" {
		driver = DefaultDriver
	}

	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	if c.DSN == "" {
		return nil, errors.New("linear backend DSN is required")
	}

	// pgx/v5/stdlib registers itself as "pgx" only.
	if driver == "postgres" {
		driver = "pgx"
	}

	db, err := sql.Open(driver, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each SQLite connection to ":memory:" is its own database.
	if d == dialect.SQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	for _, stmt := range schema(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating vector table: %w", err)
		}
	}

	scanLimit := c.ScanLimit
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Info("linear vector backend initialized",
		"driver", driver,
		"scan_limit", scanLimit,
	)

	return &Backend{
		db:        db,
		dialect:   d,
		scanLimit: scanLimit,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func dialectFor(driver string) (string, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return dialect.SQLite, nil
	case "pgx", "postgres":
		return dialect.Postgres, nil
	default:
		return "", fmt.Errorf("unsupported linear backend driver: %s", driver)
	}
}

func schema(d string) []string {
	if d == dialect.Postgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS vecstore_vectors (
				collection TEXT NOT NULL,
				id TEXT NOT NULL,
				embedding BYTEA NOT NULL,
				metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
				dimension INTEGER NOT NULL,
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (collection, id)
			)`,
			`CREATE INDEX IF NOT EXISTS vecstore_vectors_scan ON vecstore_vectors (collection, updated_at DESC)`,
		}
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS vecstore_vectors (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			embedding BLOB NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			dimension INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS vecstore_vectors_scan ON vecstore_vectors (collection, updated_at DESC)`,
	}
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "linear"
}

// Store upserts vectors. created_at is kept from the first write.
func (b *Backend) Store(ctx context.Context, collection string, vectors []vector.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

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

		query, args := entsql.Dialect(b.dialect).
			Insert(tableName).
			Columns("collection", "id", "embedding", "metadata", "dimension", "created_at", "updated_at").
			Values(collection, v.ID, vector.EncodeFloat32(v.Embedding), string(metadata), len(v.Embedding), createdAt, now).
			OnConflict(
				entsql.ConflictColumns("collection", "id"),
				entsql.ResolveWith(func(u *entsql.UpdateSet) {
					u.SetExcluded("embedding")
					u.SetExcluded("metadata")
					u.SetExcluded("dimension")
					u.SetExcluded("updated_at")
				}),
			).
			Query()

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upserting vector %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	b.logger.Debug("stored vectors",
		"collection", collection,
		"count", len(vectors),
	)

	return nil
}

// SimilaritySearch scores up to ScanLimit rows with the collection's metric.
// Rows stored with a different dimension than the query are skipped.
func (b *Backend) SimilaritySearch(ctx context.Context, collection string, query []float32, topK int, metric vector.Metric, filter vector.Filter) ([]vector.SearchResult, error) {
	if topK <= 0 {
		return []vector.SearchResult{}, nil
	}

	preds := []*entsql.Predicate{
		entsql.EQ("collection", collection),
		entsql.EQ("dimension", len(query)),
	}
	for _, key := range filter.Keys() {
		preds = append(preds, sqljson.ValueEQ("metadata", filter[key], sqljson.Path(key)))
	}

	stmt, args := entsql.Dialect(b.dialect).
		Select(columns...).
		From(entsql.Table(tableName)).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("updated_at"), "id").
		Limit(b.scanLimit).
		Query()

	rows, err := b.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %v", vector.ErrBackendQueryFailed, collection, err)
	}
	defer rows.Close()

	m := similarity.Metric(metric)
	results := make([]vector.SearchResult, 0, topK)
	scanned := 0
	for rows.Next() {
		v, err := scanVector(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vector.ErrBackendQueryFailed, err)
		}
		scanned++

		results = append(results, vector.SearchResult{
			ID:       v.ID,
			Score:    similarity.Score(m, query, v.Embedding),
			Metadata: v.Metadata,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", vector.ErrBackendQueryFailed, err)
	}

	results = vector.TopK(results, topK)

	b.logger.Debug("linear search",
		"collection", collection,
		"scanned", scanned,
		"results", len(results),
	)

	return results, nil
}

// Delete removes vectors by ID.
func (b *Backend) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args := entsql.Dialect(b.dialect).
		Delete(tableName).
		Where(entsql.And(
			entsql.EQ("collection", collection),
			entsql.In("id", anySlice(ids)...),
		)).
		Query()

	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}

	b.logger.Debug("deleted vectors",
		"collection", collection,
		"count", len(ids),
	)

	return nil
}

// BatchGet returns the stored vectors among ids.
func (b *Backend) BatchGet(ctx context.Context, collection string, ids []string) ([]vector.Vector, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args := entsql.Dialect(b.dialect).
		Select(columns...).
		From(entsql.Table(tableName)).
		Where(entsql.And(
			entsql.EQ("collection", collection),
			entsql.In("id", anySlice(ids)...),
		)).
		OrderBy("id").
		Query()

	return b.queryVectors(ctx, collection, query, args)
}

// DeleteCollection removes every row of collection.
func (b *Backend) DeleteCollection(ctx context.Context, collection string) error {
	query, args := entsql.Dialect(b.dialect).
		Delete(tableName).
		Where(entsql.EQ("collection", collection)).
		Query()

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting collection %s: %w", collection, err)
	}

	removed, _ := res.RowsAffected()
	b.logger.Info("deleted collection rows",
		"collection", collection,
		"rows", removed,
	)

	return nil
}

// Stats counts the collection's rows and averages their dimension.
func (b *Backend) Stats(ctx context.Context, collection string) (vector.BackendStats, error) {
	query, args := entsql.Dialect(b.dialect).
		Select(entsql.Count("*"), "COALESCE(AVG(dimension), 0)").
		From(entsql.Table(tableName)).
		Where(entsql.EQ("collection", collection)).
		Query()

	var stats vector.BackendStats
	if err := b.db.QueryRowContext(ctx, query, args...).Scan(&stats.Count, &stats.AvgDimension); err != nil {
		return vector.BackendStats{}, fmt.Errorf("collection stats: %w", err)
	}

	return stats, nil
}

// Scan returns up to limit vectors, newest first.
func (b *Backend) Scan(ctx context.Context, collection string, limit int) ([]vector.Vector, error) {
	if limit <= 0 {
		limit = b.scanLimit
	}

	query, args := entsql.Dialect(b.dialect).
		Select(columns...).
		From(entsql.Table(tableName)).
		Where(entsql.EQ("collection", collection)).
		OrderBy(entsql.Desc("updated_at"), "id").
		Limit(limit).
		Query()

	return b.queryVectors(ctx, collection, query, args)
}

// Close releases the database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) queryVectors(ctx context.Context, collection, query string, args []any) ([]vector.Vector, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var out []vector.Vector
	for rows.Next() {
		v, err := scanVector(rows)
		if err != nil {
			return nil, err
		}
		v.Collection = collection
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	return out, nil
}

func scanVector(rows *sql.Rows) (vector.Vector, error) {
	var (
		v                    vector.Vector
		blob, metadata       []byte
		createdAt, updatedAt int64
	)

	if err := rows.Scan(&v.ID, &blob, &metadata, &createdAt, &updatedAt); err != nil {
		return v, fmt.Errorf("scanning vector row: %w", err)
	}

	emb, err := vector.DecodeFloat32(blob)
	if err != nil {
		return v, fmt.Errorf("decoding embedding for %s: %w", v.ID, err)
	}
	v.Embedding = emb

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &v.Metadata); err != nil {
			return v, fmt.Errorf("decoding metadata for %s: %w", v.ID, err)
		}
	}

	v.CreatedAt = time.UnixMilli(createdAt).UTC()
	v.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return v, nil
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func anySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

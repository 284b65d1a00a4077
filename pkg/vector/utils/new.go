// Package vectorutils builds vector backends from configuration.
package vectorutils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/vecstore/pkg/vector"
	"github.com/papercomputeco/vecstore/pkg/vector/chroma"
	"github.com/papercomputeco/vecstore/pkg/vector/linear"
	"github.com/papercomputeco/vecstore/pkg/vector/pgvector"
	"github.com/papercomputeco/vecstore/pkg/vector/qdrant"
	"github.com/papercomputeco/vecstore/pkg/vector/sqlitevec"
)

// Native provider names.
const (
	ProviderPgvector  = "pgvector"
	ProviderSQLiteVec = "sqlite-vec"
	ProviderQdrant    = "qdrant"
	ProviderChroma    = "chroma"
	ProviderNone      = "none"
)

// NewBackendOpts configures both the native and the fallback backend.
type NewBackendOpts struct {
	// ProviderType selects the native backend. Empty or "none" disables it.
	ProviderType string

	PostgresDSN   string
	SQLiteVecPath string
	QdrantAddr    string
	QdrantAPIKey  string
	ChromaURL     string

	Index vector.IndexParams

	// FallbackDriver and FallbackDSN configure the linear backend.
	FallbackDriver string
	FallbackDSN    string
	ScanLimit      int

	Logger *slog.Logger
}

// NewNativeBackend constructs the configured native backend without probing
// it. A disabled or unreachable provider yields vector.ErrBackendUnavailable.
func NewNativeBackend(ctx context.Context, o *NewBackendOpts) (vector.NativeBackend, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("backend", o.ProviderType)

	switch o.ProviderType {
	case "", ProviderNone:
		return nil, fmt.Errorf("%w: no native provider configured", vector.ErrBackendUnavailable)
	case ProviderPgvector:
		b, err := pgvector.New(ctx, pgvector.Config{
			DSN:    o.PostgresDSN,
			Index:  o.Index,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vector.ErrBackendUnavailable, err)
		}
		return b, nil
	case ProviderSQLiteVec:
		b, err := sqlitevec.New(sqlitevec.Config{
			DBPath: o.SQLiteVecPath,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vector.ErrBackendUnavailable, err)
		}
		return b, nil
	case ProviderQdrant:
		b, err := qdrant.New(qdrant.Config{
			Addr:   o.QdrantAddr,
			APIKey: o.QdrantAPIKey,
			Index:  o.Index,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vector.ErrBackendUnavailable, err)
		}
		return b, nil
	case ProviderChroma:
		b, err := chroma.New(chroma.Config{
			URL:    o.ChromaURL,
			Index:  o.Index,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vector.ErrBackendUnavailable, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

// NewFallbackBackend constructs the linear scan backend.
func NewFallbackBackend(ctx context.Context, o *NewBackendOpts) (vector.Backend, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return linear.New(ctx, linear.Config{
		Driver:    o.FallbackDriver,
		DSN:       o.FallbackDSN,
		ScanLimit: o.ScanLimit,
		Logger:    logger.With("backend", "linear"),
	})
}

// IsUnavailable reports whether err means the native backend should be
// replaced by the fallback.
func IsUnavailable(err error) bool {
	return errors.Is(err, vector.ErrBackendUnavailable)
}

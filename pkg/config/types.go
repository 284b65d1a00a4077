package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent vecstore configuration stored as config.toml
// in the .vecstore/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int                `toml:"version"`
	Storage     StorageConfig      `toml:"storage"`
	Index       IndexConfig        `toml:"index"`
	Cache       CacheConfig        `toml:"cache"`
	API         APIConfig          `toml:"api"`
	Embedding   EmbeddingConfig    `toml:"embedding"`
	Events      EventsConfig       `toml:"events"`
	Collections []CollectionConfig `toml:"collections,omitempty"`
}

// StorageConfig selects the native backend and the linear fallback.
type StorageConfig struct {
	// Provider is the native backend: "sqlite-vec", "pgvector", "qdrant",
	// "chroma" or "none" to always run on the fallback.
	Provider       string `toml:"provider,omitempty"`
	PostgresDSN    string `toml:"postgres_dsn,omitempty"`
	SQLiteVecPath  string `toml:"sqlite_vec_path,omitempty"`
	QdrantAddr     string `toml:"qdrant_addr,omitempty"`
	QdrantAPIKey   string `toml:"qdrant_api_key,omitempty"`
	ChromaURL      string `toml:"chroma_url,omitempty"`
	FallbackDriver string `toml:"fallback_driver,omitempty"`
	FallbackDSN    string `toml:"fallback_dsn,omitempty"`
	ScanLimit      uint   `toml:"scan_limit,omitempty"`
	QueryTimeout   string `toml:"query_timeout,omitempty"`
}

// IndexConfig holds HNSW tuning for native backends that support it.
type IndexConfig struct {
	M              uint `toml:"m,omitempty"`
	EfConstruction uint `toml:"ef_construction,omitempty"`
	EfSearch       uint `toml:"ef_search,omitempty"`
}

// CacheConfig holds settings for the local and distributed cache tiers.
// An empty RedisAddr disables the distributed tier.
type CacheConfig struct {
	LocalEnabled      bool   `toml:"local_enabled"`
	LocalSize         uint   `toml:"local_size,omitempty"`
	RedisAddr         string `toml:"redis_addr,omitempty"`
	RedisDB           uint   `toml:"redis_db,omitempty"`
	KeyPrefix         string `toml:"key_prefix,omitempty"`
	VectorTTL         string `toml:"vector_ttl,omitempty"`
	CompressThreshold uint   `toml:"compress_threshold,omitempty"`
	AsyncWrites       bool   `toml:"async_writes,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EmbeddingConfig holds embedding provider settings used for text queries.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// EventsConfig holds the cache invalidation bus settings. Brokers is a
// comma separated list; empty disables the bus.
type EventsConfig struct {
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// CollectionConfig declares a collection created at startup in addition to
// the built-in defaults.
type CollectionConfig struct {
	Name        string `toml:"name"`
	Dimension   int    `toml:"dimension,omitempty"`
	Metric      string `toml:"metric,omitempty"`
	Description string `toml:"description,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider":        stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.postgres_dsn":    stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"storage.sqlite_vec_path": stringKey(func(c *Config) *string { return &c.Storage.SQLiteVecPath }),
	"storage.qdrant_addr":     stringKey(func(c *Config) *string { return &c.Storage.QdrantAddr }),
	"storage.qdrant_api_key":  stringKey(func(c *Config) *string { return &c.Storage.QdrantAPIKey }),
	"storage.chroma_url":      stringKey(func(c *Config) *string { return &c.Storage.ChromaURL }),
	"storage.fallback_driver": stringKey(func(c *Config) *string { return &c.Storage.FallbackDriver }),
	"storage.fallback_dsn":    stringKey(func(c *Config) *string { return &c.Storage.FallbackDSN }),
	"storage.scan_limit":      uintKey("storage.scan_limit", func(c *Config) *uint { return &c.Storage.ScanLimit }),
	"storage.query_timeout":   stringKey(func(c *Config) *string { return &c.Storage.QueryTimeout }),

	"index.m":               uintKey("index.m", func(c *Config) *uint { return &c.Index.M }),
	"index.ef_construction": uintKey("index.ef_construction", func(c *Config) *uint { return &c.Index.EfConstruction }),
	"index.ef_search":       uintKey("index.ef_search", func(c *Config) *uint { return &c.Index.EfSearch }),

	"cache.local_enabled":      boolKey("cache.local_enabled", func(c *Config) *bool { return &c.Cache.LocalEnabled }),
	"cache.local_size":         uintKey("cache.local_size", func(c *Config) *uint { return &c.Cache.LocalSize }),
	"cache.redis_addr":         stringKey(func(c *Config) *string { return &c.Cache.RedisAddr }),
	"cache.redis_db":           uintKey("cache.redis_db", func(c *Config) *uint { return &c.Cache.RedisDB }),
	"cache.key_prefix":         stringKey(func(c *Config) *string { return &c.Cache.KeyPrefix }),
	"cache.vector_ttl":         stringKey(func(c *Config) *string { return &c.Cache.VectorTTL }),
	"cache.compress_threshold": uintKey("cache.compress_threshold", func(c *Config) *uint { return &c.Cache.CompressThreshold }),
	"cache.async_writes":       boolKey("cache.async_writes", func(c *Config) *bool { return &c.Cache.AsyncWrites }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),

	"events.brokers": stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":   stringKey(func(c *Config) *string { return &c.Events.Topic }),
}

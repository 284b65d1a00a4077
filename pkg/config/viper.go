package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/vecstore/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable viper reads.
const EnvPrefix = "VECSTORE"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the VECSTORE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (VECSTORE_STORAGE_PROVIDER, VECSTORE_CACHE_REDIS_ADDR, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper builds a Config from the merged viper view. Collections come
// from the config file only.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Provider:       v.GetString("storage.provider"),
			PostgresDSN:    v.GetString("storage.postgres_dsn"),
			SQLiteVecPath:  v.GetString("storage.sqlite_vec_path"),
			QdrantAddr:     v.GetString("storage.qdrant_addr"),
			QdrantAPIKey:   v.GetString("storage.qdrant_api_key"),
			ChromaURL:      v.GetString("storage.chroma_url"),
			FallbackDriver: v.GetString("storage.fallback_driver"),
			FallbackDSN:    v.GetString("storage.fallback_dsn"),
			ScanLimit:      v.GetUint("storage.scan_limit"),
			QueryTimeout:   v.GetString("storage.query_timeout"),
		},
		Index: IndexConfig{
			M:              v.GetUint("index.m"),
			EfConstruction: v.GetUint("index.ef_construction"),
			EfSearch:       v.GetUint("index.ef_search"),
		},
		Cache: CacheConfig{
			LocalEnabled:      v.GetBool("cache.local_enabled"),
			LocalSize:         v.GetUint("cache.local_size"),
			RedisAddr:         v.GetString("cache.redis_addr"),
			RedisDB:           v.GetUint("cache.redis_db"),
			KeyPrefix:         v.GetString("cache.key_prefix"),
			VectorTTL:         v.GetString("cache.vector_ttl"),
			CompressThreshold: v.GetUint("cache.compress_threshold"),
			AsyncWrites:       v.GetBool("cache.async_writes"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		Events: EventsConfig{
			Brokers: v.GetString("events.brokers"),
			Topic:   v.GetString("events.topic"),
		},
	}

	if err := v.UnmarshalKey("collections", &cfg.Collections); err != nil {
		return nil, fmt.Errorf("decoding collections: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)
	v.SetDefault("storage.sqlite_vec_path", d.Storage.SQLiteVecPath)
	v.SetDefault("storage.qdrant_addr", d.Storage.QdrantAddr)
	v.SetDefault("storage.qdrant_api_key", d.Storage.QdrantAPIKey)
	v.SetDefault("storage.chroma_url", d.Storage.ChromaURL)
	v.SetDefault("storage.fallback_driver", d.Storage.FallbackDriver)
	v.SetDefault("storage.fallback_dsn", d.Storage.FallbackDSN)
	v.SetDefault("storage.scan_limit", d.Storage.ScanLimit)
	v.SetDefault("storage.query_timeout", d.Storage.QueryTimeout)

	// Index
	v.SetDefault("index.m", d.Index.M)
	v.SetDefault("index.ef_construction", d.Index.EfConstruction)
	v.SetDefault("index.ef_search", d.Index.EfSearch)

	// Cache
	v.SetDefault("cache.local_enabled", d.Cache.LocalEnabled)
	v.SetDefault("cache.local_size", d.Cache.LocalSize)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	v.SetDefault("cache.key_prefix", d.Cache.KeyPrefix)
	v.SetDefault("cache.vector_ttl", d.Cache.VectorTTL)
	v.SetDefault("cache.compress_threshold", d.Cache.CompressThreshold)
	v.SetDefault("cache.async_writes", d.Cache.AsyncWrites)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Events
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}

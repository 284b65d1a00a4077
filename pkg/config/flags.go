package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "api.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag, AddBoolFlag,
// and BindRegisteredFlags.
const (
	FlagListen          = "listen"
	FlagStorageProvider = "storage-provider"
	FlagPostgresDSN     = "postgres-dsn"
	FlagSQLiteVecPath   = "sqlite-vec-path"
	FlagQdrantAddr      = "qdrant-addr"
	FlagChromaURL       = "chroma-url"
	FlagFallbackDriver  = "fallback-driver"
	FlagFallbackDSN     = "fallback-dsn"
	FlagScanLimit       = "scan-limit"
	FlagQueryTimeout    = "query-timeout"
	FlagRedisAddr       = "redis-addr"
	FlagLocalCacheSize  = "local-cache-size"
	FlagVectorTTL       = "vector-ttl"
	FlagAsyncCache      = "async-cache"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagEventBrokers    = "event-brokers"
	FlagEventTopic      = "event-topic"
)

// ServeFlags is the registry used by "vecstore serve".
var ServeFlags = FlagSet{
	FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagStorageProvider: {Name: "storage-provider", ViperKey: "storage.provider", Description: "Native backend (sqlite-vec, pgvector, qdrant, chroma, none)"},
	FlagPostgresDSN:     {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL DSN for the pgvector backend"},
	FlagSQLiteVecPath:   {Name: "sqlite-vec-path", ViperKey: "storage.sqlite_vec_path", Description: "Database path for the sqlite-vec backend"},
	FlagQdrantAddr:      {Name: "qdrant-addr", ViperKey: "storage.qdrant_addr", Description: "Qdrant gRPC address"},
	FlagChromaURL:       {Name: "chroma-url", ViperKey: "storage.chroma_url", Description: "Chroma server URL"},
	FlagFallbackDriver:  {Name: "fallback-driver", ViperKey: "storage.fallback_driver", Description: "Fallback database driver (sqlite, pgx)"},
	FlagFallbackDSN:     {Name: "fallback-dsn", ViperKey: "storage.fallback_dsn", Description: "Fallback database DSN"},
	FlagScanLimit:       {Name: "scan-limit", ViperKey: "storage.scan_limit", Description: "Rows scanned per fallback query"},
	FlagQueryTimeout:    {Name: "query-timeout", ViperKey: "storage.query_timeout", Description: "Backend call timeout"},
	FlagRedisAddr:       {Name: "redis-addr", ViperKey: "cache.redis_addr", Description: "Redis address for the distributed cache (empty disables it)"},
	FlagLocalCacheSize:  {Name: "local-cache-size", ViperKey: "cache.local_size", Description: "Entries held by the in-process cache"},
	FlagVectorTTL:       {Name: "vector-ttl", ViperKey: "cache.vector_ttl", Description: "Cached vector lifetime; cached searches live a quarter of it"},
	FlagAsyncCache:      {Name: "async-cache", ViperKey: "cache.async_writes", Description: "Populate the cache from a background worker pool"},
	FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider for text queries (ollama, none)"},
	FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensionality"},
	FlagEventBrokers:    {Name: "event-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers for cache invalidation"},
	FlagEventTopic:      {Name: "event-topic", ViperKey: "events.topic", Description: "Kafka topic for cache invalidation"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper holding only NewDefaultConfig values.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}

package config

const (
	defaultStorageProvider = "sqlite-vec"
	defaultFallbackDriver  = "sqlite"
	defaultScanLimit       = 1000
	defaultQueryTimeout    = "30s"

	defaultIndexM              = 16
	defaultIndexEfConstruction = 64
	defaultIndexEfSearch       = 40

	defaultCacheLocalSize         = 10000
	defaultCacheKeyPrefix         = "vecstore"
	defaultCacheVectorTTL         = "1h"
	defaultCacheCompressThreshold = 1024

	defaultAPIListen = ":8081"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768

	defaultEventsTopic = "vecstore.invalidations"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:       defaultStorageProvider,
			FallbackDriver: defaultFallbackDriver,
			ScanLimit:      defaultScanLimit,
			QueryTimeout:   defaultQueryTimeout,
		},
		Index: IndexConfig{
			M:              defaultIndexM,
			EfConstruction: defaultIndexEfConstruction,
			EfSearch:       defaultIndexEfSearch,
		},
		Cache: CacheConfig{
			LocalEnabled:      true,
			LocalSize:         defaultCacheLocalSize,
			KeyPrefix:         defaultCacheKeyPrefix,
			VectorTTL:         defaultCacheVectorTTL,
			CompressThreshold: defaultCacheCompressThreshold,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}

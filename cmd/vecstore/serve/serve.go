// Package servecmder provides the serve command that runs the vecstore API
// and MCP server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/vecstore/api"
	"github.com/papercomputeco/vecstore/pkg/cache"
	"github.com/papercomputeco/vecstore/pkg/cliui"
	"github.com/papercomputeco/vecstore/pkg/config"
	"github.com/papercomputeco/vecstore/pkg/dotdir"
	"github.com/papercomputeco/vecstore/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/vecstore/pkg/embeddings/utils"
	"github.com/papercomputeco/vecstore/pkg/eventstream"
	"github.com/papercomputeco/vecstore/pkg/eventstream/kafka"
	"github.com/papercomputeco/vecstore/pkg/logger"
	"github.com/papercomputeco/vecstore/pkg/store"
	"github.com/papercomputeco/vecstore/pkg/vector"
	vectorutils "github.com/papercomputeco/vecstore/pkg/vector/utils"
	"github.com/papercomputeco/vecstore/pkg/worker"
)

const (
	sqliteVecFile = "vectors.db"
	fallbackFile  = "fallback.db"
	logFile       = "vecstore.log"

	shutdownTimeout = 10 * time.Second
)

type ServeCommander struct {
	configDir string
	debug     bool

	listen          string
	storageProvider string
	postgresDSN     string
	sqliteVecPath   string
	qdrantAddr      string
	chromaURL       string
	fallbackDriver  string
	fallbackDSN     string
	scanLimit       uint
	queryTimeout    string
	redisAddr       string
	localCacheSize  uint
	vectorTTL       string
	asyncCache      bool
	embeddingProv   string
	embeddingTgt    string
	embeddingModel  string
	embeddingDims   uint
	eventBrokers    string
	eventTopic      string

	cfg    *config.Config
	logger *slog.Logger
}

const serveLongDesc string = `Run the vecstore server.

Serves the REST API under /v1 and the MCP endpoint under /mcp. Settings come
from flags, VECSTORE_* environment variables and .vecstore/config.toml, in
that order of precedence.

The native backend is probed at startup. When it is unreachable the server
runs on the linear scan fallback.

Examples:
  vecstore serve
  vecstore serve --storage-provider pgvector --postgres-dsn postgres://localhost/vecstore
  vecstore serve --redis-addr localhost:6379 --event-brokers localhost:9092`

const serveShortDesc string = "Run the vecstore server"

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagStorageProvider,
	config.FlagPostgresDSN,
	config.FlagSQLiteVecPath,
	config.FlagQdrantAddr,
	config.FlagChromaURL,
	config.FlagFallbackDriver,
	config.FlagFallbackDSN,
	config.FlagScanLimit,
	config.FlagQueryTimeout,
	config.FlagRedisAddr,
	config.FlagLocalCacheSize,
	config.FlagVectorTTL,
	config.FlagAsyncCache,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEventBrokers,
	config.FlagEventTopic,
}

func NewServeCmd() *cobra.Command {
	return newServeCmd(&ServeCommander{})
}

func newServeCmd(cmder *ServeCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, serveFlagKeys)

			cmder.cfg, err = config.FromViper(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagSQLiteVecPath, &cmder.sqliteVecPath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagQdrantAddr, &cmder.qdrantAddr)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagChromaURL, &cmder.chromaURL)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagFallbackDriver, &cmder.fallbackDriver)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagFallbackDSN, &cmder.fallbackDSN)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagScanLimit, &cmder.scanLimit)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagQueryTimeout, &cmder.queryTimeout)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagRedisAddr, &cmder.redisAddr)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagLocalCacheSize, &cmder.localCacheSize)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagVectorTTL, &cmder.vectorTTL)
	config.AddBoolFlag(cmd, config.ServeFlags, config.FlagAsyncCache, &cmder.asyncCache)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventBrokers, &cmder.eventBrokers)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventTopic, &cmder.eventTopic)

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closeLog func()
	c.logger, closeLog = c.newLogger()
	defer closeLog()

	st, closeStore, err := c.newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	embedder, err := c.newEmbedder()
	if err != nil {
		return err
	}
	if embedder != nil {
		defer embedder.Close()
	}

	if err := c.startSubscriber(ctx, st); err != nil {
		return err
	}

	server, err := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, st, embedder, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	c.logger.Info("starting vecstore server",
		"listen", c.cfg.API.Listen,
		"mode", st.Mode(),
		"backend", st.BackendName(),
		"instance", st.InstanceID(),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newLogger logs pretty output to the console and JSON records to
// vecstore.log in the .vecstore directory. The returned func closes the file.
func (c *ServeCommander) newLogger() (*slog.Logger, func()) {
	console := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	path, err := dotdir.NewManager().DataPath(c.configDir, logFile)
	if err != nil {
		console.Warn("log file disabled", "error", err)
		return console, func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		console.Warn("log file disabled", "path", path, "error", err)
		return console, func() {}
	}

	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatJSON),
		logger.WithWriter(f),
		logger.WithAttrs("pid", os.Getpid()),
	)
	return logger.Multi(console, file), func() { _ = f.Close() }
}

// newStore builds the backends, cache and event publisher and hands them
// to the store facade. The returned func closes the store and the redis
// client, which the cache tier does not own.
func (c *ServeCommander) newStore(ctx context.Context) (*store.Store, func(), error) {
	opts, err := c.backendOpts()
	if err != nil {
		return nil, nil, err
	}

	// Components built so far, closed in reverse if a later step fails.
	var built []func()
	unwind := func() {
		for i := len(built) - 1; i >= 0; i-- {
			built[i]()
		}
	}

	var native vector.NativeBackend
	if opts.ProviderType != "" && opts.ProviderType != config.ProviderNone {
		err = cliui.Step(os.Stderr, "Connecting to "+opts.ProviderType, func() error {
			native, err = vectorutils.NewNativeBackend(ctx, opts)
			if vectorutils.IsUnavailable(err) {
				c.logger.Warn("native backend unavailable, using linear fallback", "provider", opts.ProviderType, "error", err)
				native = nil
				return nil
			}
			return err
		})
		if err != nil {
			return nil, nil, err
		}
	}
	if native != nil {
		built = append(built, func() { _ = native.Close() })
	}

	fallback, err := vectorutils.NewFallbackBackend(ctx, opts)
	if err != nil {
		unwind()
		return nil, nil, fmt.Errorf("opening fallback backend: %w", err)
	}
	built = append(built, func() { _ = fallback.Close() })

	tier, client, err := c.newCache(ctx)
	if err != nil {
		unwind()
		return nil, nil, err
	}
	closeClient := func() {
		if client != nil {
			_ = client.Close()
		}
	}
	built = append(built, closeClient, tier.Close)

	var pool *worker.Pool
	if c.cfg.Cache.AsyncWrites {
		pool, err = worker.NewPool(worker.Config{Logger: c.logger.With("component", "cache-worker")})
		if err != nil {
			unwind()
			return nil, nil, fmt.Errorf("creating cache worker pool: %w", err)
		}
		built = append(built, pool.Close)
	}

	publisher, err := c.newPublisher()
	if err != nil {
		unwind()
		return nil, nil, err
	}
	if publisher != nil {
		built = append(built, func() { _ = publisher.Close() })
	}

	collections, err := c.collections()
	if err != nil {
		unwind()
		return nil, nil, err
	}

	// From here the store owns every component but the redis client.
	st, err := store.New(ctx, store.Config{
		Native:       native,
		Fallback:     fallback,
		Cache:        tier,
		Publisher:    publisher,
		Worker:       pool,
		Collections:  collections,
		QueryTimeout: c.cfg.QueryTimeoutDuration(),
		InstanceID:   uuid.NewString(),
		Logger:       c.logger,
	})
	if err != nil {
		closeClient()
		return nil, nil, err
	}

	return st, func() {
		if err := st.Close(); err != nil {
			c.logger.Warn("closing vector store", "error", err)
		}
		closeClient()
	}, nil
}

func (c *ServeCommander) backendOpts() (*vectorutils.NewBackendOpts, error) {
	s := c.cfg.Storage
	ddm := dotdir.NewManager()

	sqliteVecPath := s.SQLiteVecPath
	if s.Provider == config.ProviderSQLiteVec && sqliteVecPath == "" {
		p, err := ddm.DataPath(c.configDir, sqliteVecFile)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite-vec path: %w", err)
		}
		sqliteVecPath = p
	}

	fallbackDSN := s.FallbackDSN
	if fallbackDSN == "" {
		switch s.FallbackDriver {
		case "", "sqlite", "sqlite3":
			p, err := ddm.DataPath(c.configDir, fallbackFile)
			if err != nil {
				return nil, fmt.Errorf("resolving fallback path: %w", err)
			}
			fallbackDSN = p
		default:
			fallbackDSN = s.PostgresDSN
		}
	}

	return &vectorutils.NewBackendOpts{
		ProviderType:  s.Provider,
		PostgresDSN:   s.PostgresDSN,
		SQLiteVecPath: sqliteVecPath,
		QdrantAddr:    s.QdrantAddr,
		QdrantAPIKey:  s.QdrantAPIKey,
		ChromaURL:     s.ChromaURL,
		Index: vector.IndexParams{
			M:              int(c.cfg.Index.M),
			EfConstruction: int(c.cfg.Index.EfConstruction),
			EfSearch:       int(c.cfg.Index.EfSearch),
		},
		FallbackDriver: s.FallbackDriver,
		FallbackDSN:    fallbackDSN,
		ScanLimit:      int(s.ScanLimit),
		Logger:         c.logger,
	}, nil
}

// newCache returns the cache tier and its redis client, nil when no redis
// address is configured. The caller closes the client after the tier.
func (c *ServeCommander) newCache(ctx context.Context) (*cache.Tier, redis.UniversalClient, error) {
	cc := c.cfg.Cache

	var client redis.UniversalClient
	if cc.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{
			Addr: cc.RedisAddr,
			DB:   int(cc.RedisDB),
		})
	}

	tier, err := cache.New(cache.Config{
		LocalEnabled:      cc.LocalEnabled,
		LocalSize:         int(cc.LocalSize),
		VectorTTL:         c.cfg.VectorTTLDuration(),
		Redis:             client,
		KeyPrefix:         cc.KeyPrefix,
		CompressThreshold: int(cc.CompressThreshold),
	})
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, nil, fmt.Errorf("creating cache: %w", err)
	}

	if client != nil {
		if err := tier.Ping(ctx); err != nil {
			c.logger.Warn("distributed cache unreachable, continuing", "addr", cc.RedisAddr, "error", err)
		}
	}

	return tier, client, nil
}

func (c *ServeCommander) newPublisher() (eventstream.Publisher, error) {
	brokers := c.cfg.EventBrokers()
	if len(brokers) == 0 {
		return nil, nil
	}

	p, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers: brokers,
		Topic:   c.cfg.Events.Topic,
		Logger:  c.logger.With("component", "events"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	return p, nil
}

// startSubscriber applies invalidations published by other instances. The
// consumer group is unique per instance so every instance sees every event.
func (c *ServeCommander) startSubscriber(ctx context.Context, st *store.Store) error {
	brokers := c.cfg.EventBrokers()
	if len(brokers) == 0 {
		return nil
	}

	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers: brokers,
		Topic:   c.cfg.Events.Topic,
		GroupID: "vecstore-" + st.InstanceID(),
		Logger:  c.logger.With("component", "events"),
	})
	if err != nil {
		return fmt.Errorf("creating event subscriber: %w", err)
	}

	go func() {
		defer sub.Close()
		if err := sub.Run(ctx, st.ApplyInvalidation); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("event subscriber stopped", "error", err)
		}
	}()
	return nil
}

func (c *ServeCommander) newEmbedder() (embeddings.Embedder, error) {
	e := c.cfg.Embedding
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: e.Provider,
		TargetURL:    e.Target,
		Model:        e.Model,
		Dimensions:   e.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	if embedder == nil {
		c.logger.Info("no embedder configured, text queries are disabled")
	}
	return embedder, nil
}

// collections merges the built-in collections with those declared in the
// config file. A declared collection replaces a built-in of the same name.
func (c *ServeCommander) collections() ([]store.CollectionSpec, error) {
	specs := make([]store.CollectionSpec, 0, len(store.DefaultCollections)+len(c.cfg.Collections))
	index := make(map[string]int, cap(specs))
	for _, spec := range store.DefaultCollections {
		index[spec.Name] = len(specs)
		specs = append(specs, spec)
	}

	for _, cc := range c.cfg.Collections {
		metric, err := vector.ParseMetric(cc.Metric)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", cc.Name, err)
		}
		dim := cc.Dimension
		if dim <= 0 {
			dim = store.DefaultDimension
		}

		spec := store.CollectionSpec{
			Name:        cc.Name,
			Dimension:   uint(dim),
			Metric:      metric,
			Description: cc.Description,
		}
		if i, ok := index[spec.Name]; ok {
			specs[i] = spec
			continue
		}
		index[spec.Name] = len(specs)
		specs = append(specs, spec)
	}

	return specs, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/gcbaptista/package-search/api"
	"github.com/gcbaptista/package-search/config"
	"github.com/gcbaptista/package-search/internal/cache"
	"github.com/gcbaptista/package-search/internal/engine"
	"github.com/gcbaptista/package-search/internal/ingest"
	"github.com/gcbaptista/package-search/internal/logger"
	"github.com/gcbaptista/package-search/internal/metrics"
	"github.com/gcbaptista/package-search/internal/source"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP search service",
	Long: `Starts the HTTP API. When a source is configured the corpus is loaded from it
before the index is marked ready, and refreshed on the rebuild interval.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := slog.Default()
	log.Info("starting package search", "version", version, "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
	}

	queryCache, closeCache := openCache(ctx, cfg.Redis, log)
	defer closeCache()

	eng, err := engine.NewEngine(engine.Options{
		Settings: cfg.Search,
		Logger:   log,
		Metrics:  m,
		Cache:    queryCache,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer eng.Close()

	src, closeSource, err := openSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSource()

	if err := loadInitialCorpus(ctx, eng, src, log); err != nil {
		return err
	}

	scheduler := engine.NewScheduler(eng, src, cfg.Search.RebuildInterval)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if fileSrc, ok := src.(*source.FileSource); ok && cfg.Source.Watch {
		go func() {
			err := fileSrc.Watch(ctx, func() {
				if _, err := eng.RefreshAsync(fileSrc, "watcher"); err != nil {
					log.Error("failed to start refresh after file change", "error", err)
				}
			})
			if err != nil {
				log.Error("file watcher stopped", "error", err)
			}
		}()
	}

	if cfg.Kafka.Enabled {
		consumer := ingest.NewConsumer(
			ingest.NewReader(cfg.Kafka),
			ingest.NewHandler(eng, m, log),
			func(ctx context.Context) error {
				_, err := eng.Rebuild(ctx)
				return err
			},
			5*time.Second,
		)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error("kafka consumer stopped", "error", err)
			}
		}()
		log.Info("kafka ingest enabled", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.ConsumerGroup)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	api.SetupRoutes(router, eng, api.Options{
		Logger:       log,
		Metrics:      m,
		Jobs:         eng.JobManager(),
		Source:       src,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		MetricsPath:  cfg.Metrics.Path,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	log.Info("package search listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info("package search stopped")
	return nil
}

// openCache connects the Redis result cache. An unreachable Redis disables
// caching instead of failing startup.
func openCache(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (*cache.QueryCache, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}
	store, err := cache.NewRedisStore(ctx, cfg)
	if err != nil {
		log.Warn("redis unavailable, search caching disabled", "error", err)
		return nil, func() {}
	}

	queryCache := cache.New(store, cfg.CacheTTL, log)
	if err := queryCache.Invalidate(ctx); err != nil {
		log.Warn("could not clear cached results from a previous run", "error", err)
	}
	log.Info("search cache enabled", "addr", cfg.Addr, "ttl", cfg.CacheTTL)
	return queryCache, func() {
		if err := store.Close(); err != nil {
			log.Warn("closing redis", "error", err)
		}
	}
}

// openSource builds the configured corpus source, or returns nil when the
// corpus is fed only through the API or Kafka.
func openSource(ctx context.Context, cfg *config.Config, log *slog.Logger) (source.Source, func(), error) {
	switch cfg.Source.Type {
	case config.SourceFile:
		return source.NewFileSource(cfg.Source.Path, log), func() {}, nil
	case config.SourcePostgres:
		db, err := source.OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		src, err := source.NewPostgresSource(db, cfg.Postgres.Table, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return src, func() { _ = db.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

// loadInitialCorpus fills the store from src and publishes the first snapshot.
// Without a source the engine becomes ready with whatever has been stored so far.
func loadInitialCorpus(ctx context.Context, eng *engine.Engine, src source.Source, log *slog.Logger) error {
	if src == nil {
		return eng.MarkReady(ctx)
	}
	result, err := eng.Refresh(ctx, src)
	if err != nil {
		return fmt.Errorf("initial load from %s: %w", src.Name(), err)
	}
	log.Info("initial corpus loaded", "source", result.Source, "packages", result.Packages, "skipped", result.Skipped)
	return eng.MarkReady(ctx)
}

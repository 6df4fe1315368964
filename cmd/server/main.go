// Command server starts the document question-answering service.
//
// It ingests PDF, DOCX, JSON and plain-text uploads into a chunk store
// (PostgreSQL with pgvector, or in memory), enriches embedded images through
// the vision service, and answers questions with hybrid search plus a
// generated answer.
//
// Usage:
//
//	go run ./cmd/server [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/chunker"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/enrichment"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/extractor"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/llm"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/query"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/query/cache"
	queryhandler "github.com/Adithya-Monish-Kumar-K/docqa/internal/query/handler"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/router"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/store"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/store/memory"
	pgstore "github.com/Adithya-Monish-Kumar-K/docqa/internal/store/postgres"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/vision"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/docqa/pkg/middleware"
	pgclient "github.com/Adithya-Monish-Kumar-K/docqa/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docqa/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting docqa server",
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"redis", cfg.Redis.Enabled,
		"kafka", cfg.Kafka.Enabled,
	)

	if cfg.Diagnostics.Gops {
		if err := agent.Listen(agent.Options{Addr: cfg.Diagnostics.GopsAddr}); err != nil {
			slog.Warn("gops agent unavailable", "error", err)
		} else {
			defer agent.Close()
		}
	}

	m := metrics.New(nil)
	onStateChange := func(name string, to resilience.State) {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	}
	checker := health.NewChecker()

	// Language model: embeddings, grouped answers and query expansion.
	var (
		embedder  store.Embedder
		generator store.Generator
		expander  query.TextExpander
	)
	if cfg.OpenAI.APIKey != "" {
		llmClient, err := llm.New(cfg.OpenAI, cfg.Store.VectorDimensions,
			resilience.NewCircuitBreaker("openai", resilience.CircuitBreakerConfig{OnStateChange: onStateChange}))
		if err != nil {
			return fmt.Errorf("creating openai client: %w", err)
		}
		embedder = llmClient
		generator = store.NewGroupedAnswerer(llmClient, cfg.OpenAI.GenerationModel, cfg.OpenAI.MaxTokens)
		if cfg.OpenAI.ExpandQueries {
			expander = query.NewExpander(llmClient, cfg.OpenAI.ExpansionModel, cfg.OpenAI.MaxTokens)
		}
	} else {
		slog.Warn("openai api key not set, using keyword-only search without generated answers")
	}

	// Chunk store.
	var (
		chunkStore store.Store
		snapshots  *snapshot.Store
	)
	switch cfg.Store.Backend {
	case "postgres":
		db, err := pgclient.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("connected to postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		chunkStore = pgstore.New(db, pgstore.Options{
			Embedder:   embedder,
			Generator:  generator,
			Breaker:    resilience.NewCircuitBreaker("postgres", resilience.CircuitBreakerConfig{OnStateChange: onStateChange}),
			Alpha:      cfg.Store.HybridAlpha,
			Candidates: cfg.Store.Candidates,
			Dimensions: cfg.Store.VectorDimensions,
		})
		snapshots = snapshot.NewStore(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("creating analytics schema: %w", err)
		}
	default:
		chunkStore = memory.New(memory.Options{
			Embedder:   embedder,
			Generator:  generator,
			Alpha:      cfg.Store.HybridAlpha,
			Candidates: cfg.Store.Candidates,
		})
	}
	defer chunkStore.Close()
	if err := chunkStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring store schema: %w", err)
	}
	checker.Register("store", health.PingCheck(chunkStore.Ping, false))

	// Image enrichment.
	var analyzer enrichment.Analyzer = unconfiguredVision{}
	if cfg.Vision.Endpoint != "" && cfg.Vision.APIKey != "" {
		v, err := vision.New(cfg.Vision, nil)
		if err != nil {
			return fmt.Errorf("creating vision client: %w", err)
		}
		analyzer = v
	} else {
		slog.Warn("vision service not configured, images get placeholder text")
	}
	enricher := enrichment.New(analyzer, cfg.Enrichment,
		resilience.NewCircuitBreaker("vision", resilience.CircuitBreakerConfig{
			IsFailure:     vision.IsServiceFailure,
			OnStateChange: onStateChange,
		}), m)

	registry, err := extractor.NewRegistry(cfg.Documents.SupportedTypes)
	if err != nil {
		return fmt.Errorf("building extractor registry: %w", err)
	}
	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return fmt.Errorf("building chunker: %w", err)
	}
	slog.Info("ingestion configured",
		"types", registry.Types(),
		"chunk_size", ch.Size(),
		"chunk_overlap", ch.Overlap(),
	)

	// Redis: per-document ingest locks and the expansion cache.
	ingestOpts := pipeline.Options{
		LockTTL:        cfg.Redis.LockTTL,
		Metrics:        m,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}
	queryOpts := query.Options{
		Expander:     expander,
		Metrics:      m,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	}
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, ingest locking and expansion cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			ingestOpts.Locker = redisClient
			queryOpts.Cache = cache.New(redisClient, cfg.Redis.CacheTTL)
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("redis enabled", "addr", cfg.Redis.Addr, "cache_ttl", cfg.Redis.CacheTTL)
		}
	}

	// Analytics: events go through Kafka when enabled, otherwise straight to
	// the in-process aggregator.
	aggregator := analytics.NewAggregator()
	var tracker analytics.Tracker = aggregator
	if cfg.Kafka.Enabled {
		docProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents)
		defer docProducer.Close()
		ingestOpts.Events = docProducer

		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		batch := collector.NewBatchCollector(analyticsProducer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		batch.Start(ctx)
		defer batch.Close()
		tracker = batch

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("kafka enabled",
			"brokers", cfg.Kafka.Brokers,
			"document_topic", cfg.Kafka.Topics.DocumentEvents,
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
		)
	}
	ingestOpts.Tracker = tracker
	queryOpts.Tracker = tracker

	var lister analytics.SnapshotLister
	if snapshots != nil {
		snapshots.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		lister = snapshots
	}

	ingest := pipeline.New(registry, enricher, ch, chunkStore, ingestOpts)
	orchestrator := query.New(chunkStore, queryOpts)

	var limiter *pkgmw.RateLimiter
	if cfg.Server.RateLimitRPS > 0 {
		limiter = pkgmw.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, 10*time.Minute)
		limiter.Start(ctx, time.Minute)
	}

	handler := router.New(router.Handlers{
		Documents: ingesthandler.New(ingest, cfg.Server.MaxUploadBytes),
		Query:     queryhandler.New(orchestrator),
		Analytics: analytics.NewHandler(aggregator, lister),
		Health:    checker,
	}, router.Options{
		Metrics:        m,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORS:           pkgmw.DefaultCORSConfig(),
		RateLimiter:    limiter,
	})

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("docqa server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var errVisionNotConfigured = errors.New("vision service not configured")

// unconfiguredVision fails every call so images fall back to placeholders.
type unconfiguredVision struct{}

func (unconfiguredVision) ExtractText(context.Context, []byte) (string, error) {
	return "", errVisionNotConfigured
}

func (unconfiguredVision) Caption(context.Context, []byte) (string, error) {
	return "", errVisionNotConfigured
}

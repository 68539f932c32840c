package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/cache"
	"github.com/kailas-cloud/discovery/internal/config"
	"github.com/kailas-cloud/discovery/internal/db"
	dbValkey "github.com/kailas-cloud/discovery/internal/db/valkey"
	"github.com/kailas-cloud/discovery/internal/domain"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
	"github.com/kailas-cloud/discovery/internal/eventbus"
	logpkg "github.com/kailas-cloud/discovery/internal/logger"
	"github.com/kailas-cloud/discovery/internal/metrics"
	contentrepo "github.com/kailas-cloud/discovery/internal/repository/content"
	"github.com/kailas-cloud/discovery/internal/repository/embcache"
	interactionrepo "github.com/kailas-cloud/discovery/internal/repository/interaction"
	profilerepo "github.com/kailas-cloud/discovery/internal/repository/profile"
	searchrepo "github.com/kailas-cloud/discovery/internal/repository/search"
	"github.com/kailas-cloud/discovery/internal/resilience"
	chiTransport "github.com/kailas-cloud/discovery/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/discovery/internal/transport/openai"
	"github.com/kailas-cloud/discovery/internal/usecase/collab"
	contentuc "github.com/kailas-cloud/discovery/internal/usecase/content"
	embeddinguc "github.com/kailas-cloud/discovery/internal/usecase/embedding"
	"github.com/kailas-cloud/discovery/internal/usecase/feed"
	"github.com/kailas-cloud/discovery/internal/usecase/fusion"
	healthuc "github.com/kailas-cloud/discovery/internal/usecase/health"
	interactionuc "github.com/kailas-cloud/discovery/internal/usecase/interaction"
	"github.com/kailas-cloud/discovery/internal/usecase/query"
	"github.com/kailas-cloud/discovery/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/discovery/internal/usecase/search"
	"github.com/kailas-cloud/discovery/internal/usecase/vectorsearch"
	"github.com/kailas-cloud/discovery/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting discovery API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("events_driver", cfg.Events.Driver),
	)

	metrics.RegisterSearchMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterFeedMetrics()
	metrics.RegisterCacheMetrics()

	store, err := dbValkey.NewStore(dbValkey.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		DB:         cfg.Database.DB,
		TextSearch: cfg.Database.TextSearch,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Repositories
	contentCache, err := cache.New[domcontent.Item]("content", cache.Config{
		MaxEntries: cfg.Cache.Content.MaxEntries,
		TTL:        cfg.Cache.Content.TTL,
	})
	if err != nil {
		logger.Fatal("Failed to create content cache", zap.Error(err))
	}
	profileCache, err := cache.New[domprofile.Profile]("profile", cache.Config{
		MaxEntries: cfg.Cache.Profile.MaxEntries,
		TTL:        cfg.Cache.Profile.TTL,
	})
	if err != nil {
		logger.Fatal("Failed to create profile cache", zap.Error(err))
	}

	items := contentrepo.NewCached(contentrepo.New(store), contentCache)
	profiles := profilerepo.New(store, profileCache)
	interactions := interactionrepo.New(store, cfg.Feed.Window)
	index := searchrepo.New(store)

	// Embedders
	var queryEmbedder, docEmbedder domain.Embedder
	var embeddingHealth healthuc.EmbeddingChecker
	if cfg.Embedding.Enabled() {
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			User:       cfg.Embedding.User,
			Provider:   cfg.Embedding.Provider,
			Timeout:    cfg.Embedding.Timeout,
			Logger:     logger.Named("embedding"),
		})
		embeddingHealth = base
		queryEmbedder = buildEmbedder(base, cfg.Embedding, cfg.Embedding.QueryInstruction, store, logger)
		docEmbedder = buildEmbedder(base, cfg.Embedding, cfg.Embedding.DocumentInstruction, store, logger)
		logger.Info("Embedders created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	} else {
		logger.Warn("Embedding provider not configured, vector branch disabled")
	}

	// Content
	contentSvc := contentuc.New(items, docEmbedder, contentrepo.IndexOptions{
		Dimensions:     cfg.Embedding.Dimensions,
		Algorithm:      indexAlgorithm(cfg.Index.Algorithm),
		M:              cfg.Index.HNSWM,
		EFConstruction: cfg.Index.HNSWEFConstruct,
		TitleWeight:    cfg.Index.TitleWeight,
	})
	created, err := contentSvc.EnsureIndex(ctx)
	if err != nil {
		logger.Fatal("Failed to ensure content index", zap.Error(err))
	}
	logger.Info("Content index ready", zap.Bool("created", created))

	// Retrieval
	vectors := vectorsearch.New(index, items, cfg.Embedding.Dimensions, cfg.Database.FilteredKNN)
	recommender := collab.New(interactions, vectors, items, collab.Config{
		Lambda:            cfg.Collab.Lambda,
		MaxSeeds:          cfg.Collab.MaxSeeds,
		NeighboursPerSeed: cfg.Collab.NeighboursPerSeed,
		ItemsPerNeighbour: cfg.Collab.ItemsPerNeighbour,
		MinInteractions:   cfg.Collab.MinInteractions,
		Parallelism:       cfg.Collab.Parallelism,
	})

	branches := []retrieval.Branch{
		retrieval.NewKeywordBranch(index, cfg.Search.Branches.Keyword.TopK),
		retrieval.NewCollabBranch(recommender, cfg.Search.Branches.Collab.TopK),
	}
	if queryEmbedder != nil {
		branches = append(branches,
			retrieval.NewVectorBranch(queryEmbedder, vectors, cfg.Search.Branches.Vector.TopK))
	}

	fallback := breakerPolicy(cfg.Breaker, 0)
	orchestrator := retrieval.New(cfg.Search.Deadline, map[branch.Branch]resilience.Policy{
		branch.Keyword: breakerPolicy(cfg.Breaker, cfg.Search.Branches.Keyword.Timeout),
		branch.Vector:  breakerPolicy(cfg.Breaker, cfg.Search.Branches.Vector.Timeout),
		branch.Collab:  breakerPolicy(cfg.Breaker, cfg.Search.Branches.Collab.Timeout),
	}, fallback, logger.Named("retrieval"), branches...)

	engine := fusion.NewEngine(fusion.Config{
		Weights: map[branch.Branch]float64{
			branch.Keyword:         cfg.Search.Weights.Keyword,
			branch.Vector:          cfg.Search.Weights.Vector,
			branch.Collab:          cfg.Search.Weights.Collab,
			branch.Personalization: cfg.Search.Weights.Personalization,
		},
		DiversityMaxRun: cfg.Search.Diversity.MaxRun,
		DiversityWindow: cfg.Search.Diversity.Window,
	})

	analyzer := query.NewAnalyzer(query.Config{
		Synonyms:        cfg.Query.Synonyms,
		DefaultLanguage: cfg.Query.DefaultLanguage,
	})

	searchSvc := searchuc.New(searchuc.Config{
		ProfileTimeout: cfg.Search.ProfileTimeout,
		HydrateTimeout: cfg.Search.HydrateTimeout,
	}, analyzer, orchestrator, engine, profiles, items)

	// Personalization feed and its event bus
	personalization := feed.New(feed.Config{
		Threshold:    cfg.Feed.Threshold,
		MaxLatency:   cfg.Feed.MaxLatency,
		Decay:        cfg.Feed.Decay,
		Window:       cfg.Feed.Window,
		Concurrency:  cfg.Feed.Concurrency,
		TickInterval: cfg.Feed.TickInterval,
		Retry: resilience.RetryPolicy{
			InitialInterval: cfg.Feed.Retry.InitialInterval,
			MaxInterval:     cfg.Feed.Retry.MaxInterval,
			MaxRetries:      cfg.Feed.Retry.MaxRetries,
		},
	}, items, profiles, interactions, interactions, logger.Named("feed"))
	personalization.Start()

	bus, err := eventbus.New(eventbus.Config{
		Driver:           cfg.Events.Driver,
		URL:              cfg.Events.URL,
		Topic:            cfg.Events.Topic,
		QueueGroup:       cfg.Events.QueueGroup,
		DurableName:      cfg.Events.DurableName,
		SubscribersCount: cfg.Events.SubscribersCount,
		AckWait:          cfg.Events.AckWait,
		MaxDeliver:       cfg.Events.MaxDeliver,
		MaxReconnects:    cfg.Events.MaxReconnects,
		ReconnectWait:    cfg.Events.ReconnectWait,
		Buffer:           cfg.Events.Buffer,
	}, logger.Named("eventbus"))
	if err != nil {
		logger.Fatal("Failed to create event bus", zap.Error(err))
	}

	consumeCtx, stopConsume := context.WithCancel(ctx)
	consumed, err := bus.Consume(consumeCtx, personalization.Submit)
	if err != nil {
		logger.Fatal("Failed to subscribe to interactions", zap.Error(err))
	}

	interactionSvc := interactionuc.New(bus)
	healthSvc := healthuc.New(store, embeddingHealth, orchestrator)

	server := chiTransport.NewServer(
		searchSvc, interactionSvc, contentSvc, healthSvc, promhttp.Handler(), logger.Named("http"),
	)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware("/metrics"))
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Stop intake before the final flush so no event lands after it.
	stopConsume()
	if err := bus.Close(); err != nil {
		logger.Error("Error closing event bus", zap.Error(err))
	}
	select {
	case <-consumed:
	case <-shutdownCtx.Done():
	}
	if err := personalization.Stop(shutdownCtx); err != nil {
		logger.Error("Error flushing personalization feed", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Instrumented -> Cached -> Instruction.
// Concurrent identical misses collapse in the instrumented layer.
func buildEmbedder(
	base domain.Embedder,
	cfg config.EmbeddingConfig,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(
		base, cfg.Provider, cfg.Model, logger.Named("embedding"),
	)

	embedder = embcache.New(embedder, store, cfg.Model, cfg.CacheTTL, metrics.EmbeddingCacheTotal, logger)

	// Instruction prefix (outermost, so the cache key includes it)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

func breakerPolicy(b config.BreakerConfig, timeout time.Duration) resilience.Policy {
	return resilience.Policy{
		Timeout:          timeout,
		FailureThreshold: b.FailureThreshold,
		Window:           b.Window,
		Cooldown:         b.Cooldown,
		HalfOpenRequests: b.HalfOpenRequests,
	}
}

func indexAlgorithm(name string) db.VectorAlgorithm {
	if name == "flat" {
		return db.VectorFlat
	}
	return db.VectorHNSW
}

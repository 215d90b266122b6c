package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bazaarline/discovery/internal/config"
	dbRedis "github.com/bazaarline/discovery/internal/db/redis"
	logpkg "github.com/bazaarline/discovery/internal/logger"
	"github.com/bazaarline/discovery/internal/metrics"
	catalogrepo "github.com/bazaarline/discovery/internal/repository/catalog"
	"github.com/bazaarline/discovery/internal/repository/embcache"
	"github.com/bazaarline/discovery/internal/repository/vectorindex"
	chiTransport "github.com/bazaarline/discovery/internal/transport/chi"
	openaiT "github.com/bazaarline/discovery/internal/transport/openai"
	cataloguc "github.com/bazaarline/discovery/internal/usecase/catalog"
	chatuc "github.com/bazaarline/discovery/internal/usecase/chat"
	discoveryuc "github.com/bazaarline/discovery/internal/usecase/discovery"
	healthuc "github.com/bazaarline/discovery/internal/usecase/health"
	"github.com/bazaarline/discovery/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
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
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register provider metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	// Embedder chain: OpenAI-compatible provider wrapped by the in-process
	// LRU cache. The cache key is namespaced by model so a model switch
	// never serves stale vectors.
	baseEmbedder := openaiT.NewEmbedder(&openaiT.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	embedder := embcache.New(
		baseEmbedder,
		baseEmbedder.Model(),
		time.Duration(cfg.Embedding.Cache.TTLSec)*time.Second,
		cfg.Embedding.Cache.Capacity,
		metrics.EmbeddingCacheTotal,
		time.Now,
	)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	primary := openaiT.NewCompleter(&openaiT.CompleterConfig{
		APIKey:    cfg.LLM.Primary.APIKey,
		BaseURL:   cfg.LLM.Primary.BaseURL,
		Model:     cfg.LLM.Primary.Model,
		MaxTokens: cfg.LLM.Primary.MaxTokens,
		Logger:    logger,
	})

	// Pass nil interface (not typed nil pointer!) when no secondary LLM
	// is configured.
	var secondaryExpand discoveryuc.Completer
	var secondaryChat chatuc.Completer
	if cfg.LLM.Secondary.Configured() {
		secondary := openaiT.NewCompleter(&openaiT.CompleterConfig{
			APIKey:    cfg.LLM.Secondary.APIKey,
			BaseURL:   cfg.LLM.Secondary.BaseURL,
			Model:     cfg.LLM.Secondary.Model,
			MaxTokens: cfg.LLM.Secondary.MaxTokens,
			Logger:    logger,
		})
		secondaryExpand = secondary
		secondaryChat = secondary
		logger.Info("Secondary LLM configured", zap.String("model", cfg.LLM.Secondary.Model))
	}

	vecIndex := vectorindex.New(store, vectorindex.Config{
		IndexName:       cfg.Search.IndexName,
		KeyPrefix:       cfg.Storage.KeyPrefix + "point:",
		Dimensions:      cfg.Embedding.Dimensions,
		HNSWM:           cfg.Search.HNSWM,
		HNSWEFConstruct: cfg.Search.HNSWEFConst,
	}, logger)
	if err := vecIndex.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	catalogRepo := catalogrepo.New(store, cfg.Storage.KeyPrefix)

	discoverySvc := discoveryuc.New(
		embedder, vecIndex, catalogRepo,
		primary, secondaryExpand,
		discoveryuc.Config{
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxLimit:     cfg.Search.MaxLimit,
		},
		logger,
	)
	narrator := chatuc.New(primary, secondaryChat, logger)
	catalogSvc := cataloguc.New(embedder, vecIndex, catalogRepo, logger)
	healthSvc := healthuc.New(store, baseEmbedder, primary)

	server := chiTransport.NewServer(discoverySvc, narrator, catalogSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.HTTP.APIKeys))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

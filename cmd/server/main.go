package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"explorer/internal/auth"
	"explorer/internal/cache"
	"explorer/internal/config"
	"explorer/internal/domain/repositories"
	"explorer/internal/handler"
	"explorer/internal/middleware"
	"explorer/internal/repository/memory"
	"explorer/internal/repository/postgres"
	"explorer/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logCloser := config.NewLogger(cfg)
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"storage", cfg.Storage,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var store repositories.FolderStore
	var txManager repositories.TransactionManager
	switch cfg.Storage {
	case "memory":
		memStore := memory.New()
		store, txManager = memStore, memStore
		logger.Warn("using in-memory storage, data is lost on exit")
	default:
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		logger.Info("database connected",
			"max_conns", cfg.Database.MaxConns,
			"min_conns", cfg.Database.MinConns,
		)

		repoConfig := &postgres.RepositoryConfig{
			Pool:   pool,
			Tables: postgres.NewTableNames(cfg.TablePrefix),
			Logger: logger,
		}
		store = postgres.NewFolderStore(repoConfig)
		txManager = postgres.NewTransactionManager(pool, logger)
	}

	// Services
	folderService := service.NewFolderService(store, txManager, cfg.Pagination, logger)

	var folderCache cache.Cache
	if cfg.Cache.Enabled {
		fallback := cache.NewMemoryCache(cfg.Cache.MemoryMaxEntries, cfg.Cache.SweepInterval)
		if cfg.Cache.RedisURL != "" {
			redisCache, err := cache.NewRedisCache(ctx, cache.RedisOptions{
				URL:            cfg.Cache.RedisURL,
				HealthInterval: cfg.Cache.HealthInterval,
			}, fallback, logger)
			if err != nil {
				log.Fatalf("Failed to configure redis cache: %v", err)
			}
			folderCache = redisCache
		} else {
			logger.Info("REDIS_URL not set, caching in process memory")
			folderCache = fallback
		}
		defer folderCache.Close()

		folderService = service.NewCachedFolderService(folderService, folderCache, service.CacheTTLs{
			Tree:   cfg.Cache.TreeTTL,
			Search: cfg.Cache.SearchTTL,
		}, logger)
	}

	// Optional bearer auth on mutating routes
	var verifier auth.TokenVerifier
	if cfg.AuthJWKSURL != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(ctx, cfg.AuthJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwksVerifier.Close()
		verifier = jwksVerifier
	} else {
		logger.Warn("AUTH_JWKS_URL not set, write routes are unauthenticated")
	}

	// Handlers
	folderHandler := handler.NewFolderHandler(folderService, folderService, folderService, logger)
	var cacheBackend handler.CacheBackend
	if folderCache != nil {
		cacheBackend = folderCache
	}
	healthHandler := handler.NewHealthHandler(store, cacheBackend, cfg.Version, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, folderHandler, healthHandler, middleware.RequireAuth(verifier, logger))

	// Order: CORS → RequestLogger → Recovery → Routes
	var h http.Handler = mux
	h = middleware.Recovery(logger)(h)
	h = middleware.RequestLogger(logger)(h)

	// CORS must run first to answer OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

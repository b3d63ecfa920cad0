package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/anuwat/filehub/internal/config"
	"github.com/anuwat/filehub/internal/handlers"
	"github.com/anuwat/filehub/internal/identity"
	"github.com/anuwat/filehub/internal/logger"
	customMiddleware "github.com/anuwat/filehub/internal/middleware"
	"github.com/anuwat/filehub/internal/search"
	"github.com/anuwat/filehub/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	storeCfg := services.StoreConfig{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		UseSSL:    cfg.Minio.UseSSL,
	}
	store, err := services.NewStoreClient(storeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("object store client")
	}
	admin, err := services.NewStoreAdminClient(storeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("object store admin client")
	}

	searchStore, err := search.NewElasticStore(cfg.Elasticsearch.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("search client")
	}

	// The index is created lazily; a search cluster that is down at boot
	// must not keep the file browser offline.
	ensureCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := searchStore.EnsureIndex(ensureCtx); err != nil {
		log.Warn().Err(err).Msg("search index not ready, indexing degraded until it recovers")
	}
	cancel()

	provider := identity.NewTokenProvider(
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHour)*time.Hour,
		cfg.Auth.Users,
	)

	indexer := services.NewIndexer(store, searchStore, log, cfg.Indexer.Workers, cfg.Indexer.QueueSize)

	e := newServer(serverDeps{
		store:    store,
		admin:    admin,
		search:   searchStore,
		provider: provider,
		indexer:  indexer,
		log:      log,
	})

	go func() {
		if err := e.Start(cfg.Listen); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	indexer.Close()
}

type serverDeps struct {
	store    services.StoreClient
	admin    services.StoreAdminClient
	search   search.Store
	provider identity.Provider
	indexer  *services.Indexer
	log      zerolog.Logger
}

func newServer(deps serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	folders := services.NewFolderService(deps.store, deps.log)
	uploads := services.NewUploadService(deps.store, deps.log)
	bundles := services.NewBundleService(deps.store, deps.log)

	authHandler := handlers.NewAuthHandler(deps.provider)
	storageHandler := handlers.NewStorageHandler(deps.store, folders, uploads, bundles, deps.indexer, deps.log)
	bucketsHandler := handlers.NewBucketsHandler(deps.store, deps.admin, deps.indexer, deps.log)
	searchHandler := handlers.NewSearchHandler(deps.search)
	webhookHandler := handlers.NewWebhookHandler(deps.indexer, deps.log)

	// Middleware
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			deps.log.Info().
				Str("requestId", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(customMiddleware.SecurityHeaders())
	// Applied globally; skips its own public routes internally
	e.Use(customMiddleware.AuthMiddleware(deps.provider))

	// Public routes
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.POST("/api/auth/login", authHandler.Login)
	e.POST("/api/webhook/storage", webhookHandler.Notify)

	// Protected routes
	e.GET("/api/auth/me", authHandler.Me)

	e.GET("/api/buckets", bucketsHandler.List)
	e.POST("/api/buckets", bucketsHandler.Create)
	e.DELETE("/api/buckets/:bucket", bucketsHandler.Delete)
	e.GET("/api/buckets/:bucket/stats", bucketsHandler.Stats)
	e.GET("/api/buckets/:bucket/policy", bucketsHandler.GetPolicy)
	e.PUT("/api/buckets/:bucket/policy", bucketsHandler.SetPolicy)
	e.POST("/api/buckets/:bucket/reindex", bucketsHandler.Reindex)

	e.GET("/api/storage/:bucket", storageHandler.Browse)
	e.POST("/api/storage/:bucket/upload", storageHandler.Upload)
	e.POST("/api/storage/:bucket/presign", storageHandler.PresignUpload)
	e.GET("/api/storage/:bucket/download", storageHandler.Download)
	e.POST("/api/storage/:bucket/download", storageHandler.DownloadBundle)
	e.DELETE("/api/storage/:bucket/object", storageHandler.DeleteObject)
	e.DELETE("/api/storage/:bucket/folder", storageHandler.DeleteFolder)
	e.GET("/api/storage/:bucket/object/info", storageHandler.ObjectInfo)
	e.POST("/api/storage/:bucket/share", storageHandler.ShareLink)

	e.GET("/api/search", searchHandler.Search)

	return e
}

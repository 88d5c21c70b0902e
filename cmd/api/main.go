// @title                       Fish Supply API
// @version                     1.0
// @description                 Validated CRUD for companies, suppliers, stock, vehicles, deliveries and feedback.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
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

	goredis "github.com/redis/go-redis/v9"

	"github.com/fishsupply/supply-system/internal/api"
	"github.com/fishsupply/supply-system/internal/core/domain"
	"github.com/fishsupply/supply-system/internal/core/service"
	"github.com/fishsupply/supply-system/internal/infrastructure/db/mongo"
	"github.com/fishsupply/supply-system/internal/infrastructure/db/redis"
	"github.com/fishsupply/supply-system/internal/infrastructure/queue"
	"github.com/fishsupply/supply-system/internal/pkg/config"
	"github.com/fishsupply/supply-system/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.Development()})

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return fmt.Errorf("mongodb unavailable: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()
	log.Info().Str("db", cfg.Mongo.Database).Msg("connected to mongodb")

	var (
		rdb    *goredis.Client
		claims service.UniqueClaimer
	)
	if cfg.Redis.Enabled {
		rdb, err = redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, unique values enforced by indexes only")
		} else {
			defer rdb.Close()
			claims = redis.NewUniqueClaimer(rdb)
		}
	}

	auditRepo := mongo.NewAuditRepository(db)
	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, service.NewAuditService(auditRepo, logger.Component("audit")), logger.Component("audit"))
	dispatcher.Start(ctx)

	authRepo := mongo.NewAuthRepository(db)
	indexers := []mongo.Indexer{authRepo, auditRepo}

	var resources []api.Resource
	for _, r := range domain.Catalog() {
		repo := mongo.NewDocumentRepository(db, r.Schema)
		indexers = append(indexers, repo)
		resources = append(resources, api.Resource{
			Path:    r.Path,
			Service: service.NewResourceService(r.Schema, repo, claims, dispatcher, logger.Component("resource")),
		})
	}

	if err := mongo.EnsureIndexes(ctx, indexers...); err != nil {
		_ = dispatcher.Stop(context.Background())
		return fmt.Errorf("ensure indexes: %w", err)
	}

	e := api.NewRouter(api.Dependencies{
		DB:        db,
		Redis:     rdb,
		Auth:      service.NewAuthService(authRepo, cfg.JWTSecret, 24*time.Hour),
		Resources: resources,
		JWTSecret: cfg.JWTSecret,
		Logger:    logger.Component("http"),
	})

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Bool("auth", cfg.AuthEnabled()).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("audit queue not fully drained")
	}
	return runErr
}

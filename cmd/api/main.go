package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/auth-gateway/internal/api/http"
	"github.com/spec-kit/auth-gateway/internal/api/http/handlers"
	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/idp"
	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/persistence"
	"github.com/spec-kit/auth-gateway/internal/service"
	"github.com/spec-kit/auth-gateway/internal/store"
	"github.com/spec-kit/auth-gateway/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	var credStore store.CredentialStore
	var redis *persistence.Redis
	if cfg.Session.Store == "redis" {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		credStore = store.NewRedisStore(redis.Client, cfg.Session.Lifetime(), logger)
	} else {
		credStore = store.NewMemoryStore(cfg.Session.Lifetime())
	}

	refresher := idp.NewOAuthRefresher(cfg.OAuth, logger)

	broker := service.NewTokenBroker(cfg.OAuth.Skew(), service.BrokerDependencies{
		Store:      credStore,
		Refresher:  refresher,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	sessions := service.NewSessionService(service.SessionDependencies{
		Store:      credStore,
		Refresher:  refresher,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	audit := service.NewAuditService(dispatcher, logger, cfg.Audit)
	audit.RegisterHandlers()

	cleanup := worker.StartSessionCleanup(credStore, cfg.Session.CleanupInterval(), logger)
	defer cleanup.Stop()

	sessionMiddleware := auth.NewSessionMiddleware(cfg.Session)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, redis),
		Auth:    handlers.NewAuthHandler(sessions, refresher, sessionMiddleware, cfg.App.Env, logger),
		Proxy:   handlers.NewProxyHandler(broker, cfg.Backend.BaseURL, cfg.Backend.Timeout(), logger, metrics),
		Session: sessionMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

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

	"github.com/gin-gonic/gin"

	"trendscope-pipeline/internal/config"
	"trendscope-pipeline/internal/handlers"
	"trendscope-pipeline/internal/pkg/logger"
	"trendscope-pipeline/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting trendscope pipeline", "port", cfg.Server.Port, "mode", cfg.Server.Mode)

	cache, err := services.NewRedisCache(cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer cache.Close()

	newsService, err := services.NewNewsService(cfg.News, log)
	if err != nil {
		return fmt.Errorf("init news service: %w", err)
	}

	archiveService, err := services.NewArchiveService(cfg.Archive, log)
	if err != nil {
		return fmt.Errorf("init archive service: %w", err)
	}

	modelService, err := services.NewModelService(cfg.Model, log)
	if err != nil {
		return fmt.Errorf("init model service: %w", err)
	}

	slackService, err := services.NewSlackService(cfg.Slack, log)
	if err != nil {
		return fmt.Errorf("init Slack service: %w", err)
	}

	pipeline := services.NewPipeline(
		newsService,
		modelService,
		modelService,
		archiveService,
		cache,
		cfg.Pipeline,
		cfg.Archive.RelatedLimit,
		log,
	)

	delivery := services.NewDeliveryService(slackService, cfg.Slack.PostDelay, log)
	scheduler := services.NewScheduler(pipeline, delivery, 2, log)

	verifier := services.NewSignatureVerifier(cfg.Slack.SigningSecret)
	rateLimiter := services.NewRateLimiter(cache, cfg.Slack.RateLimit, cfg.Pipeline.RateLimitTTL, log)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())

	slackHandler := handlers.NewSlackHandler(verifier, rateLimiter, scheduler, cfg.Slack.WorkspaceID, log)
	slackHandler.RegisterRoutes(router)

	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthChecker{
		"redis":   cache,
		"news":    newsService,
		"archive": archiveService,
	}, scheduler, log)
	healthHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown failed")
	}

	if err := scheduler.Close(25 * time.Second); err != nil {
		log.WithError(err).Warn("scheduler drain incomplete")
	}

	log.Info("shutdown complete")
	return nil
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pricedesk/pricedesk/internal/app"
	"github.com/pricedesk/pricedesk/internal/auth"
	"github.com/pricedesk/pricedesk/internal/backend"
	"github.com/pricedesk/pricedesk/internal/catalog"
	"github.com/pricedesk/pricedesk/internal/forecast"
	"github.com/pricedesk/pricedesk/internal/observability"
	"github.com/pricedesk/pricedesk/internal/platform/cache"
	"github.com/pricedesk/pricedesk/internal/shared"
	"github.com/pricedesk/pricedesk/internal/view"
	"github.com/pricedesk/pricedesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "pricedesk_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout).WithRecorder(metrics)

	authHandler := auth.NewHandler(logger, auth.NewService(client), templates, sessionManager, csrfManager)

	var (
		enqueuer   catalog.Enqueuer
		jobHandler *jobs.Handler
	)
	if cfg.JobsEnabled {
		redisOpts, err := cache.Options(cfg.RedisAddr)
		if err != nil {
			logger.Error("parse redis address", slog.Any("error", err))
			os.Exit(1)
		}
		asynqOpts := asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB}
		jobsClient, err := jobs.NewClient(asynqOpts)
		if err != nil {
			logger.Error("init jobs client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(asynqOpts)
		defer func() {
			_ = inspector.Close()
		}()
		enqueuer = jobsClient
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	catalogHandler := catalog.NewHandler(logger, catalog.NewService(client), templates, csrfManager, enqueuer, authHandler.HandleUnauthorized)
	forecastService := forecast.NewService(client, redisClient, cfg.ForecastTTL)
	forecastHandler := forecast.NewHandler(logger, forecastService, templates, csrfManager, authHandler.HandleUnauthorized)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Templates:       templates,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AuthHandler:     authHandler,
		CatalogHandler:  catalogHandler,
		ForecastHandler: forecastHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

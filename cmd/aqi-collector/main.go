package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/aqi-collector/internal/airquality"
	"github.com/i474232898/aqi-collector/internal/airquality/providers"
	httpapi "github.com/i474232898/aqi-collector/internal/api/http"
	"github.com/i474232898/aqi-collector/internal/config"
	"github.com/i474232898/aqi-collector/internal/logging"
	"github.com/i474232898/aqi-collector/internal/publish"
	"github.com/i474232898/aqi-collector/internal/scheduler"
	"github.com/i474232898/aqi-collector/internal/store"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	envErr := godotenv.Load()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.SetDefault(logging.New("info"))
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Info("no .env file found or error loading it", "err", envErr)
	}
	logger.Info("aqi-collector starting", "version", version)
	cfg.LogSummary(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Freshness cache shared by the collector and the pipeline-facing gate.
	memStore := store.NewMemoryStore()

	// Optional fan-out of readings to other processes.
	var publishers []airquality.Publisher
	if cfg.Enabled && cfg.Redis.URL != "" {
		pub, err := publish.NewRedisPublisher(ctx, publish.Config{
			URL:     cfg.Redis.URL,
			Channel: cfg.Redis.Channel,
			TTL:     2 * cfg.Interval(),
		})
		if err != nil {
			logger.Warn("redis fan-out disabled", "err", err)
		} else {
			defer pub.Close()
			publishers = append(publishers, pub)
		}
	}

	// Shared HTTP client for outbound API calls.
	httpClient := &http.Client{
		Timeout: cfg.Timeout(),
	}

	provider := providers.NewAirVisualProvider(httpClient, providers.AirVisualConfig{
		APIKey:         cfg.APIKey,
		Latitude:       cfg.Latitude,
		Longitude:      cfg.Longitude,
		BaseURL:        cfg.Endpoint,
		Timeout:        cfg.Timeout(),
		UserAgent:      "aqi-collector/" + version,
		BreakerTimeout: cfg.Backoff().Base / 2,
		Logger:         logger,
	})

	service := airquality.NewService(memStore, provider, airquality.ServiceOptions{
		Interval:   cfg.Interval(),
		LogSuccess: cfg.LogSuccess,
		LogErrors:  cfg.LogErrors,
		Logger:     logger,
		Publishers: publishers,
	})

	deps := httpapi.Deps{Service: service}

	// Polling loop and housekeeping only run when collection is enabled.
	var (
		sched    *scheduler.Scheduler
		reporter *scheduler.Reporter
	)
	if cfg.Enabled {
		sched, err = scheduler.New(service, scheduler.Config{
			Interval:  cfg.Interval(),
			Backoff:   cfg.Backoff(),
			LogErrors: cfg.LogErrors,
			Logger:    logger,
		})
		if err != nil {
			logger.Error("failed to create scheduler", "err", err)
			os.Exit(1)
		}
		if err := sched.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "err", err)
			os.Exit(1)
		}

		reporter = scheduler.NewReporter(memStore, service.Gate().MaxAge(), scheduler.DefaultReportInterval, logger)
		if err := reporter.Start(); err != nil {
			logger.Warn("failed to start status reporter", "err", err)
		}

		deps.Scheduler = sched
		deps.Circuit = provider
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "aqi-collector",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "aqi-collector",
			"version": version,
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, deps)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "err", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	logger.Info("aqi-collector shutting down")

	if sched != nil {
		if err := sched.Stop(shutdownTimeout); err != nil {
			logger.Warn("collection loop did not stop cleanly", "err", err)
		}
	}
	if reporter != nil {
		reporter.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "err", err)
	}

	logger.Info("aqi-collector shutdown complete")
}

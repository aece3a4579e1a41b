package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"mapslead/ai"
	"mapslead/analytics"
	"mapslead/config"
	controller "mapslead/controllers"
	"mapslead/metrics"
	"mapslead/middleware"
	"mapslead/routes"
	"mapslead/worker"
)

func main() {
	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	config.SetupLogging()
	cfg := config.AppConfig
	logger := logrus.WithField("service", "mapslead")

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
			Release:     "mapslead@" + controller.Version,
		}); err != nil {
			logger.WithError(err).Warn("Sentry initialization failed")
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, using in-process cache and limiter")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Background simulations
	rnd := worker.NewTimeSeededRand()
	supervisor := worker.NewSupervisor(logger.WithField("component", "supervisor"), m)
	scraper := worker.NewScrapeSimulator(config.DB, rnd, cfg.ScrapeInterval, m, logger.WithField("component", "scrape_simulator"))
	sender := worker.NewCampaignSimulator(config.DB, rnd, cfg.SendInterval, m, logger.WithField("component", "campaign_simulator"))
	sims := worker.NewSimulations(config.DB, supervisor, scraper, sender, rnd, logger.WithField("component", "simulations"))

	sweeper := worker.NewStaleSweeper(config.DB, supervisor, cfg.StaleSweepInterval, logger.WithField("component", "stale_sweeper"))
	go sweeper.Start(ctx)

	// Analytics cache
	var cache analytics.Cache = analytics.NewMemoryCache()
	var limiterStorage fiber.Storage
	if redisClient != nil {
		cache = analytics.NewRedisCache(redisClient)
		limiterStorage = middleware.NewRedisStorage(redisClient)
		defer redisClient.Close()
	}
	aggregator := analytics.NewAggregator(config.DB, cache, cfg.AnalyticsCacheTTL, m, logger.WithField("component", "analytics"))

	// Follow-up drafting; without a usable model every draft is the fallback
	var generator ai.Generator
	if model, err := ai.NewModel(cfg.LLM); err != nil {
		logger.WithError(err).Warn("LLM not configured, follow-up drafts will use the fallback template")
	} else {
		generator = model
	}
	drafter := ai.NewDrafter(generator, cfg.LLM.Timeout, logger.WithField("component", "ai"))

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "mapslead",
		ErrorHandler: errorHandler,
	})

	routes.SetupRoutes(app, routes.Deps{
		DB:              config.DB,
		Sims:            sims,
		Aggregator:      aggregator,
		Drafter:         drafter,
		Logger:          logger,
		JWTSecret:       cfg.JWTSecret,
		RememberMeDays:  cfg.JWTExpirationDays,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitStart:  cfg.RateLimitStart,
		LimiterStorage:  limiterStorage,
		MetricsGatherer: registry,
		AccessLog:       true,
	})

	go func() {
		logger.Infof("Server starting on port %s", cfg.ServerPort)
		if err := app.Listen(":" + cfg.ServerPort); err != nil {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
	cancel()
	// interrupted runs are failed by the stale sweeper on the next start
	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Simulations did not stop in time")
	}
	logger.Info("Server stopped")
}

// errorHandler renders unhandled errors in the API envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
		}
	}
	if code >= fiber.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Path()).Error("Unhandled request error")
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
		"data":    nil,
	})
}

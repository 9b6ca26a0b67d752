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

	"github.com/chartdeck/chartdeck-backend/internal/db"
	"github.com/chartdeck/chartdeck-backend/internal/handlers"
	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/middleware"
	"github.com/chartdeck/chartdeck-backend/internal/observability"
	"github.com/chartdeck/chartdeck-backend/internal/repos"
	"github.com/chartdeck/chartdeck-backend/internal/scheduler"
	"github.com/chartdeck/chartdeck-backend/internal/seed"
	"github.com/chartdeck/chartdeck-backend/internal/server"
	"github.com/chartdeck/chartdeck-backend/internal/services"
	"github.com/chartdeck/chartdeck-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	bundleRepo := repos.NewBundleRepo(thePG, log)
	metricRepo := repos.NewMetricRepo(thePG, log)
	cardRepo := repos.NewCardRepo(thePG, log)
	snapshotRepo := repos.NewSnapshotRepo(thePG, log)
	relationRepo := repos.NewRelationRepo(thePG, log)

	// Observability
	metrics := observability.NewMetrics()

	// Services
	log.Info("Setting up services from main...")
	bundleService := services.NewBundleService(thePG, log, bundleRepo)
	metricService := services.NewMetricService(thePG, log, metricRepo)
	cardService := services.NewCardService(thePG, log, cardRepo, snapshotRepo, relationRepo, bundleRepo, metricRepo)
	relationService := services.NewRelationService(thePG, log, relationRepo, cardRepo)
	ingestService := services.NewIngestService(thePG, log, bundleService, metricService, cardService, metrics)

	// Built-in bundle catalog. A malformed catalog is fatal: a hub without
	// its contracts cannot classify anything.
	log.Info("Seeding bundle catalog...")
	if err := seed.Run(context.Background(), bundleService); err != nil {
		log.Error("Bundle seeding failed", "error", err)
		os.Exit(1)
	}

	// Staleness scheduler
	sweepInterval := utils.GetEnvAsDuration("SCHEDULER_INTERVAL", time.Minute, log)
	staleSweeper := scheduler.New(thePG, log, cardRepo, metrics, sweepInterval)
	staleSweeper.Start(context.Background())

	// Handlers
	log.Info("Setting up handlers from main...")
	bundleHandler := handlers.NewBundleHandler(log, bundleService)
	metricHandler := handlers.NewMetricHandler(log, metricService)
	cardHandler := handlers.NewCardHandler(log, cardService)
	relationHandler := handlers.NewRelationHandler(log, relationService)
	ingestHandler := handlers.NewIngestHandler(log, ingestService, cardService)

	// Middleware
	requestLog := middleware.NewRequestLogMiddleware(log)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		RequestLog:      requestLog,
		MetricsHandler:  metrics.Handler(),
		BundleHandler:   bundleHandler,
		MetricHandler:   metricHandler,
		CardHandler:     cardHandler,
		RelationHandler: relationHandler,
		IngestHandler:   ingestHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	staleSweeper.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown failed", "error", err)
	}
}

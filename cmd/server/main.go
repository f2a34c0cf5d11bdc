// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stockpilot/inventory-agent/internal/api"
	"github.com/stockpilot/inventory-agent/internal/cache"
	"github.com/stockpilot/inventory-agent/internal/config"
	"github.com/stockpilot/inventory-agent/internal/forecast"
	"github.com/stockpilot/inventory-agent/internal/insights"
	"github.com/stockpilot/inventory-agent/internal/learning"
	"github.com/stockpilot/inventory-agent/internal/optimize"
	"github.com/stockpilot/inventory-agent/internal/repository"
	"github.com/stockpilot/inventory-agent/internal/repository/memory"
	"github.com/stockpilot/inventory-agent/internal/repository/postgres"
	"github.com/stockpilot/inventory-agent/internal/service"
	"github.com/stockpilot/inventory-agent/internal/signals"
	"github.com/stockpilot/inventory-agent/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	store := buildStore(cfg)

	registry, err := signals.NewRegistry(cfg.Signals.EnabledSources)
	if err != nil {
		// A source without a normalization rule is a misconfiguration;
		// refuse to start rather than fail per request.
		logger.Log.Fatal().Err(err).Msg("invalid external source configuration")
	}

	forecastCache, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("forecast cache unavailable, continuing without")
		forecastCache = cache.NewNoopForecastCache()
	}

	weather := signals.NewWeatherFetcher(cfg.Signals)
	if !weather.Enabled() {
		logger.Log.Info().Msg("weather collaborator not configured, weather signals degrade to missing")
	}

	loop := learning.NewFeedbackLoop(store, cfg.Learning)
	svc := service.NewAgentService(
		store,
		forecast.NewDecomposer(cfg.Forecast),
		signals.NewProcessor(registry, store, weather),
		forecast.NewModel(cfg.Forecast),
		optimize.NewOptimizer(cfg.Optimizer),
		loop,
		insights.NewExplainer(insights.NewTextCollaborator(cfg.Insights), cfg.Insights.HistoryWindow),
		forecastCache,
		cfg.Forecast,
	)

	// The feedback loop runs decoupled from request handling.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go loop.Run(loopCtx)

	router := api.NewRouter(svc, cfg.Server.AllowedOrigins, cfg.Server.RequestDeadline)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")
	stopLoop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

func buildStore(cfg *config.Config) repository.SignalStore {
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		return postgres.NewSignalStore(db)
	}

	store := memory.NewStore()
	if cfg.Database.DemoSeed {
		if err := memory.SeedDemoData(context.Background(), store, cfg.Forecast.LookbackDays, 1); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to seed demo data")
		}
	}
	return store
}

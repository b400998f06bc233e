package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FACorreiaa/go-tripwise/internal/app/cities"
	"github.com/FACorreiaa/go-tripwise/internal/app/favorites"
	"github.com/FACorreiaa/go-tripwise/internal/app/planning"
	"github.com/FACorreiaa/go-tripwise/internal/app/state"
	"github.com/FACorreiaa/go-tripwise/internal/pkg/auth"
	"github.com/FACorreiaa/go-tripwise/internal/pkg/config"
	"github.com/FACorreiaa/go-tripwise/internal/pkg/store"
	"github.com/FACorreiaa/go-tripwise/internal/server"
	applog "github.com/FACorreiaa/go-tripwise/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	// Initialize logger
	if err := applog.Init(zapcore.InfoLevel, zap.String("service", "tripwise-client")); err != nil {
		return err
	}
	logger := applog.Log
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize observability
	otelShutdown, err := server.InitObservability("tripwise-client", ":"+cfg.MetricsPort, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	// Session credential: file handoff wins over the environment variable.
	var creds auth.CredentialProvider = auth.EnvProvider{Key: cfg.TokenEnvKey}
	if cfg.TokenFile != "" {
		creds = auth.FileProvider{Path: cfg.TokenFile}
	}
	creds = auth.NewScreenedProvider(creds, logger)

	// Remote clients and the state manager
	st := store.New(cfg.StateDir, logger)
	planningSvc := planning.NewService(cfg.Services.PlanningBaseURL, cfg.Services.RequestTimeout, creds, logger)
	favoritesSvc := favorites.NewService(cfg.Services.FavoritesBaseURL, cfg.Services.RequestTimeout, creds, logger)
	citySvc := cities.NewService(cfg.Services.CitiesBaseURL, cfg.Services.RequestTimeout, cfg.CityCacheTTL, logger)

	manager := state.NewManager(planningSvc, favoritesSvc, st, creds, logger)
	manager.Initialize(context.Background())

	// Create server
	srv := server.New(cfg, logger, manager)

	// Setup router
	router := server.SetupRouter(manager, citySvc, logger)
	srv.SetRouter(router)

	// Start pprof server (on separate port, not exposed publicly)
	server.StartPprofServer(":"+cfg.PprofPort, logger)

	// Create HTTP server
	httpServer := srv.HTTPServer()

	// Setup graceful shutdown
	done := make(chan bool, 1)
	go server.GracefulShutdown(httpServer, logger, done)

	// Start server
	logger.Info("Gateway starting", zap.String("port", cfg.ServerPort))
	if err := httpServer.ListenAndServe(); err != nil {
		logger.Error("Server error", zap.Error(err))
	}

	// Wait for graceful shutdown to complete
	<-done
	logger.Info("Graceful shutdown complete")

	return nil
}

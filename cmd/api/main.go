package main

import (
	"fmt"
	"os"

	"tally/internal/clock"
	"tally/internal/config"
	"tally/internal/database"
	"tally/internal/logger"
	"tally/internal/server"
	"tally/internal/validator"
)

// @title           Tally API
// @version         1.0
// @description     Tally keeps a personal ledger and the state derived from it: recurring transactions, investment positions and monthly net worth snapshots.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey PipelineKey
// @in header
// @name X-API-Key
// @description Shared key for the scheduler and price feed endpoints.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	loc, err := appConfig.Location()
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	svc := server.NewServices(dbManager.DB(), clock.NewSystem(loc), appConfig.SchedulerWorkers)
	router := server.NewRouter(svc, server.Options{
		PipelineAPIKey:      appConfig.PipelineAPIKey,
		ReminderHorizonDays: appConfig.ReminderHorizonDays,
		Location:            loc,
		RequestLogging:      true,
		Swagger:             true,
	})

	if appConfig.PipelineAPIKey == "" {
		log.Warn("PIPELINE_API_KEY is not set; pipeline endpoints are disabled")
	}

	log.Infow("Starting Tally server", "port", appConfig.Port, "driver", appConfig.DBDriver, "timezone", loc.String())
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}

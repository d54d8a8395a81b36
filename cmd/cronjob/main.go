package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"matrix-commission-backend/internal/config"
	"matrix-commission-backend/internal/jobs"
	"matrix-commission-backend/internal/logger"
	"matrix-commission-backend/internal/repository/postgres"
	"matrix-commission-backend/internal/scheduler"
	"matrix-commission-backend/internal/service"
)

var availableJobs = []string{
	"run-due-payouts",
	"refresh-eligibility",
	"reconcile-wallets",
	"reset-monthly-purchases",
	"rebuild-hierarchy",
	"distribute-pool",
	"all-nightly",
	"all-monthly",
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'run-due-payouts', 'all-nightly', 'all-monthly')")
	adminID := flag.Int64("admin-id", 0, "Admin user recorded on a distribute-pool run")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Matrix Commission Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	if err := postgres.EnsureSchema(context.Background(), db); err != nil {
		logger.Error("Failed to apply schema", "error", err)
		log.Fatalf("Failed to apply schema: %v", err)
	}

	// Initialize Services
	services, err := service.NewServices(postgres.NewStore(db), cfg)
	if err != nil {
		logger.Error("Failed to build services", "error", err)
		log.Fatalf("Failed to build services: %v", err)
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(services, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if err := runJobOnce(jobRunner, *runOnce, *adminID); err != nil {
			logger.Error("Job failed", "job", *runOnce, "error", err)
			db.Close()
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to register jobs", "error", err)
		log.Fatalf("Failed to register jobs: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once
func runJobOnce(jobRunner *jobs.JobRunner, jobName string, adminID int64) error {
	switch jobName {
	case "run-due-payouts":
		return jobRunner.RunDueSelfIncomePayouts()
	case "refresh-eligibility":
		return jobRunner.RefreshEligibility()
	case "reconcile-wallets":
		return jobRunner.ReconcileWallets()
	case "reset-monthly-purchases":
		return jobRunner.ResetMonthlyPurchases()
	case "rebuild-hierarchy":
		return jobRunner.RebuildHierarchy()
	case "distribute-pool":
		return jobRunner.DistributePool(adminID)
	case "all-nightly":
		return jobRunner.RunAllNightlyJobs()
	case "all-monthly":
		return jobRunner.RunAllMonthlyJobs()
	default:
		fmt.Printf("Available jobs:\n")
		for _, name := range availableJobs {
			fmt.Printf("  - %s\n", name)
		}
		return fmt.Errorf("unknown job %q", jobName)
	}
}

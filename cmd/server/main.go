/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Initialize SQLite store and the workbook mirror
  3. Wire dispatcher -> ledger -> approval engine -> reports
  4. Configure HTTP router and the stale-request sweeper
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper, drain the mirror backlog
  4. Close the workbook and database
  5. Exit

EXAMPLES:
  # Run with defaults (./data/attendance.db, deadline 11:00)
  ./server

  # Point at another .env
  ./server -env=./deploy/prod.env

SEE ALSO:
  - config: environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/standup/attendance-engine/api"
	"github.com/standup/attendance-engine/approval"
	"github.com/standup/attendance-engine/config"
	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/notify"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/report"
	"github.com/standup/attendance-engine/store/sqlite"
	"github.com/standup/attendance-engine/syncer"
	"github.com/standup/attendance-engine/workday"
)

func main() {
	envPath := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	roster := registry.NewRoster(store, cfg.Owners, cfg.HR)

	var mirrors []syncer.Mirror
	var workbook *syncer.Workbook
	if cfg.WorkbookPath != "" {
		workbook, err = syncer.NewWorkbook(cfg.WorkbookPath, store, logger.Named("workbook"))
		if err != nil {
			logger.Fatal("failed to open workbook mirror", zap.Error(err))
		}
		mirrors = append(mirrors, workbook)
	}

	dispatcher := syncer.New(store, mirrors, syncer.WithLogger(logger.Named("syncer")))

	resolver := workday.Resolver{Deadline: cfg.Deadline, Location: cfg.Timezone}
	led := ledger.New(store, dispatcher, resolver,
		ledger.WithLogger(logger.Named("ledger")),
		ledger.WithLeavePolicy(ledger.LeavePolicy{
			FreeLeavesPerMonth: cfg.FreeLeavesPerMonth,
			DeductionPerLeave:  cfg.DeductionPerLeave,
		}))

	engineOpts := []approval.Option{approval.WithLogger(logger.Named("approval"))}
	if cfg.OwnerSelfApproval {
		engineOpts = append(engineOpts, approval.WithOwnerSelfApproval())
	}
	engine := approval.NewEngine(store, roster, led, engineOpts...)

	handler := api.NewHandler(led, engine, roster,
		report.New(led, roster),
		notify.NewLog(logger.Named("notify")),
		logger.Named("api"))

	sweeper := api.NewSweeper(engine, cfg.RequestMaxAge, logger.Named("sweeper"))
	sweeper.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("deadline", cfg.Deadline.String()),
			zap.String("timezone", cfg.Timezone.String()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}

	sweeper.Stop()
	dispatcher.Close()
	if workbook != nil {
		if err := workbook.Close(); err != nil {
			logger.Warn("failed to close workbook", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

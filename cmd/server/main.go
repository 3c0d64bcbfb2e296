/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rubber purchase transaction server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load TOML config
  2. Build the zerolog logger
  3. Initialize SQLite store (migrations run here)
  4. Create the transaction engine and backup scheduler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  TOML config file (default: rubber.toml, optional)
  -port    HTTP server port, overrides config
  -db      SQLite database path, overrides config
           Use ":memory:" for in-memory database

ENVIRONMENT:
  RUBBER_PORT, RUBBER_DB_PATH, RUBBER_LOG_LEVEL override the config file.
  Flags override both.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the backup scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/rubber.db"

  # Run with in-memory database and demo scenarios
  RUBBER_LOG_LEVEL=debug ./server -db=":memory:" -config=dev.toml

SEE ALSO:
  - config/config.go: Configuration sections
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Prider/buy-rubber-sub000/api"
	"github.com/Prider/buy-rubber-sub000/config"
	"github.com/Prider/buy-rubber-sub000/logging"
	"github.com/Prider/buy-rubber-sub000/purchase"
	"github.com/Prider/buy-rubber-sub000/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "rubber.toml", "TOML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logging.New("error", "console", os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	log := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to initialize database")
	}
	defer store.Close()

	limits := cfg.Limits()
	engine := purchase.NewEngine(purchase.Config{
		Ledger: store,
		Owners: store,
		Limits: limits,
		Logger: log.With().Str("component", "purchase").Logger(),
	})

	scheduler := api.NewBackupScheduler(store, cfg.Backup, log)
	scheduler.Start()

	// Create router
	handler := api.NewHandler(engine, store, scheduler)
	router := api.NewRouter(handler, cfg.Server, log)

	// A request makes at most three sequential guarded calls.
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3*limits.CallTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("db", cfg.Database.Path).
			Bool("scenarios", cfg.Server.EnableScenarios).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

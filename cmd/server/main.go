/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the invoice ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse command-line flags
  2. Configure the global logger
  3. Open the selected store (memory, sqlite or postgres)
  4. Build the ledger, handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -store       Store driver: memory, sqlite, postgres (default: sqlite)
  -db          SQLite database path (default: invoices.db)
               Use ":memory:" for an in-memory database
  -pg-dsn      PostgreSQL DSN (postgres driver only; falls back to
               DATABASE_URL)
  -log-level   trace, debug, info, warn, error (default: info)
  -log-format  console or json (default: console)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # Embedded database
  ./server -db="./data/invoices.db"

  # Throwaway in-memory ledger
  ./server -store=memory

  # PostgreSQL
  ./server -store=postgres -pg-dsn="postgres://app@localhost/invoices"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - invoice/ledger.go: The state machine this server fronts
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/warp/invoice-ledger/api"
	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/logger"
	"github.com/warp/invoice-ledger/store/memory"
	"github.com/warp/invoice-ledger/store/postgres"
	"github.com/warp/invoice-ledger/store/sqlite"
)

func main() {
	// .env is optional; flags win over environment.
	_ = godotenv.Load()

	port := flag.Int("port", 8080, "HTTP server port")
	storeDriver := flag.String("store", "sqlite", "store driver: memory, sqlite, postgres")
	dbPath := flag.String("db", "invoices.db", "SQLite database path")
	pgDSN := flag.String("pg-dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN")
	logLevel := flag.String("log-level", "info", "log level: trace, debug, info, warn, error")
	logFormat := flag.String("log-format", "console", "log format: console or json")
	flag.Parse()

	if err := logger.Setup(logger.Config{Level: *logLevel, Format: *logFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, *storeDriver, *dbPath, *pgDSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", *storeDriver).Msg("failed to open store")
	}
	defer closeStore()

	ledger := invoice.NewLedger(store)
	handler := api.NewHandler(ledger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Int("port", *port).
			Str("store", *storeDriver).
			Msg("invoice ledger server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// openStore builds the selected invoice.Store and returns a close func.
func openStore(ctx context.Context, driver, dbPath, pgDSN string) (invoice.Store, func(), error) {
	switch driver {
	case "memory":
		return memory.New(), func() {}, nil

	case "sqlite":
		store, err := sqlite.New(dbPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case "postgres":
		if pgDSN == "" {
			return nil, nil, fmt.Errorf("postgres driver requires -pg-dsn or DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, pgDSN)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

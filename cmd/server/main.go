/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the time clock engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present), parse command-line flags
  2. Configure logrus
  3. Resolve the venue timezone
  4. Initialize SQLite store, seed break rules when table is empty
  5. Create API handler with dependencies
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: timeclock.db)
             Use ":memory:" for in-memory database
  -tz        IANA timezone of the venue (default: Europe/Berlin)
  -rules     Break-rule JSON config; seeds the table on first start
  -log-level logrus level (default: info)

ENVIRONMENT:
  Flags fall back to PORT, DB_PATH, TIMEZONE, BREAK_RULES_FILE and
  LOG_LEVEL; a .env file next to the binary is loaded first.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/timeclock.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Different venue timezone
  ./server -tz="Europe/Vienna"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shiftbook/timeclock-engine/api"
	"github.com/shiftbook/timeclock-engine/engine"
	"github.com/shiftbook/timeclock-engine/factory"
	"github.com/shiftbook/timeclock-engine/store/sqlite"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; flags and real environment win.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "timeclock.db"), "SQLite database path")
	tzName := flag.String("tz", envStr("TIMEZONE", engine.DefaultLocationName), "venue IANA timezone")
	rulesFile := flag.String("rules", envStr("BREAK_RULES_FILE", ""), "break-rule JSON config file")
	logLevel := flag.String("log-level", envStr("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	log := logrus.New()
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	}

	loc, err := time.LoadLocation(*tzName)
	if err != nil {
		log.WithError(err).Fatalf("unknown timezone %q", *tzName)
	}

	store, err := sqlite.New(*dbPath, loc)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	if err := seedBreakRules(context.Background(), store, *rulesFile); err != nil {
		log.WithError(err).Fatal("failed to seed break rules")
	}

	handler := api.NewHandler(store, loc, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":     *port,
			"timezone": *tzName,
			"db":       *dbPath,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

// seedBreakRules populates the break table on first start. An already
// populated table is left alone so admin edits survive restarts.
func seedBreakRules(ctx context.Context, store *sqlite.Store, rulesFile string) error {
	existing, err := store.BreakRules(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	var table engine.BreakTable
	if rulesFile != "" {
		table, err = factory.LoadBreakRules(rulesFile)
	} else {
		table, err = factory.ParseBreakRules(factory.DefaultBreakRulesJSON())
	}
	if err != nil {
		return err
	}
	return store.ReplaceBreakRules(ctx, table)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

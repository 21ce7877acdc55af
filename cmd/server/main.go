/*
main.go - Application entry point

PURPOSE:

	Starts the production ledger HTTP server. Handles configuration,
	dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
 1. Load configuration from LEDGER_* environment variables
 2. Build the logger
 3. Open the SQLite store (schema auto-migrated)
 4. Connect the report cache (optional, LEDGER_REDIS_ADDR)
 5. Build the ledger service and HTTP router
 6. Start the period total reconciler (LEDGER_RECONCILE_INTERVAL)
 7. Start server with graceful shutdown

COMMAND-LINE FLAGS:

	-seed               Load the demo scenario before serving
	-issue-token ROLE   Print a bearer token for ROLE (admin|viewer) and exit

GRACEFUL SHUTDOWN:

	On SIGINT/SIGTERM:
	1. Stop accepting new connections
	2. Wait for active requests to complete (30s timeout)
	3. Stop the reconciler
	4. Close cache and database connections
	5. Exit

EXAMPLES:

	# Run with file database
	LEDGER_JWT_SECRET=dev LEDGER_DB_PATH=./data/ledger.db ./server

	# In-memory database with demo data
	LEDGER_JWT_SECRET=dev LEDGER_DB_PATH=":memory:" ./server -seed

	# Token for local calls
	LEDGER_JWT_SECRET=dev ./server -issue-token admin

SEE ALSO:
  - app/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/palmapsd/production-ledger/api"
	"github.com/palmapsd/production-ledger/app"
	"github.com/palmapsd/production-ledger/cache"
	"github.com/palmapsd/production-ledger/ledger"
	"github.com/palmapsd/production-ledger/store/sqlite"
)

func main() {
	// Flags
	seed := flag.Bool("seed", false, "load the demo scenario before serving")
	issueRole := flag.String("issue-token", "", "print a bearer token for the given role and exit")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if *issueRole != "" {
		role, err := ledger.ParseRole(*issueRole)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid role")
		}
		actor := ledger.Actor{ID: "cli-" + string(role), Name: "CLI " + string(role), Role: role}
		token, err := api.IssueToken([]byte(cfg.JWTSecret), actor, cfg.TokenTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to issue token")
		}
		fmt.Println(token)
		return
	}

	loc, _ := cfg.Location()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("db", cfg.DBPath).Msg("failed to initialize database")
	}
	defer store.Close()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	reports, err := cache.Connect(startCtx, cfg.RedisAddr, cfg.CacheTTL)
	cancelStart()
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("report cache unavailable, continuing without it")
		reports = cache.NewReportCache(nil, cfg.CacheTTL)
	}
	defer reports.Close()

	svc := ledger.NewService(store,
		ledger.WithCache(reports),
		ledger.WithLogger(logger),
		ledger.WithLocation(loc),
		ledger.WithOptions(cfg.LedgerOptions()),
	)

	if *seed {
		summary, err := ledger.LoadDemoScenario(context.Background(), svc, ledger.SystemActor)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load demo scenario")
		}
		logger.Info().Int("productions", summary.Productions).Msg("demo data ready")
	}

	reconciler := ledger.NewReconciler(svc, cfg.ReconcileInterval)
	reconciler.Start(context.Background())
	defer reconciler.Stop()

	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:           []byte(cfg.JWTSecret),
		CORSOrigins:         cfg.CORSOrigins,
		ExportRatePerMinute: cfg.ExportRatePerMinute,
		Production:          cfg.IsProduction(),
		Logger:              logger,
	})

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("timezone", loc.String()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	logger.Info().Msg("server stopped")
}

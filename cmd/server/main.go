/*
main.go - Application entry point

PURPOSE:
  Builds the mfg-ledger CLI. Handles configuration, dependency injection,
  and graceful shutdown of the HTTP server.

COMMANDS:
  serve          Run the HTTP API
  import-stock   Book an xlsx stock-in sheet directly against the database

STARTUP SEQUENCE (serve):
  1. Load .env and MFG_* environment, then apply flag overrides
  2. Build the logger and the metrics registry
  3. Open the store (SQLite file, or in-memory when the path is "memory")
  4. Create the two ledger services and the API handler
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server serve --db=./data/mfg.db

  # Run with in-memory store on a different port
  ./server serve --db=memory --port=3000

  # Import a sheet for a customer into a warehouse
  ./server import-stock --file=in.xlsx --warehouse=wh-1 --customer=cust-1

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/mfg-ledger/api"
	"github.com/warp/mfg-ledger/config"
	"github.com/warp/mfg-ledger/domain"
	memstore "github.com/warp/mfg-ledger/domain/store"
	"github.com/warp/mfg-ledger/inventory"
	"github.com/warp/mfg-ledger/metrics"
	"github.com/warp/mfg-ledger/purchasing"
	"github.com/warp/mfg-ledger/store/sqlite"
)

// app is what every command needs once config has been resolved.
type app struct {
	cfg        config.Config
	log        *logrus.Logger
	metrics    *metrics.Metrics
	store      domain.TxStore
	closeStore func() error
	purchasing *purchasing.Service
	inventory  *inventory.Service
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mfg-ledger",
		Short:         "Purchase order versions and material stock ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("db", "", "SQLite database path, or \"memory\" (overrides MFG_DB_PATH)")
	root.PersistentFlags().String("log-level", "", "Log level (overrides MFG_LOG_LEVEL)")
	root.PersistentFlags().String("env-file", ".env", "Optional .env file to load")

	root.AddCommand(newServeCmd(), newImportStockCmd())
	return root
}

// setup resolves config (file, env, flags) and opens the store.
func setup(cmd *cobra.Command) (*app, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New(metrics.DefaultConfig())}
	if cfg.UseMemoryStore() {
		log.Warn("using in-memory store; data is lost on exit")
		a.store = memstore.NewTxMemory()
		a.closeStore = func() error { return nil }
	} else {
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.store = s
		a.closeStore = s.Close
	}

	a.purchasing = purchasing.NewService(a.store, log, a.metrics)
	a.inventory = inventory.NewService(a.store, log, a.metrics)
	return a, nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.closeStore()
			return serve(a)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP server port (overrides MFG_PORT)")
	return cmd
}

func serve(a *app) error {
	handler := api.NewHandler(a.purchasing, a.inventory, a.log)
	router := api.NewRouter(handler, api.RouterOptions{
		Metrics:     a.metrics,
		CORSOrigins: a.cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithFields(logrus.Fields{"port": a.cfg.Port, "db": a.cfg.DBPath}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	a.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.log.Info("server stopped")
	return nil
}

/*
main.go - Report server entry point

PURPOSE:
  Serves reconstructed accounts over HTTP. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the logger and tracer
  3. Open the configured store
  4. Optionally replay a CSV file
  5. Configure HTTP router and start serving

COMMAND-LINE FLAGS:
  -config  Directory holding an optional app.env (default: .)
  -addr    Listen address, overrides SERVER_ADDRESS
  -input   CSV transaction log to replay at startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Flush traces and close the store
  4. Exit

EXAMPLES:
  # In-memory store with a preloaded log
  STORE_DRIVER=memory ./server -input=transactions.csv

  # Keep a WAL journal between restarts
  STORE_DRIVER=wal RESET_ON_START=false ./server -addr=:3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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

	"github.com/rs/zerolog"
	"github.com/warp/payments-engine/api"
	"github.com/warp/payments-engine/config"
	"github.com/warp/payments-engine/csvio"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/logging"
	"github.com/warp/payments-engine/store"
	"github.com/warp/payments-engine/telemetry"
)

func main() {
	// Flags
	configDir := flag.String("config", ".", "directory holding an optional app.env")
	addr := flag.String("addr", "", "listen address (overrides SERVER_ADDRESS)")
	input := flag.String("input", "", "CSV transaction log to replay at startup")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ServerAddress = *addr
	}

	log, _ := logging.WithRunID(logging.New(cfg))
	ctx := log.WithContext(context.Background())

	shutdownTracing, err := telemetry.Setup(ctx, "payments-server", cfg)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}

	// Initialize store
	s, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to initialize store")
	}
	defer s.Close()

	// Initialize handler
	handler := api.NewHandler(ledger.NewProcessor(s, cfg.ReconstructWorkers))

	if *input != "" {
		if err := replayFile(ctx, handler, *input); err != nil {
			log.Fatal().Err(err).Str("input", *input).Msg("failed to replay input")
		}
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      api.NewRouter(handler, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", cfg.ServerAddress).Str("store", cfg.StoreDriver).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("flush traces")
	}

	log.Info().Msg("server stopped")
}

func replayFile(ctx context.Context, h *api.Handler, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stats, accounts, err := h.Replay(ctx, csvio.NewReader(f).Events())
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int("events", stats.Events).Int("accounts", len(accounts)).Msg("input replayed")
	return nil
}

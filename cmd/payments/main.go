/*
main.go - Batch CLI entry point

PURPOSE:
  Replays a CSV transaction log and writes one account per client to
  stdout. Logs go to stderr.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the logger and tracer
  3. Open (and by default reset) the store
  4. Ingest the whole file, then reconstruct every client
  5. Emit the report in the configured format

COMMAND-LINE FLAGS:
  -config  Directory holding an optional app.env (default: .)

  The single positional argument is the transaction log.

EXIT STATUS:
  0 on success, 1 on any error. Nothing is written to stdout when the
  input is malformed, because all events are ingested before output.

EXAMPLES:
  # Default SQLite file, CSV to stdout
  payments transactions.csv > accounts.csv

  # In-memory store, JSON lines
  STORE_DRIVER=memory OUTPUT_FORMAT=jsonl payments transactions.csv

SEE ALSO:
  - config/config.go: Environment variables
  - ledger/processor.go: The pipeline
*/
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/warp/payments-engine/config"
	"github.com/warp/payments-engine/csvio"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/logging"
	"github.com/warp/payments-engine/report"
	"github.com/warp/payments-engine/store"
	"github.com/warp/payments-engine/telemetry"
)

func main() {
	configDir := flag.String("config", ".", "directory holding an optional app.env")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config dir] transactions.csv > accounts.csv\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configDir, flag.Arg(0)); err != nil {
		os.Exit(1)
	}
}

func run(configDir, input string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	log, _ := logging.WithRunID(logging.New(cfg))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	if err := replay(ctx, cfg, input, os.Stdout); err != nil {
		log.Error().Stack().Err(err).Str("input", input).Msg("replay failed")
		return err
	}
	log.Debug().Msg("done")
	return nil
}

// replay writes the report for input to stdout.
func replay(ctx context.Context, cfg config.Config, input string, stdout io.Writer) (err error) {
	log := zerolog.Ctx(ctx)

	shutdown, err := telemetry.Setup(ctx, "payments", cfg)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			log.Warn().Err(serr).Msg("flush traces")
		}
	}()

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	s, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	p := ledger.NewProcessor(s, cfg.ReconstructWorkers)
	if _, err := p.Ingest(ctx, csvio.NewReader(bufio.NewReader(f)).Events()); err != nil {
		return err
	}
	accounts, err := p.Accounts(ctx)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(stdout)
	emitter, err := report.New(report.Options{
		Format:  cfg.OutputFormat,
		Brokers: cfg.Brokers(),
		Topic:   cfg.KafkaTopic,
	}, out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := emitter.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := report.EmitAll(ctx, emitter, accounts); err != nil {
		return fmt.Errorf("emit report: %w", err)
	}
	return out.Flush()
}

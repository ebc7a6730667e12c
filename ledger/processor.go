/*
processor.go - Batch pipeline: ingest everything, then reconstruct

PURPOSE:
  Wires the Ingestor, Enumerator and Reconstructor over one Store and runs
  them in the only order that is valid:

    1. Ingest the whole event stream, sequentially
    2. List the clients
    3. Reconstruct each client's account (parallel, bounded by Workers)

CONCURRENCY:
  Reconstruction starts only after ingestion has returned, so every worker
  sees the same fully-ingested store. Workers share nothing but the Store,
  which they only read. Results are returned sorted by client.

  Processor itself does not stop callers from ingesting while another
  goroutine reconstructs; the HTTP server serialises that with a RWMutex.

TRACING:
  Ingest and Accounts each open an OpenTelemetry span. Without a configured
  provider (see telemetry package) these are no-ops.

SEE ALSO:
  - ingest.go, account.go, clients.go: The three stages
  - cmd/payments: Batch CLI built on Processor
*/
package ledger

import (
	"context"
	"iter"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/warp/payments-engine/ledger"

// DefaultWorkers is used when Processor.Workers is not positive.
const DefaultWorkers = 4

type Processor struct {
	Store         Store
	Ingestor      *Ingestor
	Enumerator    *Enumerator
	Reconstructor *Reconstructor

	// Workers bounds parallel reconstruction.
	Workers int
}

func NewProcessor(store Store, workers int) *Processor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Processor{
		Store:         store,
		Ingestor:      NewIngestor(store),
		Enumerator:    NewEnumerator(store),
		Reconstructor: NewReconstructor(store),
		Workers:       workers,
	}
}

// Reset clears the store for a new batch.
func (p *Processor) Reset(ctx context.Context) error {
	return WrapStoreError("reset", p.Store.Reset(ctx))
}

// Ingest applies the event stream in order.
func (p *Processor) Ingest(ctx context.Context, events iter.Seq2[Event, error]) (IngestStats, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ledger.ingest", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	start := time.Now()
	stats, err := p.Ingestor.ApplyAll(ctx, events)
	span.SetAttributes(attribute.Int("ledger.events", stats.Events))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")
		return stats, err
	}

	ev := zerolog.Ctx(ctx).Info().
		Int("events", stats.Events).
		Dur("elapsed", time.Since(start))
	for kind, n := range stats.ByKind {
		ev = ev.Int(string(kind), n)
	}
	ev.Msg("ingestion complete")
	return stats, nil
}

// Accounts reconstructs every client with history, sorted by client.
func (p *Processor) Accounts(ctx context.Context) ([]Account, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ledger.reconstruct", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	clients, err := p.Enumerator.Clients(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list clients failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("ledger.clients", len(clients)))

	accounts := make([]Account, len(clients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for i, client := range clients {
		g.Go(func() error {
			acc, err := p.Reconstructor.Account(gctx, client)
			if err != nil {
				return err
			}
			accounts[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconstruct failed")
		return nil, err
	}

	locked := 0
	for _, a := range accounts {
		if a.Locked {
			locked++
		}
	}
	zerolog.Ctx(ctx).Info().
		Int("accounts", len(accounts)).
		Int("locked", locked).
		Msg("reconstruction complete")
	return accounts, nil
}

// Run ingests events and hands every reconstructed account to emit, in
// client order. The store is not reset; call Reset first for a fresh batch.
func (p *Processor) Run(ctx context.Context, events iter.Seq2[Event, error], emit func(Account) error) error {
	if _, err := p.Ingest(ctx, events); err != nil {
		return err
	}
	accounts, err := p.Accounts(ctx)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if err := emit(a); err != nil {
			return err
		}
	}
	return nil
}

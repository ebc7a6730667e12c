/*
ingest.go - Event to store mutation

PURPOSE:
  The Ingestor is the only writer of the ledger. Each event becomes exactly
  one Store call:

    deposit     Insert(client, tx, +amount)
    withdrawal  Insert(client, tx, -amount)
    dispute     SetDisputed(client, tx, true)
    resolve     SetDisputed(client, tx, false)
    chargeback  Chargeback(client, tx)

ORDERING:
  Events are applied one at a time in arrival order. Later events refer to
  transactions inserted by earlier ones and the ordinal assigned on insert
  defines replay order, so ingestion is never parallel.

WITHDRAWALS:
  A withdrawal is stored even when the client cannot afford it. Whether it
  counts is decided at replay time (see account.go), because a later
  dispute on it must still be recorded.

UNKNOWN REFERENCES:
  Disputes, resolves and chargebacks that match nothing are silently
  ignored by the Store. They still count as applied events.

SEE ALSO:
  - store.go: The Store contract
  - errors.go: MalformedEventError
*/
package ledger

import (
	"context"
	"iter"

	"github.com/rs/zerolog"
)

// =============================================================================
// INGESTOR
// =============================================================================

type Ingestor struct {
	Store Store
}

func NewIngestor(store Store) *Ingestor {
	return &Ingestor{Store: store}
}

// Apply validates ev and applies its mutation.
func (in *Ingestor) Apply(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return &MalformedEventError{Line: ev.Line, Kind: ev.Kind, Client: ev.Client, Tx: ev.Tx, Err: err}
	}

	var err error
	switch ev.Kind {
	case KindDeposit:
		err = in.Store.Insert(ctx, ev.Client, ev.Tx, ev.Amount.Decimal)
	case KindWithdrawal:
		err = in.Store.Insert(ctx, ev.Client, ev.Tx, ev.Amount.Decimal.Neg())
	case KindDispute:
		err = in.Store.SetDisputed(ctx, ev.Client, ev.Tx, true)
	case KindResolve:
		err = in.Store.SetDisputed(ctx, ev.Client, ev.Tx, false)
	case KindChargeback:
		err = in.Store.Chargeback(ctx, ev.Client, ev.Tx)
	}
	if err != nil {
		return WrapStoreError(string(ev.Kind), err)
	}

	zerolog.Ctx(ctx).Trace().
		Str("type", string(ev.Kind)).
		Uint16("client", uint16(ev.Client)).
		Uint32("tx", uint32(ev.Tx)).
		Msg("event applied")
	return nil
}

// IngestStats counts applied events by kind.
type IngestStats struct {
	Events int
	ByKind map[EventKind]int
}

// ApplyAll applies events in order and stops at the first error, which may
// come from the source itself (e.g. a CSV decode failure).
func (in *Ingestor) ApplyAll(ctx context.Context, events iter.Seq2[Event, error]) (IngestStats, error) {
	stats := IngestStats{ByKind: make(map[EventKind]int)}
	for ev, err := range events {
		if err != nil {
			return stats, err
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := in.Apply(ctx, ev); err != nil {
			return stats, err
		}
		stats.Events++
		stats.ByKind[ev.Kind]++
	}
	return stats, nil
}

// Events adapts a slice to the sequence ApplyAll consumes.
func Events(evs ...Event) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for _, ev := range evs {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

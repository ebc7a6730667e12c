/*
store.go - Persistence interface for ledger entries

PURPOSE:
  Defines the boundary between the replay engine and the database.
  The engine never sees SQL, files or journals; it only calls Store.

KEY INTERFACES:
  Store: Entry persistence (insert-or-ignore, flag updates, ordered reads)

CONTRACT:
  - Insert is insert-or-ignore on TxID: the first writer wins
  - Every flag update filters by BOTH client and tx, so an event can never
    touch another client's entry even though TxID is globally unique
  - Flag updates that match nothing are no-ops, not errors
  - StreamEntries yields a client's entries in ascending Ordinal order.
    The sequence is lazy and restartable: each range reads the store again
  - Failures are returned as *StoreError (ErrStoreFailure)

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory arena for tests and small batches
  - store/sqlstore: SQLite (mattn, modernc) and PostgreSQL
  - store/walstore: Append-only gowal journal with an in-memory projection

SEE ALSO:
  - ingest.go: Writes through Store
  - account.go: Reads through Store
*/
package ledger

import (
	"context"
	"iter"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Interface for ledger entry persistence
// =============================================================================

type Store interface {
	// Reset drops and recreates the entry table. Called once at startup.
	Reset(ctx context.Context) error

	// Insert adds an entry with the next ordinal. A colliding tx is ignored.
	Insert(ctx context.Context, client ClientID, tx TxID, amount decimal.Decimal) error

	// SetDisputed sets the disputed flag of the matching entry, if any.
	SetDisputed(ctx context.Context, client ClientID, tx TxID, disputed bool) error

	// Chargeback clears disputed and sets charged back on the matching
	// entry, only if it is currently disputed.
	Chargeback(ctx context.Context, client ClientID, tx TxID) error

	// ListClients returns every client with at least one entry.
	ListClients(ctx context.Context) ([]ClientID, error)

	// StreamEntries yields the client's entries in ascending ordinal order.
	// Iteration stops after the first non-nil error.
	StreamEntries(ctx context.Context, client ClientID) iter.Seq2[Entry, error]

	Close() error
}

// CollectEntries drains StreamEntries into a slice.
func CollectEntries(ctx context.Context, s Store, client ClientID) ([]Entry, error) {
	var entries []Entry
	for e, err := range s.StreamEntries(ctx, client) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

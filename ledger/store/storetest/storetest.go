// Package storetest holds the behaviour every ledger.Store backend must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payments-engine/ledger"
)

// Factory returns an empty store. It should register its own cleanup.
type Factory func(t *testing.T) ledger.Store

// DecimalComparer compares decimals by value, so 1.5 equals 1.50.
var DecimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool {
	return a.Equal(b)
})

// EntriesEqual diffs entries by value, ignoring backend-assigned ordinals.
func EntriesEqual(t *testing.T, want, got []ledger.Entry) {
	t.Helper()
	if diff := cmp.Diff(want, got, DecimalComparer, cmpopts.IgnoreFields(ledger.Entry{}, "Ordinal"), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func entry(client ledger.ClientID, tx ledger.TxID, amount string) ledger.Entry {
	return ledger.Entry{Client: client, Tx: tx, Amount: dec(amount)}
}

func collect(t *testing.T, s ledger.Store, client ledger.ClientID) []ledger.Entry {
	t.Helper()
	entries, err := ledger.CollectEntries(context.Background(), s, client)
	require.NoError(t, err)
	return entries
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertKeepsOrder", func(t *testing.T) {
		// GIVEN: Three entries for one client
		// WHEN: Streaming them back
		// THEN: They come back in insertion order with increasing ordinals
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Insert(ctx, 1, 3, dec("1.0")))
		require.NoError(t, s.Insert(ctx, 1, 1, dec("-0.5")))
		require.NoError(t, s.Insert(ctx, 1, 2, dec("2.25")))

		got := collect(t, s, 1)
		EntriesEqual(t, []ledger.Entry{
			entry(1, 3, "1.0"),
			entry(1, 1, "-0.5"),
			entry(1, 2, "2.25"),
		}, got)
		for i := 1; i < len(got); i++ {
			assert.Greater(t, got[i].Ordinal, got[i-1].Ordinal)
		}
	})

	t.Run("AmountPrecisionPreserved", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Insert(ctx, 1, 1, dec("0.12345678")))

		got := collect(t, s, 1)
		require.Len(t, got, 1)
		assert.True(t, got[0].Amount.Equal(dec("0.12345678")), "got %s", got[0].Amount)
	})

	t.Run("DuplicateTxIgnored", func(t *testing.T) {
		// GIVEN: tx 1 stored for client 1
		// WHEN: tx 1 is inserted again, for the same and for another client
		// THEN: The first entry wins and client 2 has no history
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Insert(ctx, 1, 1, dec("10")))
		require.NoError(t, s.Insert(ctx, 1, 1, dec("99")))
		require.NoError(t, s.Insert(ctx, 2, 1, dec("5")))

		EntriesEqual(t, []ledger.Entry{entry(1, 1, "10")}, collect(t, s, 1))
		assert.Empty(t, collect(t, s, 2))

		clients, err := s.ListClients(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []ledger.ClientID{1}, clients)
	})

	t.Run("SetDisputedFiltersByClient", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Insert(ctx, 1, 1, dec("10")))

		// Wrong client: no effect
		require.NoError(t, s.SetDisputed(ctx, 2, 1, true))
		assert.False(t, collect(t, s, 1)[0].Disputed)

		require.NoError(t, s.SetDisputed(ctx, 1, 1, true))
		assert.True(t, collect(t, s, 1)[0].Disputed)

		require.NoError(t, s.SetDisputed(ctx, 1, 1, false))
		assert.False(t, collect(t, s, 1)[0].Disputed)

		// Unknown tx: no effect, no error
		require.NoError(t, s.SetDisputed(ctx, 1, 42, true))
		assert.Len(t, collect(t, s, 1), 1)
	})

	t.Run("ChargebackRequiresDispute", func(t *testing.T) {
		// GIVEN: Two entries, only tx 2 disputed
		// WHEN: Both are charged back
		// THEN: Only tx 2 is charged back, and its dispute flag is cleared
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Insert(ctx, 1, 1, dec("10")))
		require.NoError(t, s.Insert(ctx, 1, 2, dec("5")))
		require.NoError(t, s.SetDisputed(ctx, 1, 2, true))

		require.NoError(t, s.Chargeback(ctx, 1, 1))
		require.NoError(t, s.Chargeback(ctx, 2, 2))
		require.NoError(t, s.Chargeback(ctx, 1, 2))

		want := []ledger.Entry{
			entry(1, 1, "10"),
			{Client: 1, Tx: 2, Amount: dec("5"), ChargedBack: true},
		}
		EntriesEqual(t, want, collect(t, s, 1))
	})

	t.Run("ListClientsDistinct", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		clients, err := s.ListClients(ctx)
		require.NoError(t, err)
		assert.Empty(t, clients)

		require.NoError(t, s.Insert(ctx, 7, 1, dec("1")))
		require.NoError(t, s.Insert(ctx, 3, 2, dec("1")))
		require.NoError(t, s.Insert(ctx, 7, 3, dec("1")))
		require.NoError(t, s.Insert(ctx, 65535, 4, dec("1")))

		clients, err = s.ListClients(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []ledger.ClientID{3, 7, 65535}, clients)
	})

	t.Run("StreamEntriesRestartable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Insert(ctx, 1, 1, dec("1")))
		require.NoError(t, s.Insert(ctx, 1, 2, dec("2")))
		require.NoError(t, s.Insert(ctx, 2, 4294967295, dec("3")))

		seq := s.StreamEntries(ctx, 1)

		// Stop after the first entry
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
			break
		}
		assert.Equal(t, 1, n)

		// A second range starts from the beginning again
		var txs []ledger.TxID
		for e, err := range seq {
			require.NoError(t, err)
			txs = append(txs, e.Tx)
		}
		assert.Equal(t, []ledger.TxID{1, 2}, txs)

		EntriesEqual(t, []ledger.Entry{entry(2, 4294967295, "3")}, collect(t, s, 2))
		assert.Empty(t, collect(t, s, 9))
	})

	t.Run("ResetClearsEverything", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Insert(ctx, 1, 1, dec("1")))
		require.NoError(t, s.Reset(ctx))

		clients, err := s.ListClients(ctx)
		require.NoError(t, err)
		assert.Empty(t, clients)
		assert.Empty(t, collect(t, s, 1))

		// The same tx id is accepted again after a reset
		require.NoError(t, s.Insert(ctx, 1, 1, dec("2")))
		EntriesEqual(t, []ledger.Entry{entry(1, 1, "2")}, collect(t, s, 1))
	})
}

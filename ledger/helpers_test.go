package ledger_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/ledger/store"
	"github.com/warp/payments-engine/ledger/store/storetest"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestProcessor(t *testing.T) *ledger.Processor {
	t.Helper()
	return ledger.NewProcessor(store.NewMemory(), 2)
}

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func deposit(client ledger.ClientID, tx ledger.TxID, amt string) ledger.Event {
	return ledger.Event{Kind: ledger.KindDeposit, Client: client, Tx: tx, Amount: amount(amt)}
}

func withdrawal(client ledger.ClientID, tx ledger.TxID, amt string) ledger.Event {
	return ledger.Event{Kind: ledger.KindWithdrawal, Client: client, Tx: tx, Amount: amount(amt)}
}

func dispute(client ledger.ClientID, tx ledger.TxID) ledger.Event {
	return ledger.Event{Kind: ledger.KindDispute, Client: client, Tx: tx}
}

func resolve(client ledger.ClientID, tx ledger.TxID) ledger.Event {
	return ledger.Event{Kind: ledger.KindResolve, Client: client, Tx: tx}
}

func chargeback(client ledger.ClientID, tx ledger.TxID) ledger.Event {
	return ledger.Event{Kind: ledger.KindChargeback, Client: client, Tx: tx}
}

// replay ingests events into a fresh processor and returns every account.
func replay(t *testing.T, events ...ledger.Event) []ledger.Account {
	t.Helper()
	p := newTestProcessor(t)
	ctx := context.Background()
	_, err := p.Ingest(ctx, ledger.Events(events...))
	require.NoError(t, err)
	accounts, err := p.Accounts(ctx)
	require.NoError(t, err)
	return accounts
}

// replayOne is replay for a single-client history.
func replayOne(t *testing.T, events ...ledger.Event) ledger.Account {
	t.Helper()
	accounts := replay(t, events...)
	require.Len(t, accounts, 1)
	return accounts[0]
}

func assertAccount(t *testing.T, acc ledger.Account, available, held, total string, locked bool) {
	t.Helper()
	assert.Equal(t, available, ledger.FormatAmount(acc.Available), "available")
	assert.Equal(t, held, ledger.FormatAmount(acc.Held), "held")
	assert.Equal(t, total, ledger.FormatAmount(acc.Total), "total")
	assert.Equal(t, locked, acc.Locked, "locked")
	assert.True(t, acc.Total.Equal(acc.Available.Add(acc.Held)), "total must equal available + held")
}

func assertSameAccounts(t *testing.T, want, got []ledger.Account) {
	t.Helper()
	if diff := cmp.Diff(want, got, storetest.DecimalComparer); diff != "" {
		t.Errorf("accounts mismatch (-want +got):\n%s", diff)
	}
}

package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payments-engine/ledger"
)

// =============================================================================
// REPLAY SCENARIOS
// =============================================================================

func TestReplay_DepositThenWithdrawal(t *testing.T) {
	acc := replayOne(t,
		deposit(1, 1, "100"),
		withdrawal(1, 2, "50"),
	)
	assertAccount(t, acc, "50.0000", "0.0000", "50.0000", false)
}

func TestReplay_DisputedDepositMovesToHeld(t *testing.T) {
	acc := replayOne(t,
		deposit(1, 1, "100"),
		dispute(1, 1),
	)
	assertAccount(t, acc, "0.0000", "100.0000", "100.0000", false)
}

func TestReplay_DisputeOnRejectedWithdrawal_NoEffect(t *testing.T) {
	// GIVEN: A withdrawal larger than the balance (rejected at replay)
	// WHEN: That withdrawal is disputed
	// THEN: Nothing changes, since it never committed
	acc := replayOne(t,
		deposit(1, 1, "100"),
		withdrawal(1, 2, "200"),
		dispute(1, 2),
	)
	assertAccount(t, acc, "100.0000", "0.0000", "100.0000", false)
}

func TestReplay_DisputedWithdrawalHeld_LaterWithdrawalRejected(t *testing.T) {
	// GIVEN: 100 deposited, 50 withdrawn and disputed
	// WHEN: Withdrawing 100
	// THEN: The withdrawal is skipped; 50 stays held
	acc := replayOne(t,
		deposit(1, 1, "100"),
		withdrawal(1, 2, "50"),
		dispute(1, 2),
		withdrawal(1, 3, "100"),
	)
	assertAccount(t, acc, "50.0000", "50.0000", "100.0000", false)
}

func TestReplay_ChargebackLocksAndTruncates(t *testing.T) {
	// GIVEN: Two deposits, the second disputed and charged back
	// WHEN: More deposits arrive before and after the chargeback
	// THEN: Only entries before the charged-back one count; account locked
	acc := replayOne(t,
		deposit(1, 1, "100"),
		deposit(1, 2, "50"),
		dispute(1, 2),
		deposit(1, 3, "30"),
		chargeback(1, 2),
		deposit(1, 4, "25"),
	)
	assertAccount(t, acc, "100.0000", "0.0000", "100.0000", true)
}

func TestReplay_DisputedDepositThenWithdrawal(t *testing.T) {
	acc := replayOne(t,
		deposit(1, 1, "10"),
		deposit(1, 2, "5"),
		dispute(1, 1),
		withdrawal(1, 3, "3"),
	)
	assertAccount(t, acc, "2.0000", "10.0000", "12.0000", false)
}

func TestReplay_ChargebackOnWithdrawal(t *testing.T) {
	acc := replayOne(t,
		deposit(1, 1, "10"),
		withdrawal(1, 2, "4"),
		dispute(1, 2),
		chargeback(1, 2),
	)
	assertAccount(t, acc, "10.0000", "0.0000", "10.0000", true)
}

func TestReplay_ChargebackOnRejectedWithdrawal(t *testing.T) {
	// The rejected withdrawal still locks the account when charged back.
	acc := replayOne(t,
		deposit(1, 1, "10"),
		withdrawal(1, 2, "40"),
		dispute(1, 2),
		chargeback(1, 2),
	)
	assertAccount(t, acc, "10.0000", "0.0000", "10.0000", true)
}

func TestReplay_ChargebackWithoutDispute_Ignored(t *testing.T) {
	acc := replayOne(t,
		deposit(1, 1, "10"),
		chargeback(1, 1),
	)
	assertAccount(t, acc, "10.0000", "0.0000", "10.0000", false)
}

func TestReplay_ResolveAfterChargeback_StaysLocked(t *testing.T) {
	acc := replayOne(t,
		deposit(1, 1, "10"),
		dispute(1, 1),
		chargeback(1, 1),
		resolve(1, 1),
		dispute(1, 1),
	)
	assertAccount(t, acc, "0.0000", "0.0000", "0.0000", true)
}

func TestReplay_WithdrawalWithoutFunds_Ignored(t *testing.T) {
	acc := replayOne(t,
		withdrawal(1, 1, "1"),
		deposit(1, 2, "2"),
	)
	assertAccount(t, acc, "2.0000", "0.0000", "2.0000", false)
}

func TestReplay_NegativeDeposit_AppliedWhenFunded(t *testing.T) {
	// GIVEN: A deposit of 100, then a deposit of -5
	// WHEN: Replaying
	// THEN: The negative deposit reduces available like a withdrawal
	acc := replayOne(t,
		deposit(1, 1, "100"),
		deposit(1, 2, "-5"),
	)
	assertAccount(t, acc, "95.0000", "0.0000", "95.0000", false)
}

func TestReplay_NegativeDeposit_SkippedWithoutFunds(t *testing.T) {
	// GIVEN: A deposit of 3, then a deposit of -5
	// WHEN: Replaying
	// THEN: The negative deposit would overdraw, so it is skipped
	acc := replayOne(t,
		deposit(1, 1, "3"),
		deposit(1, 2, "-5"),
	)
	assertAccount(t, acc, "3.0000", "0.0000", "3.0000", false)
}

func TestReplay_NegativeWithdrawal_AddsFunds(t *testing.T) {
	// GIVEN: A withdrawal of -2 on an empty account
	// WHEN: Replaying
	// THEN: The negated amount is credited
	acc := replayOne(t, withdrawal(1, 1, "-2"))
	assertAccount(t, acc, "2.0000", "0.0000", "2.0000", false)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestReplay_DisputeThenResolve_RestoresState(t *testing.T) {
	base := []ledger.Event{
		deposit(1, 1, "12.5"),
		withdrawal(1, 2, "2.25"),
		deposit(1, 3, "0.0001"),
	}
	before := replayOne(t, base...)

	for _, tx := range []ledger.TxID{1, 2, 3} {
		events := append(append([]ledger.Event{}, base...), dispute(1, tx), resolve(1, tx))
		after := replayOne(t, events...)
		assertSameAccounts(t, []ledger.Account{before}, []ledger.Account{after})
	}
}

func TestReplay_SameEventsTwice_SameResult(t *testing.T) {
	events := []ledger.Event{
		deposit(1, 1, "3"),
		deposit(2, 2, "4"),
		withdrawal(1, 3, "1"),
		dispute(2, 2),
	}
	assertSameAccounts(t, replay(t, events...), replay(t, events...))
}

func TestReplay_DuplicateDeposit_NoOp(t *testing.T) {
	acc := replayOne(t,
		deposit(1, 1, "100"),
		deposit(1, 1, "100"),
		deposit(1, 1, "5"),
	)
	assertAccount(t, acc, "100.0000", "0.0000", "100.0000", false)
}

func TestReplay_TxOfOtherClient_NotAffected(t *testing.T) {
	// GIVEN: tx 1 belongs to client 1
	// WHEN: Client 2 disputes and charges back tx 1
	// THEN: Neither client's account changes
	accounts := replay(t,
		deposit(1, 1, "10"),
		deposit(2, 2, "5"),
		dispute(2, 1),
		chargeback(2, 1),
	)
	require.Len(t, accounts, 2)
	assertAccount(t, accounts[0], "10.0000", "0.0000", "10.0000", false)
	assertAccount(t, accounts[1], "5.0000", "0.0000", "5.0000", false)
}

func TestReplay_UnknownReferences_Ignored(t *testing.T) {
	acc := replayOne(t,
		deposit(1, 1, "1"),
		dispute(1, 99),
		resolve(1, 99),
		chargeback(1, 99),
	)
	assertAccount(t, acc, "1.0000", "0.0000", "1.0000", false)
}

func TestReplay_RoundsHalfEven(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"1.00005", "1.0000"},
		{"1.00015", "1.0002"},
		{"2.12344999", "2.1234"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			acc := replayOne(t, deposit(1, 1, tt.amount))
			assert.Equal(t, tt.want, ledger.FormatAmount(acc.Available))
		})
	}
}

func TestReplay_AccountsSortedByClient(t *testing.T) {
	accounts := replay(t,
		deposit(9, 1, "1"),
		deposit(2, 2, "1"),
		deposit(65535, 3, "1"),
		deposit(2, 4, "1"),
	)
	var clients []ledger.ClientID
	for _, a := range accounts {
		clients = append(clients, a.Client)
	}
	assert.Equal(t, []ledger.ClientID{2, 9, 65535}, clients)
}

func TestReconstructor_UnknownClient_ZeroAccount(t *testing.T) {
	p := newTestProcessor(t)
	acc, err := p.Reconstructor.Account(context.Background(), 42)
	require.NoError(t, err)
	assertAccount(t, acc, "0.0000", "0.0000", "0.0000", false)
	assert.Equal(t, ledger.ClientID(42), acc.Client)
}

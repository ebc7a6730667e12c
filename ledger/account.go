/*
account.go - Account reconstruction by replaying ledger entries

PURPOSE:
  Computes a client's account from its entries. There is no stored balance
  that can drift: every request folds the entries again, in ordinal order.

THE FOLD:
  Running state (available, held) starts at zero. For each entry:

    1. Charged back?  Stop. The account is locked and keeps the state
                      accumulated so far; later entries are ignored.
    2. Disputed?      held += |amount|, and for a withdrawal (negative
                      amount) also available += amount.
       Otherwise:     available += amount.
    3. If the candidate available would be negative, skip this entry and
       keep the previous state.
    4. Otherwise commit.

  Finally available, held and total are rounded to 4 places, half-even.

WHY DISPUTED WITHDRAWALS TOUCH AVAILABLE:
  A disputed withdrawal's value sits in held as escrow. Adding the negative
  amount to available keeps total unchanged while the dispute is open, and
  the guard in step 3 still rejects it when the client could never afford it.

EXAMPLE:
  deposit 100, withdrawal 50, dispute on the withdrawal, withdrawal 100

  entry            available  held   note
  +100             100        0
  -50 (disputed)   50         50     held escrow
  -100             50         50     would be -50, skipped

DETERMINISM:
  The result depends on the flags at the moment of the read. A later
  resolve changes the next reconstruction, so results are only stable
  within one consistent view of the store.

SEE ALSO:
  - store.go: StreamEntries ordering contract
  - processor.go: Reconstructs every client after ingestion
*/
package ledger

import (
	"context"
	"iter"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECONSTRUCTOR
// =============================================================================

type Reconstructor struct {
	Store Store
}

func NewReconstructor(store Store) *Reconstructor {
	return &Reconstructor{Store: store}
}

// Account replays the client's entries from the store.
// A client without entries yields a zero, unlocked account.
func (r *Reconstructor) Account(ctx context.Context, client ClientID) (Account, error) {
	acc, err := Fold(client, r.Store.StreamEntries(ctx, client))
	if err != nil {
		return Account{}, WrapStoreError("stream entries", err)
	}
	return acc, nil
}

// Fold applies the replay rules to an ordered entry sequence.
// Entries are expected to belong to client and to be in ordinal order.
func Fold(client ClientID, entries iter.Seq2[Entry, error]) (Account, error) {
	acc := Account{
		Client:    client,
		Available: decimal.Zero,
		Held:      decimal.Zero,
		Total:     decimal.Zero,
	}

	for e, err := range entries {
		if err != nil {
			return Account{}, err
		}
		if e.ChargedBack {
			acc.Locked = true
			return acc.rounded(), nil
		}

		available, held := acc.Available, acc.Held
		if e.Disputed {
			held = held.Add(e.Amount.Abs())
			if e.Amount.IsNegative() {
				available = available.Add(e.Amount)
			}
		} else {
			available = available.Add(e.Amount)
		}

		if available.IsNegative() {
			continue
		}

		acc.Available = available
		acc.Held = held
		acc.Total = available.Add(held)
	}

	return acc.rounded(), nil
}

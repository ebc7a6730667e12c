/*
Package ledger provides the transaction replay engine.

PURPOSE:
  This package turns a sequential log of payment events (deposits,
  withdrawals, disputes, resolutions, chargebacks) into per-client account
  snapshots. Events mutate a Store; accounts are never stored, they are
  always recomputed by replaying a client's ledger entries in arrival order.

KEY CONCEPTS IN THIS FILE (types.go):
  - Event: One incoming row of the transaction log
  - Entry: A persisted deposit or withdrawal with mutable dispute flags
  - Account: The derived balance of one client
  - ClientID / TxID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Replay, don't cache: Account is a pure function of the entries
  2. Precision: Uses decimal.Decimal, never float64, for money
  3. Type Safety: ClientID and TxID cannot be mixed up
  4. First writer wins: a TxID is inserted at most once

USAGE:
  ev := ledger.Event{
      Kind:   ledger.KindDeposit,
      Client: 1,
      Tx:     1,
      Amount: decimal.NewNullDecimal(decimal.RequireFromString("100")),
  }

SEE ALSO:
  - ingest.go: Event to Store mutation
  - account.go: Entry replay into an Account
  - store.go: Persistence interface
*/
package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID uint16

type TxID uint32

// =============================================================================
// EVENT - One row of the incoming transaction log
// =============================================================================

type EventKind string

const (
	KindDeposit    EventKind = "deposit"
	KindWithdrawal EventKind = "withdrawal"
	KindDispute    EventKind = "dispute"
	KindResolve    EventKind = "resolve"
	KindChargeback EventKind = "chargeback"
)

// ParseEventKind maps a raw kind (case-insensitive, surrounding spaces
// ignored) to an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDeposit, KindWithdrawal, KindDispute, KindResolve, KindChargeback:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEventKind, s)
	}
}

// CarriesAmount reports whether events of this kind must have an amount.
func (k EventKind) CarriesAmount() bool {
	return k == KindDeposit || k == KindWithdrawal
}

type Event struct {
	Kind   EventKind
	Client ClientID
	Tx     TxID
	Amount decimal.NullDecimal

	// Line is the 1-based source position, when known. Used in errors only.
	Line int
}

// Validate checks the kind/amount combination.
func (e Event) Validate() error {
	switch e.Kind {
	case KindDeposit, KindWithdrawal:
		if !e.Amount.Valid {
			return ErrMissingAmount
		}
	case KindDispute, KindResolve, KindChargeback:
		if e.Amount.Valid {
			return ErrUnexpectedAmount
		}
	default:
		return ErrUnknownEventKind
	}
	return nil
}

// =============================================================================
// ENTRY - Persisted deposit/withdrawal with mutable flags
// =============================================================================

// Entry is one deposit (Amount as given) or withdrawal (Amount negated).
// Signed input amounts are kept, so either kind may end up with any sign.
// Only Disputed and ChargedBack ever change after insertion.
type Entry struct {
	Ordinal     int64
	Client      ClientID
	Tx          TxID
	Amount      decimal.Decimal
	Disputed    bool
	ChargedBack bool
}

// =============================================================================
// ACCOUNT - Derived client state
// =============================================================================

// Account is recomputed from scratch on every request and never persisted.
// Total is always Available + Held.
type Account struct {
	Client    ClientID
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}

// AmountScale is the number of fractional digits kept in reported amounts.
const AmountScale = 4

func (a Account) rounded() Account {
	a.Available = a.Available.RoundBank(AmountScale)
	a.Held = a.Held.RoundBank(AmountScale)
	a.Total = a.Total.RoundBank(AmountScale)
	return a
}

// FormatAmount renders an amount with exactly AmountScale fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixedBank(AmountScale)
}

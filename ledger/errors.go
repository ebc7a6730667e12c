/*
errors.go - Centralized error types for the replay engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify failures with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Malformed events - The input log is corrupt; the run aborts
  2. Store failures   - I/O or constraint errors; the run aborts

NOT AN ERROR:
  A dispute, resolve or chargeback naming a (client, tx) pair that does not
  exist is ignored. The report format has no channel for per-row warnings.

USAGE:
  if ledger.IsMalformed(err) {
      var me *ledger.MalformedEventError
      errors.As(err, &me) // me.Line, me.Kind ...
  }

SEE ALSO:
  - ingest.go: Produces MalformedEventError
  - store.go: Backends wrap driver errors in StoreError
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedEvent is the category of every input validation failure.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrMissingAmount is returned for a deposit or withdrawal without amount.
	ErrMissingAmount = errors.New("amount is required")

	// ErrUnexpectedAmount is returned for a dispute, resolve or chargeback
	// that carries an amount.
	ErrUnexpectedAmount = errors.New("amount must be omitted")

	// ErrInvalidAmount is returned when the amount is not a decimal number.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnknownEventKind is returned for an unrecognised event type.
	ErrUnknownEventKind = errors.New("unknown event kind")

	// ErrInvalidRecord is returned for rows with missing or non-numeric ids.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrStoreFailure is the category of every persistence failure.
	ErrStoreFailure = errors.New("store failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MalformedEventError describes an event rejected at ingestion.
type MalformedEventError struct {
	Line   int
	Kind   EventKind
	Client ClientID
	Tx     TxID
	Err    error
}

func (e *MalformedEventError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed event at line %d (type %q, client %d, tx %d): %v",
			e.Line, e.Kind, e.Client, e.Tx, e.Err)
	}
	return fmt.Sprintf("malformed event (type %q, client %d, tx %d): %v",
		e.Kind, e.Client, e.Tx, e.Err)
}

func (e *MalformedEventError) Unwrap() []error {
	return []error{ErrMalformedEvent, e.Err}
}

// StoreError wraps a backend failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreFailure, e.Err}
}

// WrapStoreError returns nil for a nil err. Errors that are already a
// StoreError are returned unchanged.
func WrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsMalformed returns true if the error is due to invalid input.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedEvent)
}

// IsStoreFailure returns true if the error came from the persistence layer.
func IsStoreFailure(err error) bool {
	return errors.Is(err, ErrStoreFailure)
}

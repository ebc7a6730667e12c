/*
Package csvio reads transaction logs and writes account reports as CSV.

INPUT FORMAT:
  type, client, tx, amount
  deposit, 1, 1, 1.0
  dispute, 1, 1,

  - Columns are located by header name, so their order may vary
  - Whitespace around every field is ignored
  - type is case-insensitive
  - amount may be empty, or its column missing, on dispute, resolve and
    chargeback rows
  - An empty input has no events

OUTPUT FORMAT:
  client,available,held,total,locked
  1,1.5000,0.0000,1.5000,false

ERRORS:
  Rows that cannot be decoded become *ledger.MalformedEventError with the
  1-based line number, so the CLI can point at the offending row.
*/
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/payments-engine/ledger"
)

// Header column names.
const (
	ColType   = "type"
	ColClient = "client"
	ColTx     = "tx"
	ColAmount = "amount"
)

// =============================================================================
// READER
// =============================================================================

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

type columns struct {
	kind, client, tx, amount int
}

func parseHeader(record []string) (columns, error) {
	cols := columns{kind: -1, client: -1, tx: -1, amount: -1}
	for i, name := range record {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ColType:
			cols.kind = i
		case ColClient:
			cols.client = i
		case ColTx:
			cols.tx = i
		case ColAmount:
			cols.amount = i
		}
	}

	var missing []string
	if cols.kind < 0 {
		missing = append(missing, ColType)
	}
	if cols.client < 0 {
		missing = append(missing, ColClient)
	}
	if cols.tx < 0 {
		missing = append(missing, ColTx)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("csv header is missing column(s): %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// Events decodes the input lazily. The sequence stops after the first
// error. It reads from the underlying reader, so it can be ranged once.
func (r *Reader) Events() iter.Seq2[ledger.Event, error] {
	return func(yield func(ledger.Event, error) bool) {
		cr := csv.NewReader(r.r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		cr.ReuseRecord = true

		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(ledger.Event{}, fmt.Errorf("read csv header: %w", err))
			return
		}
		cols, err := parseHeader(header)
		if err != nil {
			yield(ledger.Event{}, err)
			return
		}

		for {
			record, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(ledger.Event{}, fmt.Errorf("read csv: %w", err))
				return
			}
			line, _ := cr.FieldPos(0)

			ev, err := decode(record, cols, line)
			if err != nil {
				yield(ledger.Event{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func decode(record []string, cols columns, line int) (ledger.Event, error) {
	ev := ledger.Event{Line: line}
	malformed := func(err error) (ledger.Event, error) {
		return ledger.Event{}, &ledger.MalformedEventError{
			Line: line, Kind: ev.Kind, Client: ev.Client, Tx: ev.Tx, Err: err,
		}
	}

	kind, err := ledger.ParseEventKind(field(record, cols.kind))
	if err != nil {
		return malformed(err)
	}
	ev.Kind = kind

	raw := field(record, cols.client)
	client, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return malformed(fmt.Errorf("%w: client %q", ledger.ErrInvalidRecord, raw))
	}
	ev.Client = ledger.ClientID(client)

	raw = field(record, cols.tx)
	tx, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return malformed(fmt.Errorf("%w: tx %q", ledger.ErrInvalidRecord, raw))
	}
	ev.Tx = ledger.TxID(tx)

	if raw = field(record, cols.amount); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return malformed(fmt.Errorf("%w: %q", ledger.ErrInvalidAmount, raw))
		}
		ev.Amount = decimal.NewNullDecimal(amount)
	}

	if err := ev.Validate(); err != nil {
		return malformed(err)
	}
	return ev, nil
}

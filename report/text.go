package report

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/warp/payments-engine/csvio"
	"github.com/warp/payments-engine/ledger"
)

// =============================================================================
// CSV
// =============================================================================

type CSVEmitter struct {
	w *csvio.Writer
}

func NewCSV(w io.Writer) *CSVEmitter {
	return &CSVEmitter{w: csvio.NewWriter(w)}
}

func (e *CSVEmitter) Emit(_ context.Context, acc ledger.Account) error {
	return e.w.Write(acc)
}

func (e *CSVEmitter) Flush(_ context.Context) error {
	return e.w.Flush()
}

func (e *CSVEmitter) Close() error { return nil }

// =============================================================================
// JSON LINES
// =============================================================================

type JSONLEmitter struct {
	buf *bufio.Writer
	enc *json.Encoder
}

func NewJSONL(w io.Writer) *JSONLEmitter {
	buf := bufio.NewWriter(w)
	return &JSONLEmitter{buf: buf, enc: json.NewEncoder(buf)}
}

func (e *JSONLEmitter) Emit(_ context.Context, acc ledger.Account) error {
	return e.enc.Encode(NewRecord(acc))
}

func (e *JSONLEmitter) Flush(_ context.Context) error {
	return e.buf.Flush()
}

func (e *JSONLEmitter) Close() error { return nil }

package csvio

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/warp/payments-engine/ledger"
)

// ReportHeader is the first row of every account report.
var ReportHeader = []string{"client", "available", "held", "total", "locked"}

// Writer writes one account per row. The header is written before the
// first row, or by Flush when there are no rows.
type Writer struct {
	w             *csv.Writer
	headerWritten bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

func (w *Writer) writeHeader() error {
	if w.headerWritten {
		return nil
	}
	w.headerWritten = true
	return w.w.Write(ReportHeader)
}

func (w *Writer) Write(acc ledger.Account) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	return w.w.Write(Row(acc))
}

// Flush writes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}

// Row formats an account as report columns.
func Row(acc ledger.Account) []string {
	return []string{
		strconv.FormatUint(uint64(acc.Client), 10),
		ledger.FormatAmount(acc.Available),
		ledger.FormatAmount(acc.Held),
		ledger.FormatAmount(acc.Total),
		strconv.FormatBool(acc.Locked),
	}
}

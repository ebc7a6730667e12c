/*
Package report emits reconstructed accounts.

PURPOSE:
  An Emitter receives accounts in client order and writes them somewhere:
  a CSV report on stdout, JSON lines, or a Kafka topic for downstream
  consumers.

FORMATS:
  csv    client,available,held,total,locked
  jsonl  {"client":1,"available":"50.0000","held":"0.0000",...}
  kafka  the jsonl object as message value, keyed by client id

  Amounts are strings with exactly four fractional digits in every format.

LIFECYCLE:
  Emit for every account, then Flush once, then Close. Nothing is
  guaranteed to reach the destination before Flush returns.
*/
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/warp/payments-engine/ledger"
)

// Emitter writes accounts to a destination.
type Emitter interface {
	Emit(ctx context.Context, acc ledger.Account) error
	Flush(ctx context.Context) error
	Close() error
}

// Record is the wire form of an account.
type Record struct {
	Client    ledger.ClientID `json:"client"`
	Available string          `json:"available"`
	Held      string          `json:"held"`
	Total     string          `json:"total"`
	Locked    bool            `json:"locked"`
}

func NewRecord(acc ledger.Account) Record {
	return Record{
		Client:    acc.Client,
		Available: ledger.FormatAmount(acc.Available),
		Held:      ledger.FormatAmount(acc.Held),
		Total:     ledger.FormatAmount(acc.Total),
		Locked:    acc.Locked,
	}
}

// Options selects and configures an emitter.
type Options struct {
	Format  string
	Brokers []string
	Topic   string
}

// New builds the emitter for opts.Format. Text formats write to w.
func New(opts Options, w io.Writer) (Emitter, error) {
	switch opts.Format {
	case "", "csv":
		return NewCSV(w), nil
	case "jsonl":
		return NewJSONL(w), nil
	case "kafka":
		return NewKafka(opts.Brokers, opts.Topic)
	default:
		return nil, fmt.Errorf("unknown output format %q", opts.Format)
	}
}

// EmitAll emits every account, then flushes.
func EmitAll(ctx context.Context, e Emitter, accounts []ledger.Account) error {
	for _, acc := range accounts {
		if err := e.Emit(ctx, acc); err != nil {
			return err
		}
	}
	return e.Flush(ctx)
}

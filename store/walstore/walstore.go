/*
walstore.go - Append-only journal backend for ledger.Store

PURPOSE:
  Keeps the ledger as a write-ahead log of store mutations. Every Insert,
  SetDisputed and Chargeback is appended as one immutable record; the
  current entry state is a projection held in a store.Memory.

RECOVERY:
  Open replays every record in index order into a fresh projection. A
  record that fails to decode stops the replay with an error instead of
  producing a partial ledger.

RECORD FORMAT:
  key:     "ledger_<op>"
  payload: {"op":"insert","client":1,"tx":7,"amount":"1.5"}

  amount is written with decimal's text form so replay is exact.

RESET:
  The WAL has no truncation, so Reset closes it, removes the directory and
  starts a new, empty log.

SEE ALSO:
  - ledger/store/memory.go: The projection
  - store/sqlstore: SQL backends
*/
package walstore

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/ledger/store"
)

const (
	DefaultDir              = "./wal/ledger"
	DefaultSegmentThreshold = 1000

	// Segments are never dropped: the log is the only copy of the ledger.
	maxSegments = 1 << 20
	keyPrefix   = "ledger_"
)

type op string

const (
	opInsert     op = "insert"
	opDispute    op = "dispute"
	opResolve    op = "resolve"
	opChargeback op = "chargeback"
)

type record struct {
	Op     op              `json:"op"`
	Client ledger.ClientID `json:"client"`
	Tx     ledger.TxID     `json:"tx"`
	Amount string          `json:"amount,omitempty"`
}

// Config selects where the log lives.
type Config struct {
	Dir              string
	SegmentThreshold int
	// SyncWrites fsyncs each record before Write returns.
	SyncWrites bool
}

// Store implements ledger.Store on a gowal log.
type Store struct {
	cfg  Config
	mu   sync.Mutex
	wal  *gowal.Wal
	view *store.Memory
}

// Open opens (or creates) the log in cfg.Dir and replays it.
func Open(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.SegmentThreshold <= 0 {
		cfg.SegmentThreshold = DefaultSegmentThreshold
	}

	s := &Store{cfg: cfg, view: store.NewMemory()}
	if err := s.open(); err != nil {
		return nil, err
	}
	if err := s.replay(); err != nil {
		_ = s.wal.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) open() error {
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              s.cfg.Dir,
		Prefix:           "ledger_",
		SegmentThreshold: s.cfg.SegmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: s.cfg.SyncWrites,
	})
	if err != nil {
		return errors.Wrap(err, "init ledger WAL")
	}
	s.wal = wal
	return nil
}

func (s *Store) replay() error {
	ctx := context.Background()
	current := s.wal.CurrentIndex()
	for idx := uint64(1); idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			return errors.Wrapf(err, "read ledger record %d", idx)
		}
		if !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		var rec record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return errors.Wrapf(err, "decode ledger record %d", idx)
		}
		if err := s.project(ctx, rec); err != nil {
			return errors.Wrapf(err, "replay ledger record %d", idx)
		}
	}
	return nil
}

// project applies one record to the in-memory view.
func (s *Store) project(ctx context.Context, rec record) error {
	switch rec.Op {
	case opInsert:
		amount, err := decimal.NewFromString(rec.Amount)
		if err != nil {
			return errors.Wrap(err, "parse amount")
		}
		return s.view.Insert(ctx, rec.Client, rec.Tx, amount)
	case opDispute:
		return s.view.SetDisputed(ctx, rec.Client, rec.Tx, true)
	case opResolve:
		return s.view.SetDisputed(ctx, rec.Client, rec.Tx, false)
	case opChargeback:
		return s.view.Chargeback(ctx, rec.Client, rec.Tx)
	default:
		return fmt.Errorf("unknown op %q", rec.Op)
	}
}

// append writes rec to the log, then to the view. The caller holds s.mu.
func (s *Store) append(ctx context.Context, rec record) error {
	if s.wal == nil {
		return errors.New("ledger WAL is closed")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal ledger record")
	}
	if err := s.wal.Write(s.wal.CurrentIndex()+1, keyPrefix+string(rec.Op), payload); err != nil {
		return errors.Wrap(err, "write ledger record")
	}
	return s.project(ctx, rec)
}

// =============================================================================
// ledger.Store
// =============================================================================

func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wal != nil {
		if err := s.wal.Close(); err != nil {
			return ledger.WrapStoreError("reset", errors.Wrap(err, "close ledger WAL"))
		}
		s.wal = nil
	}
	if err := os.RemoveAll(s.cfg.Dir); err != nil {
		return ledger.WrapStoreError("reset", errors.Wrap(err, "remove ledger WAL"))
	}
	if err := s.open(); err != nil {
		return ledger.WrapStoreError("reset", err)
	}
	return ledger.WrapStoreError("reset", s.view.Reset(ctx))
}

func (s *Store) Insert(ctx context.Context, client ledger.ClientID, tx ledger.TxID, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.WrapStoreError("insert", s.append(ctx, record{
		Op:     opInsert,
		Client: client,
		Tx:     tx,
		Amount: amount.String(),
	}))
}

func (s *Store) SetDisputed(ctx context.Context, client ledger.ClientID, tx ledger.TxID, disputed bool) error {
	rec := record{Op: opResolve, Client: client, Tx: tx}
	if disputed {
		rec.Op = opDispute
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.WrapStoreError("set disputed", s.append(ctx, rec))
}

func (s *Store) Chargeback(ctx context.Context, client ledger.ClientID, tx ledger.TxID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.WrapStoreError("chargeback", s.append(ctx, record{
		Op:     opChargeback,
		Client: client,
		Tx:     tx,
	}))
}

func (s *Store) ListClients(ctx context.Context) ([]ledger.ClientID, error) {
	return s.view.ListClients(ctx)
}

func (s *Store) StreamEntries(ctx context.Context, client ledger.ClientID) iter.Seq2[ledger.Entry, error] {
	return s.view.StreamEntries(ctx, client)
}

// Records returns the number of records in the log.
func (s *Store) Records() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wal == nil {
		return 0
	}
	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wal == nil {
		return nil
	}
	err := s.wal.Close()
	s.wal = nil
	return err
}

var _ ledger.Store = (*Store)(nil)

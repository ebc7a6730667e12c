// Package store provides the in-memory ledger.Store.
package store

import (
	"context"
	"iter"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/payments-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps entries in an arena ordered by insertion. Each client has an
// ordered slice of arena positions, so a client's history is read without
// scanning other clients.
type Memory struct {
	mu       sync.RWMutex
	entries  []ledger.Entry
	byTx     map[ledger.TxID]int
	byClient map[ledger.ClientID][]int
}

func NewMemory() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.entries = nil
	m.byTx = make(map[ledger.TxID]int)
	m.byClient = make(map[ledger.ClientID][]int)
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

// Insert appends an entry. Ordinals start at 1, like a SQL rowid.
func (m *Memory) Insert(_ context.Context, client ledger.ClientID, tx ledger.TxID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(client, tx, amount)
	return nil
}

func (m *Memory) insertLocked(client ledger.ClientID, tx ledger.TxID, amount decimal.Decimal) {
	if _, exists := m.byTx[tx]; exists {
		return
	}
	pos := len(m.entries)
	m.entries = append(m.entries, ledger.Entry{
		Ordinal: int64(pos + 1),
		Client:  client,
		Tx:      tx,
		Amount:  amount,
	})
	m.byTx[tx] = pos
	m.byClient[client] = append(m.byClient[client], pos)
}

// lookupLocked finds the entry for (client, tx); nil when tx is unknown or
// belongs to another client.
func (m *Memory) lookupLocked(client ledger.ClientID, tx ledger.TxID) *ledger.Entry {
	pos, ok := m.byTx[tx]
	if !ok || m.entries[pos].Client != client {
		return nil
	}
	return &m.entries[pos]
}

func (m *Memory) SetDisputed(_ context.Context, client ledger.ClientID, tx ledger.TxID, disputed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setDisputedLocked(client, tx, disputed)
	return nil
}

func (m *Memory) setDisputedLocked(client ledger.ClientID, tx ledger.TxID, disputed bool) {
	if e := m.lookupLocked(client, tx); e != nil {
		e.Disputed = disputed
	}
}

func (m *Memory) Chargeback(_ context.Context, client ledger.ClientID, tx ledger.TxID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chargebackLocked(client, tx)
	return nil
}

func (m *Memory) chargebackLocked(client ledger.ClientID, tx ledger.TxID) {
	if e := m.lookupLocked(client, tx); e != nil && e.Disputed {
		e.Disputed = false
		e.ChargedBack = true
	}
}

func (m *Memory) ListClients(_ context.Context) ([]ledger.ClientID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make([]ledger.ClientID, 0, len(m.byClient))
	for c := range m.byClient {
		clients = append(clients, c)
	}
	return clients, nil
}

// StreamEntries copies the client's entries under the read lock when
// iteration starts, then yields them without holding it.
func (m *Memory) StreamEntries(ctx context.Context, client ledger.ClientID) iter.Seq2[ledger.Entry, error] {
	return func(yield func(ledger.Entry, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(ledger.Entry{}, err)
			return
		}

		m.mu.RLock()
		positions := m.byClient[client]
		snapshot := make([]ledger.Entry, len(positions))
		for i, pos := range positions {
			snapshot[i] = m.entries[pos]
		}
		m.mu.RUnlock()

		for _, e := range snapshot {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ ledger.Store = (*Memory)(nil)

/*
Package sqlstore provides a SQL-backed implementation of ledger.Store.

PURPOSE:
  Persists ledger entries in a single ledger_entries table. The same
  queries run on SQLite (cgo or pure Go driver) and PostgreSQL; only the
  schema file and placeholder style differ.

DRIVERS:
  sqlite3   github.com/mattn/go-sqlite3 (default)
  sqlite    modernc.org/sqlite, no cgo required
  postgres  github.com/lib/pq

KEY TABLE:
  ledger_entries(ordinal, client_id, tx_id UNIQUE, amount TEXT,
                 disputed, charged_back)

  amount is stored as decimal text so no precision is lost on the way in
  or out. ordinal is assigned by the database and defines replay order.

WRITES:
  Insert:      INSERT ... ON CONFLICT (tx_id) DO NOTHING
  SetDisputed: UPDATE ... WHERE client_id = ? AND tx_id = ?
  Chargeback:  UPDATE ... WHERE client_id = ? AND tx_id = ? AND disputed

CONCURRENCY:
  Uses sync.RWMutex like the other backends: writes take the write lock,
  ListClients and StreamEntries the read lock. StreamEntries holds the read
  lock while the caller iterates, so the caller must not write to the same
  store from inside the loop.

WAL MODE:
  SQLite files are opened in WAL journal mode with a busy timeout.
  ":memory:" databases are limited to one connection, because every new
  connection would otherwise see its own empty database.

SCHEMA:
  Open creates the table if missing. Reset drops and recreates it. The DDL
  lives in schema/*.sql and is embedded in the binary.

USAGE:
  store, err := sqlstore.Open(sqlstore.DriverSQLite3, "transactions.db")
  if err != nil {
      return err
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definition
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/payments-engine/ledger"
)

// Store implements ledger.Store on database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
	mu      sync.RWMutex
}

// Open connects with the given driver and ensures the schema exists.
// Use ":memory:" as source for a throwaway SQLite database.
func Open(driver, source string) (*Store, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("storage source is required")
	}
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, d.dsn(source))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.isMemory(source) {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, dialect: d}
	if err := store.migrate(context.Background(), false); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.dialect.driver
}

// migrate applies the schema in one transaction, dropping the table first
// when drop is set.
func (s *Store) migrate(ctx context.Context, drop bool) error {
	stmts, err := s.dialect.schemaStatements()
	if err != nil {
		return err
	}
	if drop {
		stmts = append([]string{"DROP TABLE IF EXISTS ledger_entries"}, stmts...)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// WRITES
// =============================================================================

// Reset drops and recreates the ledger_entries table.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ledger.WrapStoreError("reset", s.migrate(ctx, true))
}

func (s *Store) Insert(ctx context.Context, client ledger.ClientID, tx ledger.TxID, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO ledger_entries (client_id, tx_id, amount, disputed, charged_back)
		VALUES (?, ?, ?, FALSE, FALSE)
		ON CONFLICT (tx_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(query), client, tx, amount.String())
	return ledger.WrapStoreError("insert", err)
}

func (s *Store) SetDisputed(ctx context.Context, client ledger.ClientID, tx ledger.TxID, disputed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE ledger_entries
		SET disputed = ?
		WHERE client_id = ? AND tx_id = ?
	`
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(query), disputed, client, tx)
	return ledger.WrapStoreError("set disputed", err)
}

func (s *Store) Chargeback(ctx context.Context, client ledger.ClientID, tx ledger.TxID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE ledger_entries
		SET disputed = FALSE, charged_back = TRUE
		WHERE client_id = ? AND tx_id = ? AND disputed = TRUE
	`
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(query), client, tx)
	return ledger.WrapStoreError("chargeback", err)
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) ListClients(ctx context.Context) ([]ledger.ClientID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT client_id FROM ledger_entries ORDER BY client_id")
	if err != nil {
		return nil, ledger.WrapStoreError("list clients", err)
	}
	defer rows.Close()

	var clients []ledger.ClientID
	for rows.Next() {
		var c ledger.ClientID
		if err := rows.Scan(&c); err != nil {
			return nil, ledger.WrapStoreError("list clients", err)
		}
		clients = append(clients, c)
	}
	return clients, ledger.WrapStoreError("list clients", rows.Err())
}

// StreamEntries runs the query when iteration starts and yields rows as
// they are scanned. Breaking out of the loop closes the rows.
func (s *Store) StreamEntries(ctx context.Context, client ledger.ClientID) iter.Seq2[ledger.Entry, error] {
	return func(yield func(ledger.Entry, error) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		query := `
			SELECT ordinal, client_id, tx_id, amount, disputed, charged_back
			FROM ledger_entries
			WHERE client_id = ?
			ORDER BY ordinal ASC
		`
		rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), client)
		if err != nil {
			yield(ledger.Entry{}, ledger.WrapStoreError("stream entries", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				yield(ledger.Entry{}, ledger.WrapStoreError("stream entries", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(ledger.Entry{}, ledger.WrapStoreError("stream entries", err))
		}
	}
}

func scanEntry(rows *sql.Rows) (ledger.Entry, error) {
	var (
		e      ledger.Entry
		amount string
	)
	if err := rows.Scan(&e.Ordinal, &e.Client, &e.Tx, &amount, &e.Disputed, &e.ChargedBack); err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return e, fmt.Errorf("failed to parse amount %q of tx %d: %w", amount, e.Tx, err)
	}
	e.Amount = d
	return e, nil
}

var _ ledger.Store = (*Store)(nil)

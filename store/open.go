// Package store selects and opens the configured ledger.Store backend.
package store

import (
	"context"
	"fmt"

	"github.com/warp/payments-engine/config"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/ledger/store"
	"github.com/warp/payments-engine/store/sqlstore"
	"github.com/warp/payments-engine/store/walstore"
)

// Open opens the backend named by cfg.StoreDriver and, when
// cfg.ResetOnStart is set, resets it.
func Open(ctx context.Context, cfg config.Config) (ledger.Store, error) {
	var (
		s   ledger.Store
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		s = store.NewMemory()
	case config.DriverSQLite3, config.DriverSQLite, config.DriverPostgres:
		s, err = sqlstore.Open(cfg.StoreDriver, cfg.StoreSource)
	case config.DriverWAL:
		s, err = walstore.Open(walstore.Config{
			Dir:              cfg.WALDir,
			SegmentThreshold: cfg.WALSegmentThreshold,
			SyncWrites:       true,
		})
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	if cfg.ResetOnStart {
		if err := s.Reset(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

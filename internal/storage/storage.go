// Package storage wires the task store and the journal to the configured
// database driver.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"va-tasks/internal/config"
	"va-tasks/internal/db"
	"va-tasks/pkg/eventgraph"
	"va-tasks/pkg/task"
)

// Stores is the pair of stores a process runs on. Both share one database
// handle, released by Close.
type Stores struct {
	Tasks  task.Store
	Events eventgraph.EventStore
	close  func()
}

// Close releases the underlying database handle.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to the configured backend and ensures both tables exist.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var s *Stores
	switch cfg.Driver {
	case config.DriverMemory:
		s = &Stores{Tasks: task.NewMemStore(), Events: eventgraph.NewMemStore()}
	case config.DriverSQLite:
		handle, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s = &Stores{
			Tasks:  task.NewSQLiteStore(handle),
			Events: eventgraph.NewSQLiteStore(handle),
			close:  func() { handle.Close() },
		}
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		s = &Stores{
			Tasks:  task.NewPgStore(pool),
			Events: eventgraph.NewPgStore(pool),
			close:  pool.Close,
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	if err := s.Tasks.EnsureTable(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ensure tasks table: %w", err)
	}
	if err := s.Events.EnsureTable(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ensure events table: %w", err)
	}
	logger.Info("storage ready", zap.String("driver", cfg.Driver))
	return s, nil
}

// Package store wraps the embedded Badger database holding durable records
// that must outlive sessions: chunk audio summaries today, keyed so that
// per-book listings are a single prefix scan.
package store

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/pagevoice/pagevoice-server/internal/domain"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	Chunks *Entity[domain.ChunkAudioSummary]
}

// New opens the database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Badger's own logging is noisy
	opts.SyncWrites = true       // Summaries must survive a crash
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}
	store.Chunks = NewEntity[domain.ChunkAudioSummary](store, "chunk:")

	if logger != nil {
		logger.Info("badger database opened", "path", path)
	}
	return store, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing database")
	}
	return s.db.Close()
}

package identity

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/models"
	"github.com/jstittsworth/player-valuation/pkg/database"
)

// Store persists identity mappings and serves the current snapshot without blocking readers
type Store struct {
	db      *database.DB
	logger  *logrus.Logger
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store with an empty snapshot. Call Reload to read the table.
func NewStore(db *database.DB, logger *logrus.Logger) *Store {
	s := &Store{db: db, logger: logger}
	s.current.Store(NewSnapshot(nil, time.Time{}))
	return s
}

// Snapshot returns the current immutable snapshot
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload reads the mapping table and swaps the snapshot in
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	mappings, err := models.ListIdentityMappings(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity mappings: %w", err)
	}

	snapshot := NewSnapshot(mappings, time.Now().UTC())
	s.current.Store(snapshot)

	s.logger.WithFields(logrus.Fields{
		"component": "identity_store",
		"mappings":  snapshot.Len(),
	}).Info("Identity snapshot reloaded")
	return snapshot, nil
}

// Upsert writes mappings (last write wins) and reloads the snapshot
func (s *Store) Upsert(ctx context.Context, mappings []models.IdentityMapping) (int, error) {
	written, err := models.UpsertIdentityMappings(ctx, s.db, mappings)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert identity mappings: %w", err)
	}
	if _, err := s.Reload(ctx); err != nil {
		return written, err
	}
	return written, nil
}

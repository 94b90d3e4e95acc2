// Package memory is an in-process game store with optional JSON file
// checkpoints.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"brettonwoods/internal/domain"
	"brettonwoods/internal/store"
)

// Store keeps games in a map. Games are copied on the way in and out so
// callers never share state with the store.
type Store struct {
	games map[string]*domain.Game
	mu    sync.RWMutex

	snapshot *snapshotFile // nil when persistence is disabled
	version  uint64
	logger   *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New creates a memory store. When path is not empty previously saved games
// are loaded from it and every mutation is checkpointed back.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		games:  make(map[string]*domain.Game),
		logger: logger.With("component", "memory-store"),
	}

	if path == "" {
		return s, nil
	}

	s.snapshot = newSnapshotFile(path)
	games, err := s.snapshot.load()
	if err != nil {
		return nil, err
	}
	for _, g := range games {
		s.games[g.Code] = g
	}
	if len(games) > 0 {
		s.logger.Info("restored games from snapshot", "path", path, "count", len(games))
	}

	return s, nil
}

// Create inserts a new game
func (s *Store) Create(ctx context.Context, g *domain.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.games[g.Code]; exists {
		s.mu.Unlock()
		return domain.ErrCodeTaken
	}
	s.games[g.Code] = g.Clone()
	data, version := s.encodeLocked()
	s.mu.Unlock()

	s.checkpoint(data, version)
	return nil
}

// Get returns a copy of a game
func (s *Store) Get(ctx context.Context, code string) (*domain.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	g, exists := s.games[code]
	if !exists {
		return nil, domain.ErrGameNotFound
	}
	return g.Clone(), nil
}

// Update applies fn to a copy of the game and swaps it in on success
func (s *Store) Update(ctx context.Context, code string, fn store.UpdateFunc) (*domain.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	current, exists := s.games[code]
	if !exists {
		s.mu.Unlock()
		return nil, domain.ErrGameNotFound
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.games[code] = working
	result := working.Clone()
	data, version := s.encodeLocked()
	s.mu.Unlock()

	s.checkpoint(data, version)
	return result, nil
}

// List returns copies of every game ordered by creation time
func (s *Store) List(ctx context.Context) ([]*domain.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	games := make([]*domain.Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(games, func(i, j int) bool {
		return games[i].CreatedAt.Before(games[j].CreatedAt)
	})
	return games, nil
}

// Delete removes a game
func (s *Store) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.games[code]; !exists {
		s.mu.Unlock()
		return domain.ErrGameNotFound
	}
	delete(s.games, code)
	data, version := s.encodeLocked()
	s.mu.Unlock()

	s.checkpoint(data, version)
	return nil
}

// Close writes a final checkpoint
func (s *Store) Close() error {
	if s.snapshot == nil {
		return nil
	}

	s.mu.Lock()
	data, version := s.encodeLocked()
	s.mu.Unlock()

	if data == nil {
		return nil
	}
	return s.snapshot.write(data, version)
}

// encodeLocked serializes the current games. Caller must hold s.mu.
func (s *Store) encodeLocked() ([]byte, uint64) {
	if s.snapshot == nil {
		return nil, 0
	}

	s.version++
	data, err := encodeSnapshot(s.games)
	if err != nil {
		s.logger.Error("failed to encode snapshot", "error", err)
		return nil, s.version
	}
	return data, s.version
}

// checkpoint persists encoded state. Failures are logged, the in-memory
// state stays authoritative.
func (s *Store) checkpoint(data []byte, version uint64) {
	if s.snapshot == nil || data == nil {
		return
	}
	if err := s.snapshot.write(data, version); err != nil {
		s.logger.Error("failed to write snapshot",
			"path", s.snapshot.path,
			"error", err,
		)
	}
}

// Package store defines game persistence. Backends live in sub packages.
package store

import (
	"context"

	"brettonwoods/internal/domain"
)

// UpdateFunc mutates a game in place. Returning an error aborts the update
// and leaves the stored game untouched.
type UpdateFunc func(g *domain.Game) error

// Store persists games keyed by code. Every Update is atomic: either the
// whole mutated aggregate is committed or nothing is.
type Store interface {
	// Create inserts a new game. Returns domain.ErrCodeTaken if the code exists.
	Create(ctx context.Context, g *domain.Game) error
	// Get returns a copy of a game. Returns domain.ErrGameNotFound.
	Get(ctx context.Context, code string) (*domain.Game, error)
	// Update loads a game, applies fn and commits the result
	Update(ctx context.Context, code string, fn UpdateFunc) (*domain.Game, error)
	// List returns every stored game
	List(ctx context.Context) ([]*domain.Game, error)
	// Delete removes a game. Returns domain.ErrGameNotFound.
	Delete(ctx context.Context, code string) error
	Close() error
}

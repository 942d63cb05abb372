// Package repository defines the persistence contracts for the ranking
// store, the history log, and the player-name preference, plus errors.
package repository

import (
	"context"

	"github.com/okian/naja/internal/domain/model"
)

// Default retention capacities, matching the recorder companion app.
const (
	DefaultLeaderboardSize = 5
	DefaultHistorySize     = 20
)

// Order selects the traversal direction of a history listing.
type Order int

// History listing orders.
const (
	OldestFirst Order = iota
	NewestFirst
)

// Leaderboard is the bounded top-N ranking store. Lower playtime ranks
// earlier; failed runs are ignored entirely.
type Leaderboard interface {
	// Submit offers a record to the ranking. Returns false when the record
	// was ignored (failed outcome) or ranked out immediately.
	Submit(ctx context.Context, rec model.Record) (bool, error)

	// List returns the ranking best-first, at most the configured capacity.
	List(ctx context.Context) ([]model.LeaderboardRow, error)

	// Count returns the number of ranked rows.
	Count(ctx context.Context) (int, error)
}

// History is the bounded FIFO log of accepted records, unique on the
// played-at timestamp.
type History interface {
	// Append stores a record and returns its sequence id.
	// Returns ErrDuplicateEntry when a row with the same timestamp exists;
	// the store is left unchanged in that case.
	Append(ctx context.Context, rec model.Record) (int64, error)

	// Entries returns stored rows in the requested order.
	Entries(ctx context.Context, order Order) ([]model.HistoryRow, error)

	// Len returns the number of stored rows.
	Len(ctx context.Context) (int, error)
}

// Names persists the last resolved player name across restarts.
type Names interface {
	LoadName(ctx context.Context) (string, error)
	StoreName(ctx context.Context, name string) error
}

// Store bundles the three persistence surfaces behind one backend.
type Store interface {
	Leaderboard
	History
	Names

	Close() error
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/naja/internal/domain/model"
	"github.com/okian/naja/pkg/metrics"
)

// MemoryStore is the in-memory Store backend, used for tests and
// ephemeral runs. Every mutating call holds the single mutex for its full
// read-modify-write sequence, so no partial ranking state is ever visible.
type MemoryStore struct {
	mu sync.Mutex

	cfg settings

	ranking []model.LeaderboardRow
	history []model.HistoryRow
	nextSeq int64
	name    string

	closed bool
}

// NewMemoryStore creates an in-memory store with configuration options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &MemoryStore{
		cfg:     cfg,
		nextSeq: 1,
	}
}

// Submit offers a record to the ranking.
func (s *MemoryStore) Submit(ctx context.Context, rec model.Record) (bool, error) {
	if !rec.Success {
		metrics.RecordLeaderboardSkipped()
		return false, nil
	}

	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds())) }()

	if s.closed {
		return false, ErrClosed
	}

	row := model.LeaderboardRow{
		Player:     rec.Player,
		PlayedAt:   rec.PlayedAt,
		PlaytimeMS: rec.Playtime.Milliseconds(),
	}
	s.ranking = append(s.ranking, row)
	sort.SliceStable(s.ranking, func(i, j int) bool {
		if s.ranking[i].PlaytimeMS != s.ranking[j].PlaytimeMS {
			return s.ranking[i].PlaytimeMS < s.ranking[j].PlaytimeMS
		}
		return s.ranking[i].PlayedAt.Before(s.ranking[j].PlayedAt)
	})

	ranked := true
	if len(s.ranking) > s.cfg.leaderboardSize {
		trimmed := len(s.ranking) - s.cfg.leaderboardSize
		for i := 0; i < trimmed; i++ {
			metrics.RecordLeaderboardTrim()
		}
		// The new row itself may have ranked out.
		survived := false
		for _, kept := range s.ranking[:s.cfg.leaderboardSize] {
			if kept == row {
				survived = true
				break
			}
		}
		ranked = survived
		s.ranking = s.ranking[:s.cfg.leaderboardSize]
	}

	metrics.RecordLeaderboardSubmit()
	return ranked, nil
}

// List returns the ranking best-first.
func (s *MemoryStore) List(ctx context.Context) ([]model.LeaderboardRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	out := make([]model.LeaderboardRow, len(s.ranking))
	for i, row := range s.ranking {
		row.Rank = i + 1
		out[i] = row
	}
	return out, nil
}

// Count returns the number of ranked rows.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ranking), nil
}

// Append stores a record in the history log.
func (s *MemoryStore) Append(ctx context.Context, rec model.Record) (int64, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds())) }()

	if s.closed {
		return 0, ErrClosed
	}

	for _, row := range s.history {
		if row.Record.PlayedAt.Equal(rec.PlayedAt) {
			metrics.RecordHistoryDuplicate()
			return 0, ErrDuplicateEntry
		}
	}

	if len(s.history) >= s.cfg.historySize {
		s.history = s.history[1:]
		metrics.RecordHistoryEviction()
	}

	seq := s.nextSeq
	s.nextSeq++
	s.history = append(s.history, model.HistoryRow{Seq: seq, Record: rec})
	metrics.RecordHistoryAppend()
	return seq, nil
}

// Entries returns history rows in the requested order.
func (s *MemoryStore) Entries(ctx context.Context, order Order) ([]model.HistoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	out := make([]model.HistoryRow, len(s.history))
	copy(out, s.history)
	if order == NewestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// Len returns the number of history rows.
func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history), nil
}

// LoadName returns the stored player name, empty when never resolved.
func (s *MemoryStore) LoadName(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name, nil
}

// StoreName persists the player name.
func (s *MemoryStore) StoreName(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.name = name
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

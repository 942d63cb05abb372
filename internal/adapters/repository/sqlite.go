package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // registers the sqlite3 database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // embeds the sqlite wasm build

	"github.com/okian/naja/internal/domain/model"
	"github.com/okian/naja/pkg/metrics"
)

// Timestamp storage format. RFC3339Nano keeps sub-second precision so the
// history uniqueness check survives a round trip.
const storedTimeLayout = time.RFC3339Nano

// Preference key for the last resolved player name.
const prefLastUsername = "last_username"

const schema = `
CREATE TABLE IF NOT EXISTS rank_rows (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	player      TEXT    NOT NULL,
	played_at   TEXT    NOT NULL,
	playtime_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS rank_rows_playtime ON rank_rows (playtime_ms ASC, id ASC);

CREATE TABLE IF NOT EXISTS history_rows (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	played_at TEXT NOT NULL UNIQUE,
	record    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prefs (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLiteStore is the durable Store backend. Each write bundles its
// read-modify-write sequence in one transaction.
type SQLiteStore struct {
	db  *sql.DB
	cfg settings
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// The driver serializes access per connection; a single connection
	// keeps transactions simple and is plenty for this write rate.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, cfg: cfg}, nil
}

// Submit offers a record to the ranking. The insert and the capacity trim
// run in one transaction, mirroring the atomicity of the original
// companion app.
func (s *SQLiteStore) Submit(ctx context.Context, rec model.Record) (bool, error) {
	if !rec.Success {
		metrics.RecordLeaderboardSkipped()
		return false, nil
	}

	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds())) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin rank tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO rank_rows (player, played_at, playtime_ms) VALUES (?, ?, ?)`,
		rec.Player, rec.PlayedAt.UTC().Format(storedTimeLayout), rec.Playtime.Milliseconds(),
	)
	if err != nil {
		return false, fmt.Errorf("insert rank row: %w", err)
	}
	insertedID, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("rank row id: %w", err)
	}

	trim, err := tx.ExecContext(ctx,
		`DELETE FROM rank_rows WHERE id NOT IN (
			SELECT id FROM rank_rows ORDER BY playtime_ms ASC, id ASC LIMIT ?
		)`,
		s.cfg.leaderboardSize,
	)
	if err != nil {
		return false, fmt.Errorf("trim rank rows: %w", err)
	}
	trimmed, err := trim.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("trim count: %w", err)
	}

	var survived bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rank_rows WHERE id = ?)`, insertedID,
	).Scan(&survived); err != nil {
		return false, fmt.Errorf("check rank survival: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rank tx: %w", err)
	}

	for i := int64(0); i < trimmed; i++ {
		metrics.RecordLeaderboardTrim()
	}
	metrics.RecordLeaderboardSubmit()
	return survived, nil
}

// List returns the ranking best-first.
func (s *SQLiteStore) List(ctx context.Context) ([]model.LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT player, played_at, playtime_ms FROM rank_rows
		 ORDER BY playtime_ms ASC, id ASC LIMIT ?`,
		s.cfg.leaderboardSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query ranking: %w", err)
	}
	defer rows.Close()

	var out []model.LeaderboardRow
	rank := 1
	for rows.Next() {
		var (
			row      model.LeaderboardRow
			playedAt string
		)
		if err := rows.Scan(&row.Player, &playedAt, &row.PlaytimeMS); err != nil {
			return nil, fmt.Errorf("scan rank row: %w", err)
		}
		ts, err := time.Parse(storedTimeLayout, playedAt)
		if err != nil {
			return nil, fmt.Errorf("parse stored timestamp: %w", err)
		}
		row.PlayedAt = ts
		row.Rank = rank
		rank++
		out = append(out, row)
	}
	return out, rows.Err()
}

// Count returns the number of ranked rows.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rank_rows`).Scan(&n)
	return n, err
}

// Append stores a record in the history log. The uniqueness check, the
// FIFO eviction, and the insert run in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec model.Record) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds())) }()

	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("marshal history record: %w", err)
	}
	key := rec.PlayedAt.UTC().Format(storedTimeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var dup bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM history_rows WHERE played_at = ?)`, key,
	).Scan(&dup); err != nil {
		return 0, fmt.Errorf("check duplicate: %w", err)
	}
	if dup {
		metrics.RecordHistoryDuplicate()
		return 0, ErrDuplicateEntry
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM history_rows`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	if count >= s.cfg.historySize {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM history_rows WHERE id = (SELECT MIN(id) FROM history_rows)`,
		); err != nil {
			return 0, fmt.Errorf("evict oldest history row: %w", err)
		}
		metrics.RecordHistoryEviction()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO history_rows (played_at, record) VALUES (?, ?)`,
		key, string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("insert history row: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history row id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit history tx: %w", err)
	}

	metrics.RecordHistoryAppend()
	return seq, nil
}

// Entries returns history rows in the requested order.
func (s *SQLiteStore) Entries(ctx context.Context, order Order) ([]model.HistoryRow, error) {
	dir := "ASC"
	if order == NewestFirst {
		dir = "DESC"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record FROM history_rows ORDER BY id `+dir,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryRow
	for rows.Next() {
		var (
			row     model.HistoryRow
			payload string
		)
		if err := rows.Scan(&row.Seq, &payload); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &row.Record); err != nil {
			return nil, fmt.Errorf("unmarshal history record: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Len returns the number of history rows.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history_rows`).Scan(&n)
	return n, err
}

// LoadName returns the persisted player name, empty when never resolved.
func (s *SQLiteStore) LoadName(ctx context.Context) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM prefs WHERE key = ?`, prefLastUsername,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, err
}

// StoreName persists the player name.
func (s *SQLiteStore) StoreName(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prefs (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		prefLastUsername, name,
	)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

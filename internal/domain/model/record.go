// Package model contains domain models passed between layers.
package model

import "time"

// Record is the canonical parsed game result. The player name is not part
// of the wire frame; it is attached when the delivery gate commits the
// record downstream.
type Record struct {
	Player   string        `json:"player"`
	PlayedAt time.Time     `json:"played_at"`
	Playtime time.Duration `json:"playtime"`
	Success  bool          `json:"success"`
}

// WithPlayer returns a copy of the record with the player name attached.
func (r Record) WithPlayer(name string) Record {
	r.Player = name
	return r
}

// LeaderboardRow is one ranked row of the top-N store.
type LeaderboardRow struct {
	Rank       int       `json:"rank"`
	Player     string    `json:"player"`
	PlayedAt   time.Time `json:"played_at"`
	PlaytimeMS int64     `json:"playtime_ms"`
}

// HistoryRow wraps a record with its insertion sequence id.
type HistoryRow struct {
	Seq    int64  `json:"seq"`
	Record Record `json:"record"`
}

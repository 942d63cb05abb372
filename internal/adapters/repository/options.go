// Package repository defines the persistence contracts and backends.
package repository

// settings holds configuration shared by the store backends.
type settings struct {
	leaderboardSize int
	historySize     int
}

func defaultSettings() settings {
	return settings{
		leaderboardSize: DefaultLeaderboardSize,
		historySize:     DefaultHistorySize,
	}
}

// Option applies a configuration option to a store backend.
type Option func(*settings)

// WithLeaderboardSize sets the ranking capacity N.
func WithLeaderboardSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.leaderboardSize = n
		}
	}
}

// WithHistorySize sets the history log capacity M.
func WithHistorySize(m int) Option {
	return func(s *settings) {
		if m > 0 {
			s.historySize = m
		}
	}
}

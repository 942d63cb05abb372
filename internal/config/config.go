// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DeviceAddr is the TCP address of the game device byte stream.
	DeviceAddr string `koanf:"device_addr"`

	// LeaderboardSize bounds the top-N ranking store.
	LeaderboardSize int `koanf:"leaderboard_size"`

	// HistorySize bounds the FIFO history log.
	HistorySize int `koanf:"history_size"`

	// ReplyTimeoutMS is how long the gate waits for a name reply before
	// flushing with the last known player.
	ReplyTimeoutMS int `koanf:"reply_timeout_ms"`

	// DefaultPlayer seeds the player context before any name is resolved.
	DefaultPlayer string `koanf:"default_player"`

	// PromptPolicy selects prompting behavior: "always" re-prompts on every
	// delivery cycle, "once" stops prompting after the first resolution.
	PromptPolicy string `koanf:"prompt_policy"`

	// CommitQueueSize bounds the queue between the gate and the stores.
	CommitQueueSize int `koanf:"commit_queue_size"`

	// CommitWorkers sets the number of commit worker goroutines.
	CommitWorkers int `koanf:"commit_workers"`

	// StoreDriver selects the repository backend: "sqlite" or "memory".
	StoreDriver string `koanf:"store_driver"`

	// StorePath is the SQLite database path (":memory:" for ephemeral).
	StorePath string `koanf:"store_path"`

	// CapturePath, when non-empty, enables the raw-frame capture journal.
	CapturePath string `koanf:"capture_path"`
}

// New creates a Config populated with defaults. The retention defaults
// mirror the recorder device companion app: five ranked rows, twenty
// history rows, a twenty second reply window, and "AAA" as the seed name.
func New() *Config {
	c := &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		DeviceAddr:      "127.0.0.1:9600",
		LeaderboardSize: 5,
		HistorySize:     20,
		ReplyTimeoutMS:  20_000,
		DefaultPlayer:   "AAA",
		PromptPolicy:    "always",
		CommitQueueSize: 1024,
		CommitWorkers:   2,
		StoreDriver:     "sqlite",
		StorePath:       "naja.db",
		CapturePath:     "",
	}
	return c
}

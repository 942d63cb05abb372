package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if NAJA_CONFIG is set
//  3. env (prefix NAJA_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("NAJA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: NAJA_ADDR, NAJA_DEVICE_ADDR, ...
	// Map env keys like NAJA_REPLY_TIMEOUT_MS -> reply_timeout_ms (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("NAJA_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "naja_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Basic validation
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.LeaderboardSize < 1 {
		return nil, fmt.Errorf("%w: leaderboard_size must be at least 1", ErrInvalidConfig)
	}
	if cfg.HistorySize < 1 {
		return nil, fmt.Errorf("%w: history_size must be at least 1", ErrInvalidConfig)
	}
	switch cfg.PromptPolicy {
	case "always", "once":
	default:
		return nil, fmt.Errorf(`%w: prompt_policy must be "always" or "once"`, ErrInvalidConfig)
	}
	switch cfg.StoreDriver {
	case "sqlite", "memory":
	default:
		return nil, fmt.Errorf(`%w: store_driver must be "sqlite" or "memory"`, ErrInvalidConfig)
	}
	if cfg.StoreDriver == "sqlite" && cfg.StorePath == "" {
		return nil, fmt.Errorf("%w: store_path must not be empty for the sqlite driver", ErrInvalidConfig)
	}
	return &cfg, nil
}

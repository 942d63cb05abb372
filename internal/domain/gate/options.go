// Package gate defers record commitment pending external name resolution.
package gate

import (
	"time"

	"github.com/okian/naja/pkg/logger"
)

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithTimeout sets how long a cycle waits for a name reply.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithPolicy selects the prompt policy.
func WithPolicy(p PromptPolicy) Option {
	return func(g *Gate) {
		switch p {
		case PromptAlways, PromptOnce:
			g.policy = p
		}
	}
}

// WithDefaultPlayer seeds the player context used before any resolution.
func WithDefaultPlayer(name string) Option {
	return func(g *Gate) {
		if name != "" {
			g.player = name
		}
	}
}

// WithLogger sets a custom logger for the gate.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

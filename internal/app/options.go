// Package service provides the core business service.
package service

import (
	"time"

	"github.com/okian/naja/internal/domain/gate"
	"github.com/okian/naja/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDeviceAddr sets the TCP address of the device byte stream.
func WithDeviceAddr(addr string) Option {
	return func(s *Service) {
		if addr != "" {
			s.deviceAddr = addr
		}
	}
}

// WithLeaderboardSize sets the ranking capacity.
func WithLeaderboardSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.leaderboardSize = n
		}
	}
}

// WithHistorySize sets the history log capacity.
func WithHistorySize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historySize = n
		}
	}
}

// WithReplyTimeout sets how long the gate waits for a name reply.
func WithReplyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.replyTimeout = d
		}
	}
}

// WithDefaultPlayer seeds the player context.
func WithDefaultPlayer(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.defaultPlayer = name
		}
	}
}

// WithPromptPolicy selects the prompt policy.
func WithPromptPolicy(policy string) Option {
	return func(s *Service) {
		switch gate.PromptPolicy(policy) {
		case gate.PromptAlways, gate.PromptOnce:
			s.promptPolicy = gate.PromptPolicy(policy)
		}
	}
}

// WithCommitQueueSize sets the commit queue capacity.
func WithCommitQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.commitQueueSize = n
		}
	}
}

// WithCommitWorkers sets the number of commit workers.
func WithCommitWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.commitWorkers = n
		}
	}
}

// WithStore selects the repository backend and, for sqlite, its path.
func WithStore(driver, path string) Option {
	return func(s *Service) {
		switch driver {
		case "sqlite", "memory":
			s.storeDriver = driver
			s.storePath = path
		}
	}
}

// WithCapturePath enables the raw-frame capture journal.
func WithCapturePath(path string) Option {
	return func(s *Service) {
		s.capturePath = path
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/naja/internal/adapters/capture"
	"github.com/okian/naja/internal/adapters/events"
	commitqueue "github.com/okian/naja/internal/adapters/mq/queue"
	workerpool "github.com/okian/naja/internal/adapters/mq/worker"
	"github.com/okian/naja/internal/adapters/repository"
	"github.com/okian/naja/internal/adapters/transport"
	"github.com/okian/naja/internal/domain/framing"
	"github.com/okian/naja/internal/domain/gate"
	"github.com/okian/naja/internal/domain/model"
	"github.com/okian/naja/internal/domain/protocol"
	"github.com/okian/naja/pkg/logger"
)

// reconnectDelay is the pause between redial attempts after the device
// link drops.
const reconnectDelay = 3 * time.Second

// Service owns the ingest pipeline and the two stores, and implements the
// dependencies of the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	bus         *events.Bus
	commitQueue *commitqueue.InMemoryQueue
	pool        *workerpool.Pool
	gate        *gate.Gate
	conn        *transport.Conn
	journal     *capture.Journal

	// Configuration
	deviceAddr      string
	leaderboardSize int
	historySize     int
	replyTimeout    time.Duration
	defaultPlayer   string
	promptPolicy    gate.PromptPolicy
	commitQueueSize int
	commitWorkers   int
	storeDriver     string
	storePath       string
	capturePath     string

	// State
	started bool
	stopRun context.CancelFunc
	runDone chan struct{}

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		deviceAddr:      "127.0.0.1:9600",
		leaderboardSize: repository.DefaultLeaderboardSize,
		historySize:     repository.DefaultHistorySize,
		replyTimeout:    20 * time.Second,
		defaultPlayer:   "AAA",
		promptPolicy:    gate.PromptAlways,
		commitQueueSize: 1024,
		commitWorkers:   2,
		storeDriver:     "memory",
		logger:          nil, // replaced when the service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting record service...")

	// Stores
	switch s.storeDriver {
	case "sqlite":
		store, err := repository.NewSQLiteStore(ctx, s.storePath,
			repository.WithLeaderboardSize(s.leaderboardSize),
			repository.WithHistorySize(s.historySize),
		)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		s.store = store
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.storePath))
	default:
		s.store = repository.NewMemoryStore(
			repository.WithLeaderboardSize(s.leaderboardSize),
			repository.WithHistorySize(s.historySize),
		)
		s.logger.Info(ctx, "using in-memory store")
	}

	// Event stream
	s.bus = events.NewBus()

	// Capture journal (optional)
	if s.capturePath != "" {
		journal, err := capture.Open(s.capturePath)
		if err != nil {
			return fmt.Errorf("open capture journal: %w", err)
		}
		s.journal = journal
		s.logger.Info(ctx, "capture journal enabled", logger.String("path", s.capturePath))
	}

	// Commit pipeline
	s.commitQueue = commitqueue.NewInMemoryQueue(
		commitqueue.WithCapacity(s.commitQueueSize),
	)
	s.pool = workerpool.NewPool(s.commitWorkers, s.commitQueue, s.store, s.store, s.bus)
	s.pool.Start(ctx)

	// Delivery gate
	s.gate = gate.New(s, s.store, s,
		gate.WithTimeout(s.replyTimeout),
		gate.WithPolicy(s.promptPolicy),
		gate.WithDefaultPlayer(s.defaultPlayer),
	)
	if err := s.gate.Start(ctx); err != nil {
		return fmt.Errorf("start gate: %w", err)
	}

	// Transport
	assembler := framing.NewAssembler(
		framing.WithTagPrefix(protocol.Tag + protocol.FieldSeparator),
	)
	var connOpts []transport.Option
	if s.journal != nil {
		connOpts = append(connOpts, transport.WithJournal(s.journal))
	}
	s.conn = transport.New(s.deviceAddr, assembler, s.gate, s.bus, connOpts...)

	runCtx, cancel := context.WithCancel(context.Background())
	s.stopRun = cancel
	s.runDone = make(chan struct{})
	go s.runTransport(runCtx)

	s.started = true
	s.logger.Info(ctx, "record service started",
		logger.String("device", s.deviceAddr),
		logger.Int("leaderboardSize", s.leaderboardSize),
		logger.Int("historySize", s.historySize),
		logger.Duration("replyTimeout", s.replyTimeout),
	)

	return nil
}

// Stop gracefully shuts down the service. Teardown order matters: the
// reader stops first, then the gate flushes what it holds into the commit
// queue, then the workers drain the queue before the stores close.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping record service...")

	if s.stopRun != nil {
		s.stopRun()
		<-s.runDone
	}

	if s.gate != nil {
		_ = s.gate.Close()
	}

	if s.commitQueue != nil {
		_ = s.commitQueue.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}

	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.journal != nil {
		_ = s.journal.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "record service stopped")
}

// runTransport keeps the device link alive, redialing after every drop
// until the service stops.
func (s *Service) runTransport(ctx context.Context) {
	defer close(s.runDone)

	for {
		if err := s.conn.Run(ctx); err != nil {
			s.logger.Warn(ctx, "device connection ended",
				logger.String("device", s.deviceAddr),
				logger.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// RequestName implements gate.Prompter by publishing a prompt event for
// the UI surface; the reply arrives later through ResolvePlayer.
func (s *Service) RequestName(ctx context.Context) {
	s.bus.Publish(ctx, events.Event{Kind: events.KindPromptRequested})
}

// Deliver implements gate.Sink by handing flushed frames to the commit
// queue. It never blocks the caller.
func (s *Service) Deliver(ctx context.Context, frame string, player string) bool {
	return s.commitQueue.Enqueue(ctx, commitqueue.Item{Frame: frame, Player: player})
}

// ResolvePlayer adopts an externally-supplied player name.
func (s *Service) ResolvePlayer(ctx context.Context, name string) {
	s.gate.Resolve(ctx, name)
}

// Player returns the active player-name context.
func (s *Service) Player(ctx context.Context) string {
	return s.gate.Player()
}

// Leaderboard returns the ranking best-first.
func (s *Service) Leaderboard(ctx context.Context) ([]model.LeaderboardRow, error) {
	return s.store.List(ctx)
}

// History returns stored history rows in the requested order.
func (s *Service) History(ctx context.Context, order repository.Order) ([]model.HistoryRow, error) {
	return s.store.Entries(ctx, order)
}

// Subscribe registers an event-stream subscriber.
func (s *Service) Subscribe() (string, <-chan events.Event) {
	return s.bus.Subscribe()
}

// Unsubscribe removes an event-stream subscriber.
func (s *Service) Unsubscribe(id string) {
	s.bus.Unsubscribe(id)
}

// ConnState returns a snapshot of the device connection state.
func (s *Service) ConnState() string {
	if s.conn == nil {
		return transport.StateIdle.String()
	}
	return s.conn.State().String()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"device":          s.deviceAddr,
		"leaderboardSize": s.leaderboardSize,
		"historySize":     s.historySize,
		"promptPolicy":    string(s.promptPolicy),
	}

	if s.started {
		stats["connState"] = s.conn.State().String()
		stats["player"] = s.gate.Player()
		stats["awaitingReply"] = s.gate.Awaiting()
		stats["gatePending"] = s.gate.Pending()
		stats["commitQueueLength"] = s.commitQueue.Len(ctx)
		stats["streamSubscribers"] = s.bus.Len()

		if n, err := s.store.Count(ctx); err == nil {
			stats["rankedRows"] = n
		}
		if n, err := s.store.Len(ctx); err == nil {
			stats["historyRows"] = n
		}
	}

	return stats
}

// Package gate defers record commitment until an externally-resolved
// player name arrives, or a timeout elapses.
//
// The gate bridges two execution contexts: the transport reader goroutine
// offering frames, and the UI surface resolving names. Exactly one of the
// two exits from the waiting state (resolution or timeout) may flush the
// pending queue; the loser must be a no-op. A single mutex plus a cycle
// counter serialize that transition.
package gate

import (
	"context"
	"sync"
	"time"

	"github.com/okian/naja/pkg/logger"
	"github.com/okian/naja/pkg/metrics"
)

// Default gate configuration constants.
const (
	defaultReplyTimeout  = 20 * time.Second
	defaultPlayerContext = "AAA"
)

// PromptPolicy selects whether a resolved name suppresses later prompts.
type PromptPolicy string

// Prompt policies.
const (
	// PromptAlways re-prompts on every delivery cycle, matching the
	// recorder companion app.
	PromptAlways PromptPolicy = "always"

	// PromptOnce stops prompting after the first successful resolution and
	// commits subsequent deliveries under the remembered name.
	PromptOnce PromptPolicy = "once"
)

// Flush triggers, used for logging and metrics labels.
const (
	triggerResolved = "resolved"
	triggerTimeout  = "timeout"
)

// Prompter emits one external name request per waiting cycle. The call is
// fire-and-forget and must not block.
type Prompter interface {
	RequestName(ctx context.Context)
}

// Names persists the last resolved player name across restarts.
type Names interface {
	LoadName(ctx context.Context) (string, error)
	StoreName(ctx context.Context, name string) error
}

// Sink receives flushed frames together with the player context active at
// flush time. Deliver must not block; it returns false when the frame was
// not accepted (e.g. commit pipeline shut down).
type Sink interface {
	Deliver(ctx context.Context, frame string, player string) bool
}

// entry is one frame parked in the pending queue.
type entry struct {
	frame   string
	arrived time.Time
}

// Gate implements the notification-gated delivery queue.
type Gate struct {
	mu sync.Mutex

	prompter Prompter
	names    Names
	sink     Sink

	timeout time.Duration
	policy  PromptPolicy

	// player is the active name context. It persists across cycles and
	// process restarts via the Names store.
	player       string
	resolvedOnce bool

	// Waiting-cycle state. cycle increments on every transition into the
	// waiting state so a stale timer callback can recognize it lost.
	awaiting bool
	cycle    uint64
	timer    *time.Timer
	pending  []entry
	seen     map[string]struct{}

	closed bool

	logger logger.Logger
}

// New constructs a Gate. The prompter, names store, and sink are required
// collaborators passed at construction; their lifecycle is tied to the
// owning service.
func New(prompter Prompter, names Names, sink Sink, opts ...Option) *Gate {
	g := &Gate{
		prompter: prompter,
		names:    names,
		sink:     sink,
		timeout:  defaultReplyTimeout,
		policy:   PromptAlways,
		player:   defaultPlayerContext,
		seen:     make(map[string]struct{}),
		logger:   logger.Get().Named("gate"),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Start loads the persisted player context. A missing or failing store is
// not fatal; the seeded default stays active.
func (g *Gate) Start(ctx context.Context) error {
	name, err := g.names.LoadName(ctx)
	if err != nil {
		g.logger.Warn(ctx, "loading persisted player name failed; keeping default",
			logger.String("default", g.player),
			logger.Error(err),
		)
		return nil
	}
	if name != "" {
		g.mu.Lock()
		g.player = name
		g.resolvedOnce = true
		g.mu.Unlock()
	}
	return nil
}

// Offer accepts one assembled frame from the reader path. It only queues
// and never blocks on user input.
func (g *Gate) Offer(ctx context.Context, frame string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		g.logger.Warn(ctx, "frame offered after close; dropped")
		return
	}

	if g.awaiting {
		if _, dup := g.seen[frame]; dup {
			metrics.RecordGateDuplicate()
			g.logger.Info(ctx, "duplicate frame while awaiting input; dropped",
				logger.Int("pending", len(g.pending)),
			)
			return
		}
		g.seen[frame] = struct{}{}
		g.pending = append(g.pending, entry{frame: frame, arrived: time.Now()})
		metrics.UpdateGatePending(len(g.pending))
		return
	}

	if !g.shouldPrompt() {
		// Name context already settled; commit straight through.
		g.deliver(ctx, frame)
		return
	}

	// First frame of a new cycle: park it, ask for a name, arm the timer.
	g.pending = append(g.pending, entry{frame: frame, arrived: time.Now()})
	g.seen[frame] = struct{}{}
	g.awaiting = true
	g.cycle++
	cycle := g.cycle
	g.timer = time.AfterFunc(g.timeout, func() { g.onTimeout(cycle) })

	metrics.UpdateGatePending(len(g.pending))
	metrics.RecordPromptRequested()
	g.logger.Info(ctx, "awaiting player name",
		logger.Duration("timeout", g.timeout),
	)
	g.prompter.RequestName(ctx)
}

// Resolve adopts an externally-supplied player name. The name is persisted
// for future cycles. If a cycle is waiting, the pending queue is flushed
// under the new name; otherwise only the context is updated.
func (g *Gate) Resolve(ctx context.Context, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if name != "" {
		g.player = name
		g.resolvedOnce = true
		if err := g.names.StoreName(ctx, name); err != nil {
			g.logger.Warn(ctx, "persisting player name failed",
				logger.String("player", name),
				logger.Error(err),
			)
		}
		g.logger.Info(ctx, "player name resolved", logger.String("player", name))
	}

	if !g.awaiting {
		return
	}
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.flushLocked(ctx, triggerResolved)
}

// onTimeout is the timer exit from the waiting state. A stale callback
// (the cycle already resolved) is a no-op.
func (g *Gate) onTimeout(cycle uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.awaiting || g.cycle != cycle {
		return
	}

	ctx := context.Background()
	g.logger.Info(ctx, "name reply timed out; flushing with prior player",
		logger.String("player", g.player),
		logger.Int("pending", len(g.pending)),
	)
	g.flushLocked(ctx, triggerTimeout)
}

// flushLocked drains the pending queue in arrival order and returns the
// gate to idle. Callers must hold g.mu.
func (g *Gate) flushLocked(ctx context.Context, trigger string) {
	for _, e := range g.pending {
		g.deliver(ctx, e.frame)
	}
	g.pending = g.pending[:0]
	g.seen = make(map[string]struct{})
	g.awaiting = false
	g.timer = nil

	metrics.UpdateGatePending(0)
	metrics.RecordGateFlush(trigger)
}

// deliver pushes a single frame with the active player context.
// Callers must hold g.mu.
func (g *Gate) deliver(ctx context.Context, frame string) {
	if !g.sink.Deliver(ctx, frame, g.player) {
		g.logger.Warn(ctx, "sink rejected frame; record lost",
			logger.String("player", g.player),
		)
	}
}

// shouldPrompt reports whether a fresh cycle needs a name request.
// Callers must hold g.mu.
func (g *Gate) shouldPrompt() bool {
	if g.policy == PromptOnce && g.resolvedOnce {
		return false
	}
	return true
}

// Pending returns the number of queued frames, for stats surfaces.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Player returns the active player context.
func (g *Gate) Player() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.player
}

// Awaiting reports whether a name-resolution cycle is in flight.
func (g *Gate) Awaiting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.awaiting
}

// Close stops the gate. An armed timer is cancelled; frames still pending
// are flushed with the current player context so nothing accepted is
// silently lost.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	if len(g.pending) > 0 {
		g.flushLocked(context.Background(), triggerTimeout)
	}
	g.closed = true
	return nil
}

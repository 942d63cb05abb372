// Package worker defines the commit workers that decode flushed frames
// and write them to the stores.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/naja/internal/adapters/events"
	"github.com/okian/naja/internal/adapters/mq/queue"
	"github.com/okian/naja/internal/adapters/repository"
	"github.com/okian/naja/internal/domain/protocol"
	"github.com/okian/naja/pkg/logger"
	"github.com/okian/naja/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	workerShutdownTimeout = 5 * time.Second
)

// Queue defines how workers receive items.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Item
}

// Worker processes commit items: decode, attach player, persist, publish.
type Worker struct {
	queue       Queue
	leaderboard repository.Leaderboard
	history     repository.History
	bus         *events.Bus
	name        string

	// Shutdown control
	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewWorker creates a new worker with configuration options.
func NewWorker(q Queue, lb repository.Leaderboard, hist repository.History, bus *events.Bus, opts ...Option) *Worker {
	w := &Worker{
		queue:       q,
		leaderboard: lb,
		history:     hist,
		bus:         bus,
		name:        "worker",
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop until the context is cancelled, the queue is
// closed, or Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case it, ok := <-items:
			if !ok {
				return
			}
			w.processItem(ctx, it)
		}
	}
}

// Shutdown gracefully stops the worker. Safe to call more than once.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processItem commits a single flushed frame. Decode failures discard the
// frame and are observable but never fatal; nothing here stops the loop.
func (w *Worker) processItem(ctx context.Context, it queue.Item) {
	defer func() {
		metrics.RecordCommitLatency(float64(time.Since(it.EnqueuedAt).Milliseconds()))
	}()

	rec, err := protocol.Decode(it.Frame)
	switch {
	case errors.Is(err, protocol.ErrForeignTag):
		// Link noise, not worth surfacing beyond debug.
		w.logger.Debug(ctx, "frame with foreign tag skipped")
		return
	case err != nil:
		w.logger.Warn(ctx, "malformed frame discarded", logger.Error(err))
		w.bus.Publish(ctx, events.Event{Kind: events.KindRecordRejected, Reason: "malformed"})
		return
	}

	rec = rec.WithPlayer(it.Player)

	if _, err := w.leaderboard.Submit(ctx, rec); err != nil {
		metrics.RecordCommitError()
		w.logger.Error(ctx, "leaderboard submit failed",
			logger.String("player", rec.Player),
			logger.Error(err),
		)
	}

	if _, err := w.history.Append(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			w.logger.Info(ctx, "duplicate delivery rejected by history",
				logger.Time("playedAt", rec.PlayedAt),
			)
			w.bus.Publish(ctx, events.Event{Kind: events.KindRecordRejected, Reason: "duplicate"})
		} else {
			metrics.RecordCommitError()
			w.logger.Error(ctx, "history append failed",
				logger.Time("playedAt", rec.PlayedAt),
				logger.Error(err),
			)
		}
		return
	}

	w.bus.Publish(ctx, events.Event{Kind: events.KindRecordCommitted, Record: &rec})
}

// Pool manages multiple workers.
type Pool struct {
	workers []*Worker

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers over the same queue.
func NewPool(workerCount int, q Queue, lb repository.Leaderboard, hist repository.History, bus *events.Bus) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	p := &Pool{
		workers: make([]*Worker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewWorker(q, lb, hist, bus,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
	defer cancel()
	for _, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker stop timed out", logger.String("worker", w.name))
		}
	}
}

package worker_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	events "github.com/okian/naja/internal/adapters/events"
	queue "github.com/okian/naja/internal/adapters/mq/queue"
	worker "github.com/okian/naja/internal/adapters/mq/worker"
	repository "github.com/okian/naja/internal/adapters/repository"
	"github.com/okian/naja/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

// awaitEvent reads one event or fails the assertion after a timeout.
func awaitEvent(ch <-chan events.Event) (events.Event, bool) {
	select {
	case ev := <-ch:
		return ev, true
	case <-time.After(2 * time.Second):
		return events.Event{}, false
	}
}

func TestWorkerCommit(t *testing.T) {
	Convey("Given a worker over a queue, stores, and a bus", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		store := repository.NewMemoryStore()
		bus := events.NewBus()
		_, ch := bus.Subscribe()

		w := worker.NewWorker(q, store, store, bus, worker.WithName("test"))
		go w.Run(ctx)
		defer func() { _ = w.Shutdown(context.Background()) }()

		Convey("When a valid frame is dequeued", func() {
			ok := q.Enqueue(ctx, queue.Item{
				Frame:  "RPL|2025-11-13 17:00:00|01:30:500|true",
				Player: "BOB",
			})
			So(ok, ShouldBeTrue)

			ev, got := awaitEvent(ch)

			Convey("Then the record lands in both stores under the player", func() {
				So(got, ShouldBeTrue)
				So(ev.Kind, ShouldEqual, events.KindRecordCommitted)
				So(ev.Record, ShouldNotBeNil)
				So(ev.Record.Player, ShouldEqual, "BOB")

				rows, err := store.List(ctx)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].Player, ShouldEqual, "BOB")
				So(rows[0].PlaytimeMS, ShouldEqual, 90_500)

				n, _ := store.Len(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When the same frame is delivered twice", func() {
			it := queue.Item{
				Frame:  "RPL|2025-11-13 17:00:00|01:30:500|true",
				Player: "BOB",
			}
			So(q.Enqueue(ctx, it), ShouldBeTrue)
			So(q.Enqueue(ctx, it), ShouldBeTrue)

			first, gotFirst := awaitEvent(ch)
			second, gotSecond := awaitEvent(ch)

			Convey("Then the second commit is rejected as a duplicate", func() {
				So(gotFirst, ShouldBeTrue)
				So(first.Kind, ShouldEqual, events.KindRecordCommitted)
				So(gotSecond, ShouldBeTrue)
				So(second.Kind, ShouldEqual, events.KindRecordRejected)
				So(second.Reason, ShouldEqual, "duplicate")

				n, _ := store.Len(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When a malformed frame is dequeued", func() {
			So(q.Enqueue(ctx, queue.Item{Frame: "RPL|broken", Player: "BOB"}), ShouldBeTrue)

			ev, got := awaitEvent(ch)

			Convey("Then it is rejected and nothing is stored", func() {
				So(got, ShouldBeTrue)
				So(ev.Kind, ShouldEqual, events.KindRecordRejected)
				So(ev.Reason, ShouldEqual, "malformed")

				n, _ := store.Len(ctx)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When a foreign-tag frame precedes a valid one", func() {
			So(q.Enqueue(ctx, queue.Item{Frame: "DBG|boot|ok|x", Player: "BOB"}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Item{
				Frame:  "RPL|2025-11-13 18:00:00|00:10:000|true",
				Player: "BOB",
			}), ShouldBeTrue)

			ev, got := awaitEvent(ch)

			Convey("Then the noise is skipped silently and the valid frame commits", func() {
				So(got, ShouldBeTrue)
				So(ev.Kind, ShouldEqual, events.KindRecordCommitted)

				n, _ := store.Len(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When an unsuccessful run is committed", func() {
			So(q.Enqueue(ctx, queue.Item{
				Frame:  "RPL|2025-11-13 17:00:00|01:30:500|false",
				Player: "BOB",
			}), ShouldBeTrue)

			ev, got := awaitEvent(ch)

			Convey("Then it reaches the history but not the ranking", func() {
				So(got, ShouldBeTrue)
				So(ev.Kind, ShouldEqual, events.KindRecordCommitted)

				ranked, _ := store.Count(ctx)
				So(ranked, ShouldEqual, 0)
				n, _ := store.Len(ctx)
				So(n, ShouldEqual, 1)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of workers", t, func() {
		ctx := context.Background()

		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		store := repository.NewMemoryStore(repository.WithHistorySize(64))
		bus := events.NewBus()
		_, ch := bus.Subscribe()

		p := worker.NewPool(3, q, store, store, bus)
		p.Start(ctx)

		Convey("When several frames are enqueued", func() {
			for i := 0; i < 5; i++ {
				So(q.Enqueue(ctx, queue.Item{
					Frame:  fmt.Sprintf("RPL|2025-11-13 17:0%d:00|00:3%d:000|true", i, i),
					Player: "BOB",
				}), ShouldBeTrue)
			}

			for i := 0; i < 5; i++ {
				_, got := awaitEvent(ch)
				So(got, ShouldBeTrue)
			}

			Convey("Then every record is committed exactly once", func() {
				n, _ := store.Len(ctx)
				So(n, ShouldEqual, 5)
			})
		})

		Convey("When the pool stops", func() {
			p.Stop()

			Convey("Then stopping again is harmless", func() {
				p.Stop()
			})
		})
	})
}

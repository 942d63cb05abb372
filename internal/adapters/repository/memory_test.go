package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	repository "github.com/okian/naja/internal/adapters/repository"
	"github.com/okian/naja/internal/domain/model"
	"github.com/okian/naja/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

// rec builds a successful run some minutes past a fixed base time, so
// every record carries a distinct playedAt.
func rec(player string, playtime time.Duration, minuteOffset int) model.Record {
	base := time.Date(2025, time.November, 13, 17, 0, 0, 0, time.UTC)
	return model.Record{
		Player:   player,
		PlayedAt: base.Add(time.Duration(minuteOffset) * time.Minute),
		Playtime: playtime,
		Success:  true,
	}
}

func TestMemoryLeaderboard(t *testing.T) {
	Convey("Given an in-memory ranking with capacity 3", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(repository.WithLeaderboardSize(3))

		Convey("When successful runs are submitted", func() {
			ranked, err := s.Submit(ctx, rec("AAA", 90*time.Second, 0))
			So(err, ShouldBeNil)
			So(ranked, ShouldBeTrue)
			_, _ = s.Submit(ctx, rec("BOB", 30*time.Second, 1))
			_, _ = s.Submit(ctx, rec("EVE", 60*time.Second, 2))

			Convey("Then the list is ordered lowest playtime first with ranks", func() {
				rows, err := s.List(ctx)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 3)
				So(rows[0].Player, ShouldEqual, "BOB")
				So(rows[0].Rank, ShouldEqual, 1)
				So(rows[1].Player, ShouldEqual, "EVE")
				So(rows[2].Player, ShouldEqual, "AAA")
				So(rows[2].Rank, ShouldEqual, 3)
			})

			Convey("And a run better than the worst displaces it", func() {
				ranked, err := s.Submit(ctx, rec("ZOE", 45*time.Second, 3))
				So(err, ShouldBeNil)
				So(ranked, ShouldBeTrue)

				rows, _ := s.List(ctx)
				So(rows, ShouldHaveLength, 3)
				So(rows[2].Player, ShouldEqual, "EVE")
			})

			Convey("And a run worse than the whole board ranks out", func() {
				ranked, err := s.Submit(ctx, rec("SLO", 10*time.Minute, 3))
				So(err, ShouldBeNil)
				So(ranked, ShouldBeFalse)

				n, _ := s.Count(ctx)
				So(n, ShouldEqual, 3)
			})
		})

		Convey("When an unsuccessful run is submitted", func() {
			ranked, err := s.Submit(ctx, model.Record{
				Player:   "AAA",
				PlayedAt: time.Now(),
				Playtime: time.Second,
				Success:  false,
			})

			Convey("Then it never enters the ranking", func() {
				So(err, ShouldBeNil)
				So(ranked, ShouldBeFalse)
				n, _ := s.Count(ctx)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When two runs tie on playtime", func() {
			_, _ = s.Submit(ctx, rec("OLD", time.Minute, 0))
			_, _ = s.Submit(ctx, rec("NEW", time.Minute, 5))

			Convey("Then the earlier run ranks higher", func() {
				rows, _ := s.List(ctx)
				So(rows[0].Player, ShouldEqual, "OLD")
				So(rows[1].Player, ShouldEqual, "NEW")
			})
		})
	})
}

func TestMemoryHistory(t *testing.T) {
	Convey("Given an in-memory history log with capacity 3", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(repository.WithHistorySize(3))

		Convey("When records are appended", func() {
			seq1, err1 := s.Append(ctx, rec("AAA", time.Minute, 0))
			seq2, err2 := s.Append(ctx, rec("AAA", time.Minute, 1))

			Convey("Then sequence numbers grow monotonically", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(seq1, ShouldEqual, 1)
				So(seq2, ShouldEqual, 2)
			})
		})

		Convey("When a record repeats an existing playedAt", func() {
			_, err := s.Append(ctx, rec("AAA", time.Minute, 0))
			So(err, ShouldBeNil)
			_, err = s.Append(ctx, rec("BOB", 2*time.Minute, 0))

			Convey("Then the duplicate is rejected and the log is unchanged", func() {
				So(errors.Is(err, repository.ErrDuplicateEntry), ShouldBeTrue)
				n, _ := s.Len(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When the log exceeds capacity", func() {
			for i := 0; i < 4; i++ {
				_, err := s.Append(ctx, rec("AAA", time.Minute, i))
				So(err, ShouldBeNil)
			}

			Convey("Then the oldest entry is evicted", func() {
				rows, err := s.Entries(ctx, repository.OldestFirst)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 3)
				So(rows[0].Seq, ShouldEqual, 2)
				So(rows[2].Seq, ShouldEqual, 4)
			})

			Convey("And newest-first reverses the order", func() {
				rows, _ := s.Entries(ctx, repository.NewestFirst)
				So(rows[0].Seq, ShouldEqual, 4)
				So(rows[2].Seq, ShouldEqual, 2)
			})
		})
	})
}

func TestMemoryNames(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()

		Convey("When no name was ever stored", func() {
			name, err := s.LoadName(ctx)
			So(err, ShouldBeNil)
			So(name, ShouldBeEmpty)
		})

		Convey("When a name is stored", func() {
			So(s.StoreName(ctx, "BOB"), ShouldBeNil)
			name, err := s.LoadName(ctx)
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "BOB")
		})
	})
}

func TestMemoryClose(t *testing.T) {
	Convey("Given a closed store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()
		So(s.Close(), ShouldBeNil)

		Convey("Then mutations report closure", func() {
			_, err := s.Submit(ctx, rec("AAA", time.Minute, 0))
			So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)

			_, err = s.Append(ctx, rec("AAA", time.Minute, 0))
			So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)

			So(errors.Is(s.StoreName(ctx, "BOB"), repository.ErrClosed), ShouldBeTrue)
		})
	})
}

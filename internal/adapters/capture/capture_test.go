package capture_test

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	capture "github.com/okian/naja/internal/adapters/capture"
	"github.com/okian/naja/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

func readBack(path string) []string {
	f, err := os.Open(path)
	So(err, ShouldBeNil)
	defer f.Close()

	dec, err := zstd.NewReader(f)
	So(err, ShouldBeNil)
	defer dec.Close()

	var lines []string
	scanner := bufio.NewScanner(dec)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	So(scanner.Err(), ShouldBeNil)
	return lines
}

func TestJournal(t *testing.T) {
	Convey("Given a journal on a fresh file", t, func() {
		path := filepath.Join(t.TempDir(), "frames.zst")
		j, err := capture.Open(path)
		So(err, ShouldBeNil)

		Convey("When frames are written and the journal closes", func() {
			So(j.Write("RPL|2025-11-13 17:00:00|01:30:500|true"), ShouldBeNil)
			So(j.Write("RPL|2025-11-13 17:05:00|00:45:000|false"), ShouldBeNil)
			So(j.Close(), ShouldBeNil)

			Convey("Then the file decompresses to one frame per line", func() {
				So(readBack(path), ShouldResemble, []string{
					"RPL|2025-11-13 17:00:00|01:30:500|true",
					"RPL|2025-11-13 17:05:00|00:45:000|false",
				})
			})
		})

		Convey("When writing after close", func() {
			So(j.Close(), ShouldBeNil)
			err := j.Write("RPL|2025-11-13 17:00:00|01:30:500|true")

			Convey("Then the write reports closure", func() {
				So(errors.Is(err, capture.ErrClosed), ShouldBeTrue)
			})

			Convey("And closing again is harmless", func() {
				So(j.Close(), ShouldBeNil)
			})
		})

		Convey("When a compression level is configured", func() {
			other := filepath.Join(t.TempDir(), "fast.zst")
			fast, err := capture.Open(other, capture.WithLevel(zstd.SpeedFastest))
			So(err, ShouldBeNil)
			So(fast.Write("RPL|2025-11-13 17:00:00|01:30:500|true"), ShouldBeNil)
			So(fast.Close(), ShouldBeNil)

			So(readBack(other), ShouldHaveLength, 1)
		})
	})
}

// Package protocol parses and produces wire frames of the record protocol.
//
// The canonical frame is a fixed four-field, pipe-separated tuple:
//
//	RPL|2025-11-13 17:00:00|01:30:500|true
//
// tag, timestamp (yyyy-MM-dd HH:mm:ss), playtime (mm:ss:SSS), and a
// boolean success flag. An older firmware revision emitted a numeric
// score in the last field instead; that variant carries no discriminator
// on the wire and is intentionally not decoded here.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/naja/internal/domain/model"
	"github.com/okian/naja/pkg/metrics"
)

// Wire format constants.
const (
	// Tag is the reserved marker every record frame must start with.
	Tag = "RPL"

	// FieldSeparator splits the frame into its four fields.
	FieldSeparator = "|"

	// TimestampLayout is the calendar format of the second field.
	TimestampLayout = "2006-01-02 15:04:05"

	fieldCount         = 4
	durationFieldCount = 3
)

// Decode parses a frame into a Record. The player name is not on the wire;
// callers attach it with Record.WithPlayer before committing downstream.
//
// A frame with the wrong field count or an unparseable playtime is
// malformed. A frame with a foreign tag is skippable noise, not an error
// worth surfacing. An unparseable timestamp is recovered locally by
// substituting the current time at whole-second precision.
func Decode(frame string) (model.Record, error) {
	fields := strings.Split(frame, FieldSeparator)
	if len(fields) != fieldCount {
		metrics.RecordFrameMalformed()
		return model.Record{}, fmt.Errorf("%w: got %d fields, want %d", ErrMalformed, len(fields), fieldCount)
	}
	if fields[0] != Tag {
		metrics.RecordFrameForeignTag()
		return model.Record{}, fmt.Errorf("%w: %q", ErrForeignTag, fields[0])
	}

	playedAt, err := time.Parse(TimestampLayout, fields[1])
	if err != nil {
		// The device clock drifts and occasionally emits garbage here;
		// fall back to the local clock rather than losing the record.
		playedAt = time.Now().Truncate(time.Second)
		metrics.RecordTimestampFallback()
	}

	playtime, err := parsePlaytime(fields[2])
	if err != nil {
		metrics.RecordFrameMalformed()
		return model.Record{}, fmt.Errorf("%w: playtime: %v", ErrMalformed, err)
	}

	success := strings.EqualFold(fields[3], "true")

	metrics.RecordFrameDecoded()
	return model.Record{
		PlayedAt: playedAt,
		Playtime: playtime,
		Success:  success,
	}, nil
}

// Encode renders a record back into its wire frame, without the trailing
// delimiter. Used by round-trip tests and the device simulator.
func Encode(r model.Record) string {
	return strings.Join([]string{
		Tag,
		r.PlayedAt.Format(TimestampLayout),
		FormatPlaytime(r.Playtime),
		strconv.FormatBool(r.Success),
	}, FieldSeparator)
}

// FormatPlaytime renders a duration as mm:ss:SSS.
func FormatPlaytime(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%03d", ms/60000, (ms%60000)/1000, ms%1000)
}

// parsePlaytime parses the mm:ss:SSS playtime field.
func parsePlaytime(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != durationFieldCount {
		return 0, fmt.Errorf("got %d parts, want %d", len(parts), durationFieldCount)
	}

	minutes, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, err
	}
	millis, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, err
	}
	if minutes < 0 || seconds < 0 || millis < 0 {
		return 0, fmt.Errorf("negative playtime component in %q", s)
	}

	return time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

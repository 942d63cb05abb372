// Package framing reassembles delimiter-terminated frames from a raw,
// arbitrarily-chunked byte stream and filters keep-alive noise.
package framing

import (
	"bytes"
	"strings"

	"github.com/okian/naja/pkg/metrics"
)

// Default framing configuration constants.
const (
	defaultDelimiter = '\n'
	heartbeatByte    = "\x00"
)

// Assembler accumulates raw chunks and yields complete frames. It is
// stateful: a partial segment stays buffered until the next chunk
// completes it. Assembler is not safe for concurrent use; the reader
// goroutine owns it.
type Assembler struct {
	buf        bytes.Buffer
	delimiter  byte
	heartbeats map[string]struct{}
	tagPrefix  string
}

// NewAssembler creates an assembler with configuration options. By default
// the single NUL byte the device uses as a keep-alive is recognized as a
// heartbeat.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		delimiter: defaultDelimiter,
		heartbeats: map[string]struct{}{
			heartbeatByte: {},
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Ingest appends a chunk to the residual buffer and returns every complete
// frame it terminates. Frames are trimmed of surrounding whitespace.
// Heartbeat payloads are dropped silently and never returned.
func (a *Assembler) Ingest(chunk []byte) []string {
	if len(chunk) > 0 {
		a.buf.Write(chunk)
	}

	var frames []string
	for {
		raw := a.buf.Bytes()
		i := bytes.IndexByte(raw, a.delimiter)
		if i < 0 {
			break
		}

		segment := string(raw[:i])
		a.buf.Next(i + 1)

		frame := strings.TrimSpace(segment)
		if frame == "" {
			continue
		}
		if a.isHeartbeat(frame) {
			metrics.RecordHeartbeatDropped()
			continue
		}

		frames = append(frames, frame)
		metrics.RecordFrameAssembled()
	}

	// A lone heartbeat arrives without a terminator; drop it immediately so
	// it cannot prefix the next real frame. Only the exact sentinel set
	// applies here: the residual may be the start of a torn frame, so the
	// tag-prefix test is valid only for complete segments.
	if residual := strings.TrimSpace(a.buf.String()); residual != "" {
		if _, ok := a.heartbeats[residual]; ok {
			a.buf.Reset()
			metrics.RecordHeartbeatDropped()
		}
	}

	metrics.UpdateResidualBytes(a.buf.Len())
	return frames
}

// Pending returns the number of buffered bytes awaiting a delimiter.
func (a *Assembler) Pending() int {
	return a.buf.Len()
}

// Reset discards any buffered partial frame. Used when the transport
// reconnects and the residual cannot belong to the new stream.
func (a *Assembler) Reset() {
	a.buf.Reset()
	metrics.UpdateResidualBytes(0)
}

// isHeartbeat reports whether a trimmed payload carries no record data.
// In strict mode any payload that does not start with the protocol tag
// prefix is treated the same way.
func (a *Assembler) isHeartbeat(frame string) bool {
	if _, ok := a.heartbeats[frame]; ok {
		return true
	}
	if a.tagPrefix != "" && !strings.HasPrefix(frame, a.tagPrefix) {
		return true
	}
	return false
}

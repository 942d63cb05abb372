// Package devicesim emulates the recorder device byte stream for local
// testing: it listens on TCP and emits heartbeats plus replay frames the
// way the real hardware does, including torn writes.
package devicesim

import "time"

// Default configuration constants.
const (
	DefaultFrameInterval     = 3 * time.Second
	DefaultHeartbeatInterval = 1 * time.Second
	DefaultMaxChunk          = 8
)

// Config controls the simulated device behavior.
type Config struct {
	// Addr is the TCP listen address, e.g. "127.0.0.1:9600".
	Addr string

	// NumFrames bounds how many replay frames each session emits.
	// Zero means unbounded.
	NumFrames int

	// FrameInterval is the pause between replay frames.
	FrameInterval time.Duration

	// HeartbeatInterval is the pause between keepalive bytes.
	HeartbeatInterval time.Duration

	// MaxChunk caps the write size so frames tear across TCP reads the
	// way a serial bridge does. Zero disables tearing.
	MaxChunk int

	// FailureRate is the fraction of emitted runs marked unsuccessful,
	// in [0, 1].
	FailureRate float64
}

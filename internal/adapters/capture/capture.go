// Package capture journals raw frames to a zstd-compressed append-only
// file, one frame per line, for debugging and offline replay.
package capture

import (
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/okian/naja/pkg/metrics"
)

// Journal writes raw frames through a zstd encoder. Safe for use from a
// single writer goroutine plus Close from the owner.
type Journal struct {
	mu      sync.Mutex
	file    *os.File
	encoder *zstd.Encoder
	closed  bool
}

// Option applies a configuration option to the journal encoder.
type Option func(*options)

type options struct {
	level zstd.EncoderLevel
}

// WithLevel sets the zstd compression level.
func WithLevel(level zstd.EncoderLevel) Option {
	return func(o *options) {
		o.level = level
	}
}

// Open creates or appends to the journal at path.
func Open(path string, opts ...Option) (*Journal, error) {
	o := options{level: zstd.SpeedDefault}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture journal: %w", err)
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(o.level))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	return &Journal{file: f, encoder: enc}, nil
}

// Write appends one raw frame to the journal.
func (j *Journal) Write(frame string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	n, err := j.encoder.Write(append([]byte(frame), '\n'))
	if err != nil {
		return fmt.Errorf("write capture frame: %w", err)
	}
	metrics.RecordCaptureFrame(n)
	return nil
}

// Close flushes the encoder and closes the file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if err := j.encoder.Close(); err != nil {
		_ = j.file.Close()
		return fmt.Errorf("close zstd encoder: %w", err)
	}
	return j.file.Close()
}

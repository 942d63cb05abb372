package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/naja/internal/devicesim"
	"github.com/okian/naja/pkg/logger"
)

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:9600", "TCP listen address")
		numFrames   = flag.Int("frames", 0, "Frames to emit per session (0 = unbounded)")
		interval    = flag.Duration("interval", devicesim.DefaultFrameInterval, "Pause between replay frames")
		heartbeat   = flag.Duration("heartbeat", devicesim.DefaultHeartbeatInterval, "Pause between keepalive bytes")
		maxChunk    = flag.Int("chunk", devicesim.DefaultMaxChunk, "Max write size in bytes (0 = whole frames)")
		failureRate = flag.Float64("failure-rate", 0.3, "Fraction of runs marked unsuccessful")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := devicesim.NewServer(devicesim.Config{
		Addr:              *addr,
		NumFrames:         *numFrames,
		FrameInterval:     *interval,
		HeartbeatInterval: *heartbeat,
		MaxChunk:          *maxChunk,
		FailureRate:       *failureRate,
	})
	if err := srv.Run(ctx); err != nil {
		os.Stderr.WriteString("simulator failed: " + err.Error() + "\n")
	}
}

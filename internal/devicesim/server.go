package devicesim

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/okian/naja/pkg/logger"
)

// heartbeat is the single keepalive byte the firmware sends between runs.
var heartbeat = []byte{0x00}

// Server accepts ingest connections and feeds them simulated traffic.
type Server struct {
	cfg    Config
	logger logger.Logger
}

// NewServer creates a simulator from cfg, applying defaults for unset
// intervals.
func NewServer(cfg Config) *Server {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Server{cfg: cfg, logger: logger.Get().Named("devicesim")}
}

// Run listens on the configured address and serves sessions until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	defer func() { _ = ln.Close() }()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.logger.Info(ctx, "simulated device listening", logger.String("addr", s.cfg.Addr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go s.serveSession(ctx, conn)
	}
}

// serveSession drives one connection: heartbeats on a short cadence and
// replay frames on a longer one, torn into small chunks.
func (s *Server) serveSession(ctx context.Context, conn net.Conn) {
	session := uuid.New().String()
	log := s.logger
	log.Info(ctx, "session started",
		logger.String("session", session),
		logger.String("remote", conn.RemoteAddr().String()))
	defer func() {
		_ = conn.Close()
		log.Info(ctx, "session ended", logger.String("session", session))
	}()

	frames := time.NewTicker(s.cfg.FrameInterval)
	defer frames.Stop()
	beats := time.NewTicker(s.cfg.HeartbeatInterval)
	defer beats.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-beats.C:
			if _, err := conn.Write(heartbeat); err != nil {
				log.Debug(ctx, "heartbeat write failed", logger.String("session", session), logger.Error(err))
				return
			}
		case at := <-frames.C:
			if s.cfg.NumFrames > 0 && sent >= s.cfg.NumFrames {
				return
			}
			frame := generateFrame(at, s.cfg.FailureRate) + "\r\n"
			if err := s.writeTorn(conn, []byte(frame)); err != nil {
				log.Debug(ctx, "frame write failed", logger.String("session", session), logger.Error(err))
				return
			}
			sent++
			log.Debug(ctx, "frame sent",
				logger.String("session", session),
				logger.Int("sent", sent))
		}
	}
}

// writeTorn writes data in chunks of at most MaxChunk bytes with a tiny
// pause in between, so the reader sees frames split across reads.
func (s *Server) writeTorn(conn net.Conn, data []byte) error {
	if s.cfg.MaxChunk <= 0 {
		_, err := conn.Write(data)
		return err
	}
	for len(data) > 0 {
		n := s.cfg.MaxChunk
		if n > len(data) {
			n = len(data)
		}
		if _, err := conn.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
		time.Sleep(time.Millisecond)
	}
	return nil
}

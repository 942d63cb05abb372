// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/naja/internal/adapters/events"
	"github.com/okian/naja/internal/adapters/repository"
	"github.com/okian/naja/internal/domain/model"
	"github.com/okian/naja/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Read operations over the two stores.
	Leaderboard(ctx context.Context) ([]model.LeaderboardRow, error)
	History(ctx context.Context, order repository.Order) ([]model.HistoryRow, error)

	// Player-name context: the current value and the resolution entry
	// point the delivery gate is waiting on.
	Player(ctx context.Context) string
	ResolvePlayer(ctx context.Context, name string)

	// ConnState exposes a snapshot of the device connection state.
	ConnState() string

	// Event-stream subscription for the WebSocket feed.
	Subscribe() (string, <-chan events.Event)
	Unsubscribe(id string)
}

// StatsProvider exposes service statistics for the /stats endpoint.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	historyHandler     *HistoryHandler
	playerHandler      *PlayerHandler
	streamHandler      *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: NewLeaderboardHandler(deps),
		historyHandler:     NewHistoryHandler(deps),
		playerHandler:      NewPlayerHandler(deps),
		streamHandler:      NewStreamHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/history", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
	mux.HandleFunc("/player", MetricsMiddleware(s.playerHandler.HandlePlayer, "player"))
	mux.HandleFunc("/stream", s.streamHandler.HandleStream)
	mux.Handle("/metrics", metrics.Handler())
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

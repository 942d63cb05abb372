// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// PlayerDependencies defines the interface for the player-name context.
type PlayerDependencies interface {
	Player(ctx context.Context) string
	ResolvePlayer(ctx context.Context, name string)
}

// PlayerHandler handles the player-name endpoint. A POST here is the
// reply to a prompt event: it resolves the name the delivery gate is
// waiting on.
type PlayerHandler struct {
	deps PlayerDependencies
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(deps PlayerDependencies) *PlayerHandler {
	return &PlayerHandler{deps: deps}
}

// playerRequest mirrors the POST /player body.
type playerRequest struct {
	Name string `json:"name"`
}

// playerResponse mirrors the GET /player reply.
type playerResponse struct {
	Name string `json:"name"`
}

// HandlePlayer handles GET and POST /player requests.
func (h *PlayerHandler) HandlePlayer(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, playerResponse{Name: h.deps.Player(r.Context())})
	case http.MethodPost:
		var req playerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing name"))
			return
		}
		h.deps.ResolvePlayer(r.Context(), name)
		writeJSON(w, http.StatusOK, playerResponse{Name: name})
	default:
		http.NotFound(w, r)
	}
}

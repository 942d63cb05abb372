// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/naja/internal/adapters/repository"
	"github.com/okian/naja/internal/domain/model"
)

// HistoryDependencies defines the interface for history reads.
type HistoryDependencies interface {
	History(ctx context.Context, order repository.Order) ([]model.HistoryRow, error)
}

// HistoryHandler handles history requests.
type HistoryHandler struct {
	deps HistoryDependencies
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies) *HistoryHandler {
	return &HistoryHandler{deps: deps}
}

// HandleGetHistory handles GET /history?order=asc|desc requests. The
// default is newest-first, matching the record list screen of the
// companion app.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	order := repository.NewestFirst
	switch r.URL.Query().Get("order") {
	case "", "desc":
	case "asc":
		order = repository.OldestFirst
	default:
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	rows, err := h.deps.History(r.Context(), order)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if rows == nil {
		rows = []model.HistoryRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

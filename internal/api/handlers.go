package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"figgie-server/pkg/types"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	game    Game
	metrics *Metrics
	logger  *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(game Game, metrics *Metrics, logger *slog.Logger) *Handlers {
	return &Handlers{
		game:    game,
		metrics: metrics,
		logger:  logger.With("component", "api-handlers"),
	}
}

// HandleJoin seats a player and returns their private player_id.
func (h *Handlers) HandleJoin(w http.ResponseWriter, r *http.Request) {
	// An unreadable body is treated like a missing name.
	var req types.JoinRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	pid, err := h.game.Join(req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.metrics.JoinsInc()
	h.writeJSON(w, http.StatusOK, types.JoinResponse{PlayerID: pid})
}

// HandleState returns the caller's view of the round.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.game.StateFor(r.URL.Query().Get("player_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// HandleAction submits an order or cancel.
func (h *Handlers) HandleAction(w http.ResponseWriter, r *http.Request) {
	// An unreadable body leaves player_id empty, which the engine rejects.
	var req types.ActionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	res, err := h.game.SubmitAction(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, actionBody(res))
}

// actionBody shapes the action response: exactly one of order_id, trade,
// or canceled.
func actionBody(res types.ActionResult) any {
	switch {
	case res.Trade != nil:
		return map[string]any{"trade": res.Trade}
	case res.Canceled != nil:
		return map[string]any{"canceled": res.Canceled}
	default:
		return map[string]any{"order_id": res.OrderID}
	}
}

// HandleStatus reports table occupancy for dispatcher preflight.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.game.Status())
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

// writeError sends the uniform 400 envelope. The game's sentinel error
// texts are the wire messages.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
}

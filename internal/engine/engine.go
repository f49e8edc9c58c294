// Package engine owns the live round and serializes every access to it.
//
// Architecture:
//  1. One Round at a time holds all game state (seats, hands, books, pot).
//  2. A single RWMutex guards it: reads take the read lock, mutations and
//     the deadline timer callback take the write lock.
//  3. Completion is lazy. The timer usually fires it, but any request that
//     observes an expired deadline settles the round itself first, so a
//     stalled timer can never leave stale state visible.
//  4. A completed table resets to a fresh round on the next join; a failed
//     table stays failed until the process restarts.
package engine

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"

	"figgie-server/internal/config"
	"figgie-server/internal/game"
	"figgie-server/pkg/types"
)

// Engine hosts one table. All methods are safe for concurrent use.
type Engine struct {
	cfg    *config.Config
	clock  game.Clock
	sink   game.Sink
	logger *slog.Logger

	mu    sync.RWMutex
	rng   *rand.Rand
	round *game.Round
	timer game.Timer
}

// New creates an engine with an empty waiting round. Events from every
// round flow to sink; pass game.NopSink{} to discard them.
func New(cfg *config.Config, clock game.Clock, sink game.Sink, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		clock:  clock,
		sink:   sink,
		logger: logger.With("component", "engine"),
		rng:    rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
	e.round = e.newRound()
	return e
}

func (e *Engine) newRound() *game.Round {
	return game.NewRound(game.RoundConfig{
		Players:  e.cfg.NumPlayers,
		Duration: e.cfg.RoundDuration(),
	}, e.clock, e.rng, e.sink, e.logger)
}

// Join seats a player and returns their private player id. A completed
// table resets to a fresh round first, so the next group can play without
// a restart. When the joining player fills the table, trading starts and
// the deadline timer is armed.
func (e *Engine) Join(name string) (string, error) {
	if name == "" {
		return "", game.ErrNameRequired
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.round.CompleteIfDue()
	if e.round.Phase() == types.PhaseCompleted {
		e.resetLocked()
	}

	pid, started, err := e.round.Join(name)
	if err != nil {
		return "", err
	}
	if started {
		e.armTimerLocked()
	}
	return pid, nil
}

// resetLocked swaps in a fresh round. Caller holds the write lock.
func (e *Engine) resetLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	finished := e.round.ID()
	e.round = e.newRound()
	e.logger.Info("table reset", "finished_round", finished, "round_id", e.round.ID())
}

// armTimerLocked schedules settlement at the deadline. The callback
// re-checks the round id so a stale timer never touches a later round.
func (e *Engine) armTimerLocked() {
	id := e.round.ID()
	e.timer = e.clock.AfterFunc(e.cfg.RoundDuration(), func() {
		e.onDeadline(id)
	})
}

func (e *Engine) onDeadline(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round.ID() == id {
		e.round.CompleteIfDue()
	}
}

// SubmitAction validates and dispatches one player action. Checks run in
// a fixed order: identity, phase, expiry, then the action's own schema,
// so the error a client sees for a given request is stable.
func (e *Engine) SubmitAction(req types.ActionRequest) (types.ActionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.round.Known(req.PlayerID) {
		return types.ActionResult{}, game.ErrInvalidPlayer
	}
	if e.round.Phase() != types.PhaseTrading {
		return types.ActionResult{}, game.ErrTradingNotActive
	}
	if e.round.CompleteIfDue() {
		return types.ActionResult{}, game.ErrRoundEnded
	}

	switch req.ActionType {
	case types.ActionOrder:
		price, ok := intPrice(req.Price)
		if !ok {
			return types.ActionResult{}, game.ErrInvalidPrice
		}
		return e.round.PlaceOrder(req.PlayerID, req.OrderType, req.Suit, price)
	case types.ActionCancel:
		band, ok := intPrice(req.Price)
		if !ok {
			return types.ActionResult{}, game.ErrInvalidCancelBand
		}
		canceled, err := e.round.CancelOrders(req.PlayerID, req.OrderType, req.Suit, band)
		if err != nil {
			return types.ActionResult{}, err
		}
		return types.ActionResult{Canceled: canceled}, nil
	default:
		return types.ActionResult{}, game.ErrInvalidActionType
	}
}

// intPrice parses a request price as an exact integer. Missing, fractional,
// and non-numeric values all fail.
func intPrice(raw json.RawMessage) (int, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return int(v), true
}

// StateFor renders the caller's view of the round: public market and
// balances, the caller's own hand, and results once completed.
func (e *Engine) StateFor(playerID string) (types.StateSnapshot, error) {
	e.settleIfDue()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.round.StateFor(playerID)
}

// Status reports table occupancy and configuration for dispatchers.
func (e *Engine) Status() types.ServerStatus {
	e.settleIfDue()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return types.ServerStatus{
		State:           e.round.Phase(),
		CurrentPlayers:  e.round.PlayerCount(),
		NumPlayers:      e.cfg.NumPlayers,
		TradingDuration: e.cfg.TradingDuration,
	}
}

// settleIfDue runs the lazy completion transition if the deadline has
// passed. Callers must not hold the lock; CompleteIfDue re-checks under
// the write lock, so racing callers settle exactly once.
func (e *Engine) settleIfDue() {
	e.mu.RLock()
	due := e.round.NeedsCompletion()
	e.mu.RUnlock()
	if !due {
		return
	}
	e.mu.Lock()
	e.round.CompleteIfDue()
	e.mu.Unlock()
}

// Stop cancels the pending deadline timer. In-flight requests drain under
// the HTTP server's shutdown, not here.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.logger.Info("engine stopped")
}

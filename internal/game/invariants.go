package game

import (
	"fmt"

	"figgie-server/pkg/types"
)

// verify runs the consistency checks after a mutation and fails the round
// if any of them does not hold. A failed round refuses every further
// operation, so a corrupted ledger can never keep trading.
func (r *Round) verify() {
	if err := r.check(); err != nil {
		r.fail(err)
	}
}

// fail moves the round to its terminal failed phase. The violation detail
// goes to the log and the event stream; clients only ever see the phase.
func (r *Round) fail(err error) {
	if r.phase == types.PhaseFailed {
		return
	}
	r.phase = types.PhaseFailed
	r.emit(EventRoundFailed, RoundFailedEvent{Reason: err.Error()})
	r.logger.Error("round failed", "error", err)
}

// check validates conservation, solvency, and book shape. It applies from
// the deal onward; a waiting round has nothing to conserve.
func (r *Round) check() error {
	if r.phase != types.PhaseTrading && r.phase != types.PhaseCompleted {
		return nil
	}

	wantMoney := r.cfg.Players * StartingBalance
	if got := r.ledger.MoneyTotal(); got != wantMoney {
		return fmt.Errorf("money total %d, want %d", got, wantMoney)
	}

	totals := r.ledger.SuitTotals()
	for _, s := range types.Suits() {
		if totals[s] != r.deal.SuitCounts[s] {
			return fmt.Errorf("suit %s holds %d cards, dealt %d", s, totals[s], r.deal.SuitCounts[s])
		}
	}

	for _, id := range r.ledger.Seats() {
		if b := r.ledger.Balance(id); b < 0 {
			return fmt.Errorf("player %s balance %d is negative", id, b)
		}
		for s, n := range r.ledger.Hand(id) {
			if n < 0 {
				return fmt.Errorf("player %s holds %d cards of %s", id, n, s)
			}
		}
	}
	if r.ledger.Pot() < 0 {
		return fmt.Errorf("pot %d is negative", r.ledger.Pot())
	}

	for _, s := range types.Suits() {
		book := r.books[s]
		if err := book.wellFormed(); err != nil {
			return err
		}
		for _, side := range []types.Side{types.Buy, types.Sell} {
			o := book.Best(side)
			if o == nil {
				continue
			}
			if !r.ledger.Has(o.Owner) {
				return fmt.Errorf("resting order %s owned by unknown player %s", o.OrderID, o.Owner)
			}
			if side == types.Buy && !r.ledger.CanFund(o.Owner, o.Price) {
				return fmt.Errorf("resting bid %s by %s is no longer funded", o.OrderID, o.Owner)
			}
			if side == types.Sell && !r.ledger.CanDeliver(o.Owner, s) {
				return fmt.Errorf("resting ask %s by %s is no longer deliverable", o.OrderID, o.Owner)
			}
		}
	}
	return nil
}

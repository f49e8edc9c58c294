package game

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"figgie-server/pkg/types"
)

// RoundConfig is the table setup: how many seats and how long trading runs.
type RoundConfig struct {
	Players  int
	Duration time.Duration
}

// Round is one game from first join to settlement. It is a plain state
// machine with no locking of its own; the engine serializes every call.
type Round struct {
	id     string
	cfg    RoundConfig
	clock  Clock
	rng    *rand.Rand
	sink   Sink
	logger *slog.Logger

	phase    types.Phase
	ledger   *Ledger
	books    map[types.Suit]*Book
	deal     Deal
	deadline time.Time
	results  *types.Results
}

// NewRound returns a fresh waiting round with no players and empty books.
func NewRound(cfg RoundConfig, clock Clock, rng *rand.Rand, sink Sink, logger *slog.Logger) *Round {
	id := uuid.NewString()
	books := make(map[types.Suit]*Book, 4)
	for _, s := range types.Suits() {
		books[s] = NewBook(s)
	}
	return &Round{
		id:     id,
		cfg:    cfg,
		clock:  clock,
		rng:    rng,
		sink:   sink,
		logger: logger.With("round_id", id),
		phase:  types.PhaseWaiting,
		ledger: NewLedger(),
		books:  books,
	}
}

// ID returns the round's identifier.
func (r *Round) ID() string { return r.id }

// Phase returns the current lifecycle phase.
func (r *Round) Phase() types.Phase { return r.phase }

// PlayerCount returns how many players have joined.
func (r *Round) PlayerCount() int { return r.ledger.Count() }

// Known reports whether pid belongs to this round.
func (r *Round) Known(pid string) bool { return r.ledger.Has(pid) }

// Join seats a named player and returns the new player id. When the seat
// filled is the last one the round starts; started reports that so the
// caller can arm the expiry timer.
func (r *Round) Join(name string) (pid string, started bool, err error) {
	if name == "" {
		return "", false, ErrNameRequired
	}
	if r.phase != types.PhaseWaiting {
		return "", false, ErrCannotJoin
	}
	if r.ledger.Count() >= r.cfg.Players {
		return "", false, ErrGameFull
	}

	pid = uuid.NewString()
	r.ledger.AddPlayer(pid, name)
	r.logger.Info("player joined", "name", name, "player_id", pid,
		"seated", r.ledger.Count(), "capacity", r.cfg.Players)

	if r.ledger.Count() == r.cfg.Players {
		r.start()
		started = true
	}
	return pid, started, nil
}

// start deals, collects the ante, snapshots the starting point, and opens
// trading.
func (r *Round) start() {
	seats := r.ledger.Seats()
	r.deal = NewDeal(seats, r.rng)
	r.ledger.ApplyDeal(r.deal)
	r.ledger.AnteAll(PotSize / r.cfg.Players)
	r.ledger.SnapshotInitial()

	r.phase = types.PhaseTrading
	r.deadline = r.clock.Now().Add(r.cfg.Duration)

	r.emit(EventRoundStarted, RoundStartedEvent{
		Duration:   int(r.cfg.Duration / time.Second),
		Players:    r.ledger.Names(),
		Balances:   r.ledger.BalancesCopy(),
		SuitCounts: copyHand(r.deal.SuitCounts),
		GoalSuit:   r.deal.GoalSuit,
		Hands:      r.ledger.HandsCopy(),
	})
	r.logger.Info("round started",
		"players", r.cfg.Players,
		"goal_suit", r.deal.GoalSuit,
		"pot", r.ledger.Pot(),
		"duration", r.cfg.Duration)
	r.verify()
}

// TimeLeft reports the remaining trading time rescaled to TimeScale
// units, rounded up so it reaches zero only at the deadline itself.
func (r *Round) TimeLeft() int {
	if r.phase != types.PhaseTrading {
		return 0
	}
	remaining := r.deadline.Sub(r.clock.Now())
	if remaining <= 0 {
		return 0
	}
	dur := int64(r.cfg.Duration)
	scaled := (TimeScale*int64(remaining) + dur - 1) / dur
	if scaled > TimeScale {
		scaled = TimeScale
	}
	return int(scaled)
}

// NeedsCompletion reports whether the round is trading past its deadline.
func (r *Round) NeedsCompletion() bool {
	return r.phase == types.PhaseTrading && !r.clock.Now().Before(r.deadline)
}

// CompleteIfDue settles the round if its deadline has passed. It reports
// whether the completion transition ran.
func (r *Round) CompleteIfDue() bool {
	if !r.NeedsCompletion() {
		return false
	}
	r.complete()
	return true
}

// complete discards resting orders, settles the pot, and finishes the
// round.
func (r *Round) complete() {
	for _, s := range types.Suits() {
		r.books[s] = NewBook(s)
	}

	res := Settle(r.ledger.Seats(), r.ledger.HandsCopy(), r.ledger.Pot(), r.deal.GoalSuit)
	r.ledger.ApplySettlement(res)
	r.results = &res
	r.phase = types.PhaseCompleted

	r.emit(EventRoundCompleted, RoundCompletedEvent{
		Results:  r.resultsCopy(),
		Balances: r.ledger.BalancesCopy(),
		Hands:    r.ledger.HandsCopy(),
	})
	r.logger.Info("round completed",
		"goal_suit", res.GoalSuit,
		"winners", res.Winners,
		"share_each", res.ShareEach,
		"residue", res.Residue,
		"trades", len(r.ledger.Trades()))
	r.verify()
}

// PlaceOrder admits a buy or sell order for one suit. The order either
// strikes the resting counter-order at the resting price, rests (possibly
// displacing a strictly worse quote), or is rejected.
func (r *Round) PlaceOrder(pid string, side types.Side, suit types.Suit, price int) (types.ActionResult, error) {
	if !side.Valid() {
		return types.ActionResult{}, ErrInvalidOrderType
	}
	if !suit.Valid() {
		return types.ActionResult{}, ErrInvalidSuit
	}
	if price <= 0 {
		return types.ActionResult{}, ErrInvalidPrice
	}

	o := types.Order{
		OrderID: uuid.NewString(),
		Owner:   pid,
		Side:    side,
		Suit:    suit,
		Price:   price,
	}
	book := r.books[suit]

	if counter := book.Crosses(o); counter != nil && counter.Owner == pid {
		return types.ActionResult{}, ErrSelfCross
	}

	if side == types.Buy {
		if !r.ledger.CanFund(pid, price) {
			return types.ActionResult{}, ErrInsufficientFunds
		}
	} else {
		if !r.ledger.CanDeliver(pid, suit) {
			return types.ActionResult{}, ErrNotEnoughCards
		}
	}

	if counter := book.Crosses(o); counter != nil {
		return r.execute(o, counter), nil
	}

	if best := book.Best(side); best != nil && best.Owner == pid {
		return types.ActionResult{}, ErrDuplicateOrder
	}

	displaced, err := book.Rest(o)
	if err != nil {
		return types.ActionResult{}, err
	}
	if displaced != nil {
		r.emit(EventCancel, CancelEvent{
			Side:        displaced.Side,
			Suit:        displaced.Suit,
			OldPlayerID: displaced.Owner,
			OldPrice:    displaced.Price,
			NewPlayerID: o.Owner,
			NewPrice:    o.Price,
			Reason:      CancelDisplaced,
			TimeLeft:    r.TimeLeft(),
		})
	}
	r.emit(EventOrderRested, OrderRestedEvent{
		OrderID:  o.OrderID,
		PlayerID: o.Owner,
		Side:     o.Side,
		Suit:     o.Suit,
		Price:    o.Price,
		TimeLeft: r.TimeLeft(),
	})
	r.logger.Debug("order rested",
		"player_id", pid, "order_type", side, "suit", suit, "price", price)
	r.verify()
	return types.ActionResult{OrderID: o.OrderID}, nil
}

// execute trades the incoming order against the resting counter-order at
// the resting price.
func (r *Round) execute(o types.Order, counter *types.Order) types.ActionResult {
	r.books[o.Suit].Remove(counter.Side)

	t := types.Trade{Price: counter.Price, Suit: o.Suit}
	if o.Side == types.Buy {
		t.Buyer, t.Seller = o.Owner, counter.Owner
	} else {
		t.Buyer, t.Seller = counter.Owner, o.Owner
	}
	r.ledger.Transfer(t)

	r.emit(EventTransaction, TransactionEvent{
		Buyer:    t.Buyer,
		Seller:   t.Seller,
		Suit:     t.Suit,
		Price:    t.Price,
		TimeLeft: r.TimeLeft(),
	})
	r.logger.Info("trade",
		"buyer", t.Buyer, "seller", t.Seller, "suit", t.Suit, "price", t.Price)

	r.sweepInfeasible(t.Buyer, t.Seller)
	r.verify()
	return types.ActionResult{Trade: &t}
}

// sweepInfeasible cancels any resting order of the two trade parties that
// their new balance or hand can no longer honor.
func (r *Round) sweepInfeasible(buyer, seller string) {
	for _, s := range types.Suits() {
		for _, side := range []types.Side{types.Buy, types.Sell} {
			o := r.books[s].Best(side)
			if o == nil || (o.Owner != buyer && o.Owner != seller) {
				continue
			}
			feasible := true
			if side == types.Buy {
				feasible = r.ledger.CanFund(o.Owner, o.Price)
			} else {
				feasible = r.ledger.CanDeliver(o.Owner, s)
			}
			if feasible {
				continue
			}
			r.books[s].Remove(side)
			r.emit(EventCancel, CancelEvent{
				Side:        side,
				Suit:        s,
				OldPlayerID: o.Owner,
				OldPrice:    o.Price,
				Reason:      CancelInfeasible,
				TimeLeft:    r.TimeLeft(),
			})
			r.logger.Debug("order swept",
				"player_id", o.Owner, "order_type", side, "suit", s, "price", o.Price)
		}
	}
}

// CancelOrders removes the caller's resting orders across the requested
// side/suit combination. Band −1 cancels unconditionally; otherwise bids
// at or above the band and asks at or below it are canceled. The returned
// slice is never nil.
func (r *Round) CancelOrders(pid string, side types.Side, suit types.Suit, band int) ([]string, error) {
	if side != types.Buy && side != types.Sell && side != types.BothSides {
		return nil, ErrInvalidOrderType
	}
	if suit != types.AllSuits && !suit.Valid() {
		return nil, ErrInvalidSuit
	}
	if band < -1 {
		return nil, ErrInvalidCancelBand
	}

	suits := []types.Suit{suit}
	if suit == types.AllSuits {
		suits = types.Suits()
	}
	sides := []types.Side{side}
	if side == types.BothSides {
		sides = []types.Side{types.Buy, types.Sell}
	}

	canceled := []string{}
	for _, s := range suits {
		for _, sd := range sides {
			o := r.books[s].Best(sd)
			if o == nil || o.Owner != pid || !bandMatches(sd, o.Price, band) {
				continue
			}
			r.books[s].Remove(sd)
			canceled = append(canceled, o.OrderID)
			r.emit(EventCancel, CancelEvent{
				Side:        sd,
				Suit:        s,
				OldPlayerID: pid,
				OldPrice:    o.Price,
				Reason:      CancelRequested,
				TimeLeft:    r.TimeLeft(),
			})
		}
	}
	if len(canceled) > 0 {
		r.logger.Debug("orders canceled", "player_id", pid, "count", len(canceled))
	}
	r.verify()
	return canceled, nil
}

func bandMatches(side types.Side, price, band int) bool {
	if band == -1 {
		return true
	}
	if side == types.Buy {
		return price >= band
	}
	return price <= band
}

// StateFor builds the requesting player's view of the round. The snapshot
// is a deep copy; mutating it never touches round state.
func (r *Round) StateFor(pid string) (types.StateSnapshot, error) {
	if r.phase == types.PhaseFailed {
		return types.StateSnapshot{}, ErrRoundFailed
	}
	if !r.ledger.Has(pid) {
		return types.StateSnapshot{}, ErrUnknownPlayer
	}

	snap := types.StateSnapshot{
		State:    r.phase,
		Pot:      r.ledger.Pot(),
		Hand:     r.ledger.Hand(pid),
		Market:   r.marketView(),
		Balances: r.ledger.BalancesCopy(),
		Trades:   r.ledger.Trades(),
	}
	if r.phase == types.PhaseTrading {
		tl := r.TimeLeft()
		snap.TimeLeft = &tl
	}
	if r.phase == types.PhaseCompleted {
		res := r.resultsCopy()
		snap.Results = &res
		snap.Hands = r.ledger.HandsCopy()
		snap.InitialBalances = r.ledger.InitialBalances()
	}
	return snap, nil
}

func (r *Round) marketView() map[types.Suit]types.SuitMarket {
	out := make(map[types.Suit]types.SuitMarket, 4)
	for s, b := range r.books {
		out[s] = b.Quotes()
	}
	return out
}

func (r *Round) resultsCopy() types.Results {
	res := *r.results
	res.Counts = make(map[string]int, len(r.results.Counts))
	for id, n := range r.results.Counts {
		res.Counts[id] = n
	}
	res.Bonuses = make(map[string]int, len(r.results.Bonuses))
	for id, n := range r.results.Bonuses {
		res.Bonuses[id] = n
	}
	res.Winners = append([]string(nil), r.results.Winners...)
	return res
}

func (r *Round) emit(kind string, data any) {
	r.sink.Emit(Event{Kind: kind, RoundID: r.id, Time: r.clock.Now(), Data: data})
}

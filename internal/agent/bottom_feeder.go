package agent

import (
	"log/slog"
	"math"
	"math/rand"

	"figgie-server/pkg/types"
)

// BottomFeeder imitates rather than values: at the start of trading it
// picks a random subset of opponents as prey, then prices each suit at
// the recent average of the prey's quoted prices.
type BottomFeeder struct {
	trader
	lookDepth int

	prey    []string
	history map[string]*quoteLog
	ticking bool
}

// BottomFeederConfig tunes a BottomFeeder. Zero fields select the
// defaults.
type BottomFeederConfig struct {
	Aggression float64 // probability of acting each tick, default 0.5
	LookDepth  int     // quotes per side to look back on, default 4
}

// NewBottomFeeder attaches a bottom feeder to conn. Ticks begin only
// once trading starts and the prey is drawn.
func NewBottomFeeder(conn Conn, cfg BottomFeederConfig, rng *rand.Rand, logger *slog.Logger) *BottomFeeder {
	if cfg.Aggression == 0 {
		cfg.Aggression = 0.5
	}
	if cfg.LookDepth == 0 {
		cfg.LookDepth = 4
	}
	b := &BottomFeeder{
		trader: trader{
			conn:       conn,
			board:      newBoard(),
			rng:        rng,
			aggression: cfg.Aggression,
			logger:     logger.With("component", "bottom-feeder", "player", conn.PlayerID()),
		},
		lookDepth: cfg.LookDepth,
	}
	conn.OnStart(b.handleStart)
	conn.OnBid(b.handleBid)
	conn.OnOffer(b.handleOffer)
	conn.OnTransaction(b.handleTrade)
	conn.OnCancel(b.handleCancel)
	return b
}

func (b *BottomFeeder) handleStart(_ map[types.Suit]int, opponents []string) {
	b.prey = randomSubset(b.rng, opponents)
	b.history = make(map[string]*quoteLog, len(opponents)+1)
	b.history[b.conn.PlayerID()] = newQuoteLog()
	for _, id := range opponents {
		b.history[id] = newQuoteLog()
	}
	b.logger.Debug("chose prey", "prey", b.prey)
	if !b.ticking {
		b.ticking = true
		b.conn.OnTick(b.handleTick)
	}
}

func (b *BottomFeeder) handleTick(int) {
	if !b.acts() {
		return
	}
	side, suit := b.pickSide(), b.pickSuit()
	v, ok := b.value(suit)
	if !ok {
		return
	}
	b.place(side, suit, v)
}

func (b *BottomFeeder) handleBid(player string, price int, suit types.Suit) {
	b.board.setBid(suit, price)
	if h := b.history[player]; h != nil {
		h.bids[suit] = append(h.bids[suit], price)
	}
}

func (b *BottomFeeder) handleOffer(player string, price int, suit types.Suit) {
	b.board.setAsk(suit, price)
	if h := b.history[player]; h != nil {
		h.offers[suit] = append(h.offers[suit], price)
	}
}

// handleTrade records the strike price against the two sides that met,
// unless it merely repeats their latest remembered quote.
func (b *BottomFeeder) handleTrade(buyer, seller string, price int, suit types.Suit) {
	b.board.reset()
	if h := b.history[buyer]; h != nil {
		if bids := h.bids[suit]; len(bids) > 0 && bids[len(bids)-1] != price {
			h.bids[suit] = append(bids, price)
		}
	}
	if h := b.history[seller]; h != nil {
		if offers := h.offers[suit]; len(offers) > 0 && offers[len(offers)-1] != price {
			h.offers[suit] = append(offers, price)
		}
	}
}

// handleCancel reprices the board and forgets the quote that was
// pulled.
func (b *BottomFeeder) handleCancel(side types.Side, oldPlayer string, _ int, _ string, newPrice int, suit types.Suit) {
	b.board.applyCancel(side, suit, newPrice)
	h := b.history[oldPlayer]
	if h == nil {
		return
	}
	if side == types.Buy {
		if n := len(h.bids[suit]); n > 0 {
			h.bids[suit] = h.bids[suit][:n-1]
		}
	} else {
		if n := len(h.offers[suit]); n > 0 {
			h.offers[suit] = h.offers[suit][:n-1]
		}
	}
}

// value averages the prey's mean quotes for suit. ok is false until at
// least one prey has quoted both sides of the suit.
func (b *BottomFeeder) value(suit types.Suit) (int, bool) {
	var sum float64
	var count int
	for _, p := range b.prey {
		if m, ok := b.mean(p, suit); ok {
			sum += m
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return int(math.Round(sum / float64(count))), true
}

// mean is the midpoint of a player's recent bid and offer averages for
// suit, looking back at most lookDepth quotes per side.
func (b *BottomFeeder) mean(player string, suit types.Suit) (float64, bool) {
	h := b.history[player]
	if h == nil || len(h.bids[suit]) == 0 || len(h.offers[suit]) == 0 {
		return 0, false
	}
	return (tailMean(h.bids[suit], b.lookDepth) + tailMean(h.offers[suit], b.lookDepth)) / 2, true
}

// tailMean averages the last n entries.
func tailMean(xs []int, n int) float64 {
	if len(xs) > n {
		xs = xs[len(xs)-n:]
	}
	var sum int
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

// quoteLog is one player's remembered quotes per suit, newest last.
type quoteLog struct {
	bids   map[types.Suit][]int
	offers map[types.Suit][]int
}

func newQuoteLog() *quoteLog {
	return &quoteLog{
		bids:   make(map[types.Suit][]int, 4),
		offers: make(map[types.Suit][]int, 4),
	}
}

// randomSubset draws a random non-empty subset of ids, flipping a coin
// per member and redrawing until something sticks.
func randomSubset(rng *rand.Rand, ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	var out []string
	for len(out) == 0 {
		for _, id := range ids {
			if rng.Intn(2) == 0 {
				out = append(out, id)
			}
		}
	}
	return out
}

package agent

import (
	"log/slog"
	"maps"
	"math"
	"math/rand"

	"figgie-server/pkg/types"
)

// layout is one possible deck: the suit dealt twelve cards and the suit
// dealt eight. The other two hold ten each, and the goal suit is the
// companion of the twelve.
type layout struct {
	twelve, eight types.Suit
}

// layouts enumerates the twelve possible decks.
func layouts() []layout {
	out := make([]layout, 0, 12)
	for _, twelve := range types.Suits() {
		for _, eight := range types.Suits() {
			if eight == twelve {
				continue
			}
			out = append(out, layout{twelve: twelve, eight: eight})
		}
	}
	return out
}

// deck is the per-suit card count under this layout.
func (l layout) deck() map[types.Suit]int {
	d := make(map[types.Suit]int, 4)
	for _, s := range types.Suits() {
		d[s] = 10
	}
	d[l.twelve] = 12
	d[l.eight] = 8
	return d
}

// Fundamentalist trades on a card-counting estimate of what each suit
// is worth. It tracks every card it can pin to a location: its own
// deal, one card per opponent offer it has peeked, and opponent initial
// holdings inferred from their sales. A posterior over the twelve deck
// layouts turns those counts into a price.
type Fundamentalist struct {
	trader
	buyRatio float64

	hand    map[types.Suit]int            // own current holdings
	initial map[string]map[types.Suit]int // revealed initial holdings per player
	peeked  map[string]map[types.Suit]bool
	bought  map[string]map[types.Suit]int // cards bought during trading per opponent
	weights map[layout]float64
	ticking bool
}

// FundamentalistConfig tunes a Fundamentalist. Zero fields select the
// defaults.
type FundamentalistConfig struct {
	Aggression float64 // probability of acting each tick, default 0.5
	BuyRatio   float64 // pot share decay per held card, greater than 1, default 1.7
}

// NewFundamentalist attaches a fundamentalist to conn. Ticks begin only
// once the deal is known; see handleStart.
func NewFundamentalist(conn Conn, cfg FundamentalistConfig, rng *rand.Rand, logger *slog.Logger) *Fundamentalist {
	if cfg.Aggression == 0 {
		cfg.Aggression = 0.5
	}
	if cfg.BuyRatio == 0 {
		cfg.BuyRatio = 1.7
	}
	f := &Fundamentalist{
		trader: trader{
			conn:       conn,
			board:      newBoard(),
			rng:        rng,
			aggression: cfg.Aggression,
			logger:     logger.With("component", "fundamentalist", "player", conn.PlayerID()),
		},
		buyRatio: cfg.BuyRatio,
	}
	conn.OnStart(f.handleStart)
	conn.OnBid(f.handleBid)
	conn.OnOffer(f.handleOffer)
	conn.OnTransaction(f.handleTrade)
	conn.OnCancel(f.handleCancel)
	return f
}

// handleStart seeds the card count from the deal. Opponents start with
// nothing pinned down; peeks and trades fill them in.
func (f *Fundamentalist) handleStart(hand map[types.Suit]int, opponents []string) {
	f.hand = maps.Clone(hand)
	f.initial = map[string]map[types.Suit]int{f.conn.PlayerID(): maps.Clone(hand)}
	f.peeked = make(map[string]map[types.Suit]bool, len(opponents))
	f.bought = make(map[string]map[types.Suit]int, len(opponents))
	for _, id := range opponents {
		f.initial[id] = make(map[types.Suit]int, 4)
		f.peeked[id] = make(map[types.Suit]bool, 4)
		f.bought[id] = make(map[types.Suit]int, 4)
	}
	f.reweigh()
	if !f.ticking {
		f.ticking = true
		f.conn.OnTick(f.handleTick)
	}
}

func (f *Fundamentalist) handleTick(int) {
	if !f.acts() {
		return
	}
	side, suit := f.pickSide(), f.pickSuit()
	if side == types.Sell && f.hand[suit] == 0 {
		return
	}
	f.place(side, suit, f.expValue(suit, side))
}

func (f *Fundamentalist) handleBid(_ string, price int, suit types.Suit) {
	f.board.setBid(suit, price)
}

// handleOffer tracks the quote and peeks at the card behind it: an
// offer from an opponent with no bought cards of that suit must come
// from their dealt hand. Each opponent yields at most one peek per
// suit.
func (f *Fundamentalist) handleOffer(player string, price int, suit types.Suit) {
	f.board.setAsk(suit, price)
	suits, ok := f.peeked[player]
	if !ok {
		return
	}
	if f.bought[player][suit] > 0 {
		return
	}
	if !suits[suit] {
		suits[suit] = true
		f.reweigh()
	}
}

// handleTrade reassigns the traded card. An opponent's sale comes out
// of their bought cards first; past those it must be one more card of
// their deal, consuming any standing peek of that suit. The posterior
// is left alone here and catches up on the next peek.
func (f *Fundamentalist) handleTrade(buyer, seller string, _ int, suit types.Suit) {
	f.board.reset()
	if f.hand == nil {
		return
	}
	me := f.conn.PlayerID()
	if seller == me {
		f.hand[suit]--
	} else if b, ok := f.bought[seller]; ok {
		if b[suit] > 0 {
			b[suit]--
		} else {
			f.peeked[seller][suit] = false
			f.initial[seller][suit]++
		}
	}
	if buyer == me {
		f.hand[suit]++
	} else if b, ok := f.bought[buyer]; ok {
		b[suit]++
	}
}

func (f *Fundamentalist) handleCancel(side types.Side, _ string, _ int, _ string, newPrice int, suit types.Suit) {
	f.board.applyCancel(side, suit, newPrice)
}

// knownCards counts, per suit, the cards whose location is pinned down.
func (f *Fundamentalist) knownCards() map[types.Suit]int {
	seen := make(map[types.Suit]int, 4)
	for _, hand := range f.initial {
		for s, n := range hand {
			seen[s] += n
		}
	}
	for _, suits := range f.peeked {
		for s, yes := range suits {
			if yes {
				seen[s]++
			}
		}
	}
	return seen
}

// reweigh recomputes the posterior over deck layouts. Each layout is
// weighted by the number of ways the seen cards could have been drawn
// from it, the product over suits of C(deck[s], seen[s]). If the seen
// counts contradict every layout the previous posterior is kept.
func (f *Fundamentalist) reweigh() {
	seen := f.knownCards()
	weights := make(map[layout]float64, 12)
	var total float64
	for _, l := range layouts() {
		deck := l.deck()
		w := 1.0
		for _, s := range types.Suits() {
			if seen[s] > deck[s] {
				w = 0
				break
			}
			w *= choose(deck[s], seen[s])
		}
		weights[l] = w
		total += w
	}
	if total == 0 {
		return
	}
	for l, w := range weights {
		weights[l] = w / total
	}
	f.weights = weights
}

// expValue prices one card of suit. Only the three layouts that make
// suit the goal contribute; each adds its posterior weight times
// (10 + v), the per-card goal bonus plus the expected slice of the pot
// from holding one card more:
//
//	x = cards for a pot majority (5 in an 8-card suit, else 6)
//	p = pot payout net of bonuses (120 or 100)
//	a = p(1-r) / (1 - r^x)       r = buy ratio
//	v = r^held * a               0 once held >= x
//
// Sells price the card being parted with, one step shallower. The
// result is floored at 1.
func (f *Fundamentalist) expValue(suit types.Suit, side types.Side) int {
	held := f.hand[suit]
	if side == types.Sell {
		held--
	}
	twelve := suit.Companion()
	var res float64
	for _, eight := range types.Suits() {
		if eight == twelve {
			continue
		}
		m := f.weights[layout{twelve: twelve, eight: eight}]
		x, p := 6, 100.0
		if eight == suit {
			x, p = 5, 120.0
		}
		v := 0.0
		if held < x {
			a := p * (1 - f.buyRatio) / (1 - math.Pow(f.buyRatio, float64(x)))
			v = math.Pow(f.buyRatio, float64(held)) * a
		}
		res += m * (10 + v)
	}
	out := int(math.Round(res))
	if out < 1 {
		return 1
	}
	return out
}

// choose is the binomial coefficient C(n, k) as a float.
func choose(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	out := 1.0
	for i := 0; i < k; i++ {
		out = out * float64(n-i) / float64(i+1)
	}
	return out
}

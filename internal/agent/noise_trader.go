package agent

import (
	"log/slog"
	"math"
	"math/rand"

	"figgie-server/pkg/types"
)

// NoiseTrader trades on randomness alone. Each acting tick it values a
// suit at the visible best bid scattered with lognormal noise, falling
// back to a fixed default when no bid is in sight.
type NoiseTrader struct {
	trader
	defaultVal int
	sigma      float64
}

// NoiseConfig tunes a NoiseTrader. Zero fields select the defaults.
type NoiseConfig struct {
	Aggression float64 // probability of acting each tick, default 0.5
	DefaultVal int     // card value assumed with no visible bid, default 7
	Sigma      float64 // lognormal noise scale, default 1.0
}

// NewNoiseTrader attaches a noise trader to conn.
func NewNoiseTrader(conn Conn, cfg NoiseConfig, rng *rand.Rand, logger *slog.Logger) *NoiseTrader {
	if cfg.Aggression == 0 {
		cfg.Aggression = 0.5
	}
	if cfg.DefaultVal == 0 {
		cfg.DefaultVal = 7
	}
	if cfg.Sigma == 0 {
		cfg.Sigma = 1.0
	}
	n := &NoiseTrader{
		trader: trader{
			conn:       conn,
			board:      newBoard(),
			rng:        rng,
			aggression: cfg.Aggression,
			logger:     logger.With("component", "noise-trader", "player", conn.PlayerID()),
		},
		defaultVal: cfg.DefaultVal,
		sigma:      cfg.Sigma,
	}
	conn.OnTick(n.handleTick)
	conn.OnBid(n.handleBid)
	conn.OnOffer(n.handleOffer)
	conn.OnTransaction(n.handleTrade)
	conn.OnCancel(n.handleCancel)
	return n
}

func (n *NoiseTrader) handleTick(int) {
	if !n.acts() {
		return
	}
	side, suit := n.pickSide(), n.pickSuit()
	v := n.defaultVal
	if bid, ok := n.board.bid(suit); ok {
		v = noisy(n.rng, bid, n.sigma)
	}
	n.place(side, suit, v)
}

func (n *NoiseTrader) handleBid(_ string, price int, suit types.Suit) {
	n.board.setBid(suit, price)
}

func (n *NoiseTrader) handleOffer(_ string, price int, suit types.Suit) {
	n.board.setAsk(suit, price)
}

func (n *NoiseTrader) handleTrade(_, _ string, _ int, _ types.Suit) {
	n.board.reset()
}

func (n *NoiseTrader) handleCancel(side types.Side, _ string, _ int, _ string, newPrice int, suit types.Suit) {
	n.board.applyCancel(side, suit, newPrice)
}

// noisy scatters multiplicative lognormal noise over v, floored at 1.
func noisy(rng *rand.Rand, v int, sigma float64) int {
	out := int(math.Round(float64(v) * math.Exp(rng.NormFloat64()*sigma)))
	if out < 1 {
		return 1
	}
	return out
}

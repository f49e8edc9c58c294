// Package agent implements the trading strategies run against the game
// server: a noise trader, a Bayesian fundamentalist, and a bottom
// feeder, following the agent models studied in
// https://arxiv.org/pdf/2110.00879.
//
// Strategies attach to a client connection and live entirely in its
// callbacks; they keep no goroutines of their own. The client fires
// callbacks sequentially from its polling goroutine, so strategy state
// needs no locking.
//
// All three share one trading reflex. On each tick they act with
// probability aggression, pick a random side and suit, and derive a
// value v for one card of that suit. Bids draw uniformly from [1, v],
// offers from [v, 2v], and either is clipped against the opposing best
// quote so a crossing draw strikes the resting order at its own price.
// The strategies differ only in where v comes from.
package agent

import (
	"log/slog"
	"math/rand"

	"figgie-server/pkg/types"
)

// Conn is the slice of the client API the strategies drive. It is
// satisfied by *client.Client.
type Conn interface {
	PlayerID() string
	OnTick(fn func(timeLeft int))
	OnStart(fn func(hand map[types.Suit]int, opponents []string))
	OnBid(fn func(player string, price int, suit types.Suit))
	OnOffer(fn func(player string, price int, suit types.Suit))
	OnTransaction(fn func(buyer, seller string, price int, suit types.Suit))
	OnCancel(fn func(side types.Side, oldPlayer string, oldPrice int, newPlayer string, newPrice int, suit types.Suit))
	Bid(price int, suit types.Suit) (*types.ActionResult, error)
	Offer(price int, suit types.Suit) (*types.ActionResult, error)
}

// trader carries what every strategy needs: the connection, a private
// view of the book, and the dice.
type trader struct {
	conn       Conn
	board      *board
	rng        *rand.Rand
	logger     *slog.Logger
	aggression float64
}

// acts rolls the aggression gate for one tick.
func (t *trader) acts() bool {
	return t.rng.Float64() < t.aggression
}

func (t *trader) pickSide() types.Side {
	if t.rng.Intn(2) == 0 {
		return types.Buy
	}
	return types.Sell
}

func (t *trader) pickSuit() types.Suit {
	suits := types.Suits()
	return suits[t.rng.Intn(len(suits))]
}

// place prices an order around value v and submits it. The chosen price
// is recorded on the board before submission, so the strategy sees its
// own quote immediately. Rejections are logged and swallowed; the round
// goes on.
func (t *trader) place(side types.Side, suit types.Suit, v int) {
	if v < 1 {
		return
	}
	var price int
	if side == types.Buy {
		price = 1 + t.rng.Intn(v)
		if ask, ok := t.board.ask(suit); ok && ask < price {
			price = ask
		}
		t.board.setBid(suit, price)
	} else {
		price = v + t.rng.Intn(v+1)
		if bid, ok := t.board.bid(suit); ok && bid > price {
			price = bid
		}
		t.board.setAsk(suit, price)
	}
	t.logger.Debug("placing order", "side", side, "suit", suit, "price", price, "value", v)
	var err error
	if side == types.Buy {
		_, err = t.conn.Bid(price, suit)
	} else {
		_, err = t.conn.Offer(price, suit)
	}
	if err != nil {
		t.logger.Debug("order rejected", "error", err)
	}
}

// board is a strategy's private view of the top of book, fed by its
// callbacks. Own orders are recorded on it too, so it can run ahead of
// what the server has confirmed.
type board struct {
	bids map[types.Suit]int
	asks map[types.Suit]int
}

func newBoard() *board {
	return &board{
		bids: make(map[types.Suit]int),
		asks: make(map[types.Suit]int),
	}
}

func (b *board) bid(suit types.Suit) (int, bool) {
	p, ok := b.bids[suit]
	return p, ok
}

func (b *board) ask(suit types.Suit) (int, bool) {
	p, ok := b.asks[suit]
	return p, ok
}

func (b *board) setBid(suit types.Suit, price int) { b.bids[suit] = price }
func (b *board) setAsk(suit types.Suit, price int) { b.asks[suit] = price }

// reset wipes both sides. Strategies call it after every trade.
func (b *board) reset() {
	clear(b.bids)
	clear(b.asks)
}

// applyCancel reprices one side from a cancel callback. A zero price
// means the side is now empty.
func (b *board) applyCancel(side types.Side, suit types.Suit, newPrice int) {
	m := b.bids
	if side == types.Sell {
		m = b.asks
	}
	if newPrice > 0 {
		m[suit] = newPrice
		return
	}
	delete(m, suit)
}

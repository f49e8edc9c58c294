package game

import (
	"fmt"

	"figgie-server/pkg/types"
)

// Book is the top of book for one suit: at most a single resting order per
// side. An incoming order either strikes the opposite side at the resting
// price, displaces a strictly worse order on its own side, or is rejected
// as not improving.
type Book struct {
	suit types.Suit
	bid  *types.Order
	ask  *types.Order
}

// NewBook returns an empty book for the given suit.
func NewBook(suit types.Suit) *Book {
	return &Book{suit: suit}
}

// Best returns the resting order on the given side, or nil.
func (b *Book) Best(side types.Side) *types.Order {
	if side == types.Buy {
		return b.bid
	}
	return b.ask
}

// Crosses returns the resting counter-order an incoming order would strike,
// or nil when the order would not trade. A bid strikes an ask priced at or
// below it; an ask strikes a bid priced at or above it.
func (b *Book) Crosses(o types.Order) *types.Order {
	if o.Side == types.Buy {
		if b.ask != nil && b.ask.Price <= o.Price {
			return b.ask
		}
		return nil
	}
	if b.bid != nil && b.bid.Price >= o.Price {
		return b.bid
	}
	return nil
}

// Rest places an order on its side of the book. If that side is occupied,
// the incoming order must be strictly better (a higher bid, a lower ask);
// the displaced order is returned so the caller can announce the
// cancellation. A non-improving order is rejected with ErrNotImproving.
func (b *Book) Rest(o types.Order) (*types.Order, error) {
	slot := &b.bid
	if o.Side == types.Sell {
		slot = &b.ask
	}
	displaced := *slot
	if displaced != nil {
		if o.Side == types.Buy && o.Price <= displaced.Price {
			return nil, ErrNotImproving
		}
		if o.Side == types.Sell && o.Price >= displaced.Price {
			return nil, ErrNotImproving
		}
	}
	c := o
	*slot = &c
	return displaced, nil
}

// Remove pops and returns the resting order on the given side, or nil when
// the side is empty.
func (b *Book) Remove(side types.Side) *types.Order {
	var o *types.Order
	if side == types.Buy {
		o, b.bid = b.bid, nil
	} else {
		o, b.ask = b.ask, nil
	}
	return o
}

// Quotes reports the book as the public market view: prices and owners of
// the resting orders, without order ids.
func (b *Book) Quotes() types.SuitMarket {
	var m types.SuitMarket
	if b.bid != nil {
		m.HighestBid = &types.Quote{PlayerID: b.bid.Owner, Price: b.bid.Price}
	}
	if b.ask != nil {
		m.LowestAsk = &types.Quote{PlayerID: b.ask.Owner, Price: b.ask.Price}
	}
	return m
}

// wellFormed checks the book's structural invariants: orders sit on the
// side they were placed for, carry positive prices, match the book's suit,
// and a bid never rests at or above the ask.
func (b *Book) wellFormed() error {
	for _, o := range []*types.Order{b.bid, b.ask} {
		if o == nil {
			continue
		}
		if o.Suit != b.suit {
			return fmt.Errorf("book %s holds order for suit %s", b.suit, o.Suit)
		}
		if o.Price <= 0 {
			return fmt.Errorf("book %s holds order at non-positive price %d", b.suit, o.Price)
		}
	}
	if b.bid != nil && b.bid.Side != types.Buy {
		return fmt.Errorf("book %s bid slot holds a %s order", b.suit, b.bid.Side)
	}
	if b.ask != nil && b.ask.Side != types.Sell {
		return fmt.Errorf("book %s ask slot holds a %s order", b.suit, b.ask.Side)
	}
	if b.bid != nil && b.ask != nil && b.bid.Price >= b.ask.Price {
		return fmt.Errorf("book %s is crossed: bid %d >= ask %d", b.suit, b.bid.Price, b.ask.Price)
	}
	return nil
}

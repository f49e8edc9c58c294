package game

import (
	"errors"
	"testing"

	"figgie-server/pkg/types"
)

func order(id, owner string, side types.Side, price int) types.Order {
	return types.Order{OrderID: id, Owner: owner, Side: side, Suit: types.Spades, Price: price}
}

func TestRestAndQuotes(t *testing.T) {
	t.Parallel()
	b := NewBook(types.Spades)

	if displaced, err := b.Rest(order("o1", "alice", types.Buy, 5)); err != nil || displaced != nil {
		t.Fatalf("Rest on empty book: displaced=%v err=%v", displaced, err)
	}
	if displaced, err := b.Rest(order("o2", "bob", types.Sell, 9)); err != nil || displaced != nil {
		t.Fatalf("Rest ask on empty side: displaced=%v err=%v", displaced, err)
	}

	q := b.Quotes()
	if q.HighestBid == nil || q.HighestBid.PlayerID != "alice" || q.HighestBid.Price != 5 {
		t.Errorf("HighestBid = %+v, want alice@5", q.HighestBid)
	}
	if q.LowestAsk == nil || q.LowestAsk.PlayerID != "bob" || q.LowestAsk.Price != 9 {
		t.Errorf("LowestAsk = %+v, want bob@9", q.LowestAsk)
	}
}

func TestRestDisplacesStrictlyBetter(t *testing.T) {
	t.Parallel()
	b := NewBook(types.Spades)

	_, _ = b.Rest(order("o1", "alice", types.Buy, 5))
	displaced, err := b.Rest(order("o2", "bob", types.Buy, 6))
	if err != nil {
		t.Fatalf("Rest improving bid: %v", err)
	}
	if displaced == nil || displaced.OrderID != "o1" {
		t.Fatalf("displaced = %+v, want o1", displaced)
	}
	if best := b.Best(types.Buy); best.OrderID != "o2" || best.Price != 6 {
		t.Errorf("Best(Buy) = %+v, want o2@6", best)
	}

	_, _ = b.Rest(order("o3", "carol", types.Sell, 9))
	displaced, err = b.Rest(order("o4", "dave", types.Sell, 8))
	if err != nil {
		t.Fatalf("Rest improving ask: %v", err)
	}
	if displaced == nil || displaced.OrderID != "o3" {
		t.Fatalf("displaced = %+v, want o3", displaced)
	}
}

func TestRestRejectsNotImproving(t *testing.T) {
	t.Parallel()
	b := NewBook(types.Spades)
	_, _ = b.Rest(order("o1", "alice", types.Buy, 5))
	_, _ = b.Rest(order("o2", "bob", types.Sell, 9))

	tests := []struct {
		name string
		o    types.Order
	}{
		{"equal bid", order("x1", "carol", types.Buy, 5)},
		{"lower bid", order("x2", "carol", types.Buy, 4)},
		{"equal ask", order("x3", "carol", types.Sell, 9)},
		{"higher ask", order("x4", "carol", types.Sell, 10)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := b.Rest(tt.o); !errors.Is(err, ErrNotImproving) {
				t.Errorf("Rest(%+v) err = %v, want ErrNotImproving", tt.o, err)
			}
		})
	}
}

func TestCrosses(t *testing.T) {
	t.Parallel()
	b := NewBook(types.Spades)
	_, _ = b.Rest(order("bid", "alice", types.Buy, 5))
	_, _ = b.Rest(order("ask", "bob", types.Sell, 9))

	tests := []struct {
		name string
		o    types.Order
		want string // order id of the struck counter-order, "" for none
	}{
		{"bid below ask", order("i1", "carol", types.Buy, 8), ""},
		{"bid at ask", order("i2", "carol", types.Buy, 9), "ask"},
		{"bid above ask", order("i3", "carol", types.Buy, 11), "ask"},
		{"ask above bid", order("i4", "carol", types.Sell, 6), ""},
		{"ask at bid", order("i5", "carol", types.Sell, 5), "bid"},
		{"ask below bid", order("i6", "carol", types.Sell, 2), "bid"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			counter := b.Crosses(tt.o)
			got := ""
			if counter != nil {
				got = counter.OrderID
			}
			if got != tt.want {
				t.Errorf("Crosses(%+v) = %q, want %q", tt.o, got, tt.want)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	b := NewBook(types.Spades)
	_, _ = b.Rest(order("o1", "alice", types.Buy, 5))

	if got := b.Remove(types.Buy); got == nil || got.OrderID != "o1" {
		t.Fatalf("Remove(Buy) = %+v, want o1", got)
	}
	if got := b.Remove(types.Buy); got != nil {
		t.Errorf("second Remove(Buy) = %+v, want nil", got)
	}
	if q := b.Quotes(); q.HighestBid != nil {
		t.Errorf("HighestBid after remove = %+v, want nil", q.HighestBid)
	}
}

func TestWellFormedCatchesCrossedBook(t *testing.T) {
	t.Parallel()
	b := NewBook(types.Spades)
	_, _ = b.Rest(order("o1", "alice", types.Buy, 5))
	_, _ = b.Rest(order("o2", "bob", types.Sell, 9))

	if err := b.wellFormed(); err != nil {
		t.Fatalf("wellFormed on valid book: %v", err)
	}

	b.ask.Price = 5 // force bid >= ask
	if err := b.wellFormed(); err == nil {
		t.Error("wellFormed should reject a crossed book")
	}
}

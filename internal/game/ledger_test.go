package game

import (
	"testing"

	"figgie-server/pkg/types"
)

// newTestLedger seats four players and hands them a fixed deal so tests
// can reason about exact balances and counts.
func newTestLedger() *Ledger {
	l := NewLedger()
	for _, id := range []string{"a", "b", "c", "d"} {
		l.AddPlayer(id, "player "+id)
	}
	l.ApplyDeal(Deal{
		SuitCounts: map[types.Suit]int{
			types.Spades: 12, types.Clubs: 8, types.Hearts: 10, types.Diamonds: 10,
		},
		GoalSuit: types.Clubs,
		Hands: map[string]map[types.Suit]int{
			"a": {types.Spades: 3, types.Clubs: 2, types.Hearts: 3, types.Diamonds: 2},
			"b": {types.Spades: 3, types.Clubs: 2, types.Hearts: 2, types.Diamonds: 3},
			"c": {types.Spades: 3, types.Clubs: 2, types.Hearts: 3, types.Diamonds: 2},
			"d": {types.Spades: 3, types.Clubs: 2, types.Hearts: 2, types.Diamonds: 3},
		},
	})
	l.AnteAll(PotSize / 4)
	l.SnapshotInitial()
	return l
}

func TestLedgerAnteAll(t *testing.T) {
	t.Parallel()
	l := newTestLedger()

	if l.Pot() != PotSize {
		t.Errorf("pot = %d, want %d", l.Pot(), PotSize)
	}
	for _, id := range l.Seats() {
		if got := l.Balance(id); got != StartingBalance-PotSize/4 {
			t.Errorf("balance[%s] = %d, want %d", id, got, StartingBalance-PotSize/4)
		}
	}
	if got := l.MoneyTotal(); got != 4*StartingBalance {
		t.Errorf("money total = %d, want %d", got, 4*StartingBalance)
	}
}

func TestLedgerTransfer(t *testing.T) {
	t.Parallel()
	l := newTestLedger()

	l.Transfer(types.Trade{Buyer: "a", Seller: "b", Price: 7, Suit: types.Hearts})

	if got := l.Balance("a"); got != 293 {
		t.Errorf("buyer balance = %d, want 293", got)
	}
	if got := l.Balance("b"); got != 307 {
		t.Errorf("seller balance = %d, want 307", got)
	}
	if got := l.Hand("a")[types.Hearts]; got != 4 {
		t.Errorf("buyer hearts = %d, want 4", got)
	}
	if got := l.Hand("b")[types.Hearts]; got != 1 {
		t.Errorf("seller hearts = %d, want 1", got)
	}

	trades := l.Trades()
	if len(trades) != 1 || trades[0].Price != 7 || trades[0].Suit != types.Hearts {
		t.Errorf("trade log = %+v, want one hearts trade at 7", trades)
	}
	if got := l.MoneyTotal(); got != 4*StartingBalance {
		t.Errorf("money total after trade = %d, want %d", got, 4*StartingBalance)
	}
	if got := l.SuitTotals()[types.Hearts]; got != 10 {
		t.Errorf("hearts total after trade = %d, want 10", got)
	}
}

func TestLedgerCanFundAndDeliver(t *testing.T) {
	t.Parallel()
	l := newTestLedger()

	if !l.CanFund("a", 300) {
		t.Error("CanFund at exact balance should hold")
	}
	if l.CanFund("a", 301) {
		t.Error("CanFund above balance should not hold")
	}
	if !l.CanDeliver("a", types.Clubs) {
		t.Error("CanDeliver with cards in hand should hold")
	}

	l.Transfer(types.Trade{Buyer: "b", Seller: "a", Price: 1, Suit: types.Clubs})
	l.Transfer(types.Trade{Buyer: "b", Seller: "a", Price: 1, Suit: types.Clubs})
	if l.CanDeliver("a", types.Clubs) {
		t.Error("CanDeliver with empty suit should not hold")
	}
}

func TestLedgerSnapshotsAreFrozen(t *testing.T) {
	t.Parallel()
	l := newTestLedger()

	l.Transfer(types.Trade{Buyer: "a", Seller: "b", Price: 50, Suit: types.Spades})

	if got := l.InitialBalances()["a"]; got != 300 {
		t.Errorf("initial balance = %d, want 300 despite later trade", got)
	}
	if got := l.InitialHands()["a"][types.Spades]; got != 3 {
		t.Errorf("initial spades = %d, want 3 despite later trade", got)
	}

	// Mutating returned copies must not leak back in.
	l.InitialBalances()["a"] = 0
	l.Hand("a")[types.Spades] = 99
	if got := l.InitialBalances()["a"]; got != 300 {
		t.Errorf("initial balance after copy mutation = %d, want 300", got)
	}
	if got := l.Hand("a")[types.Spades]; got != 4 {
		t.Errorf("hand after copy mutation = %d, want 4", got)
	}
}

func TestLedgerApplySettlement(t *testing.T) {
	t.Parallel()
	l := newTestLedger()

	res := types.Results{
		GoalSuit:  types.Clubs,
		Counts:    map[string]int{"a": 2, "b": 2, "c": 2, "d": 2},
		Bonuses:   map[string]int{"a": 20, "b": 20, "c": 20, "d": 20},
		Winners:   []string{"a", "b", "c", "d"},
		ShareEach: 30,
		Residue:   0,
	}
	l.ApplySettlement(res)

	for _, id := range l.Seats() {
		if got := l.Balance(id); got != 350 {
			t.Errorf("balance[%s] = %d, want 350", id, got)
		}
	}
	if l.Pot() != 0 {
		t.Errorf("pot after settlement = %d, want 0", l.Pot())
	}
	if got := l.MoneyTotal(); got != 4*StartingBalance {
		t.Errorf("money total after settlement = %d, want %d", got, 4*StartingBalance)
	}
}

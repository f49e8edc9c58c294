package game

import "figgie-server/pkg/types"

// Player is one seat at the table. Hand stays empty until the deal; from
// then on it always carries all four suit keys.
type Player struct {
	ID      string
	Name    string
	Balance int
	Hand    map[types.Suit]int
}

// Ledger tracks who holds what: seats in join order, balances, hands, the
// pot, the trade log, and the post-ante snapshots reported at settlement.
// It is not safe for concurrent use; the engine serializes access.
type Ledger struct {
	players map[string]*Player
	seats   []string
	pot     int
	trades  []types.Trade

	initialBalances map[string]int
	initialHands    map[string]map[types.Suit]int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{players: make(map[string]*Player)}
}

// AddPlayer seats a player with the starting balance and an empty hand.
func (l *Ledger) AddPlayer(id, name string) {
	l.players[id] = &Player{
		ID:      id,
		Name:    name,
		Balance: StartingBalance,
		Hand:    map[types.Suit]int{},
	}
	l.seats = append(l.seats, id)
}

// Has reports whether id is seated.
func (l *Ledger) Has(id string) bool {
	_, ok := l.players[id]
	return ok
}

// Count returns the number of seated players.
func (l *Ledger) Count() int { return len(l.seats) }

// Seats returns the player ids in join order.
func (l *Ledger) Seats() []string {
	out := make([]string, len(l.seats))
	copy(out, l.seats)
	return out
}

// Names returns the id-to-name map of all seated players.
func (l *Ledger) Names() map[string]string {
	out := make(map[string]string, len(l.players))
	for id, p := range l.players {
		out[id] = p.Name
	}
	return out
}

// Pot returns the undistributed pot.
func (l *Ledger) Pot() int { return l.pot }

// Balance returns the player's current balance.
func (l *Ledger) Balance(id string) int { return l.players[id].Balance }

// ApplyDeal installs the dealt hands.
func (l *Ledger) ApplyDeal(d Deal) {
	for id, hand := range d.Hands {
		l.players[id].Hand = copyHand(hand)
	}
}

// AnteAll collects perPlayer from every seat into the pot.
func (l *Ledger) AnteAll(perPlayer int) {
	for _, p := range l.players {
		p.Balance -= perPlayer
		l.pot += perPlayer
	}
}

// SnapshotInitial records the post-ante balances and dealt hands. These
// are what settlement reports as the round's starting point.
func (l *Ledger) SnapshotInitial() {
	l.initialBalances = l.BalancesCopy()
	l.initialHands = l.HandsCopy()
}

// CanFund reports whether the player can pay price without going negative.
func (l *Ledger) CanFund(id string, price int) bool {
	return l.players[id].Balance >= price
}

// CanDeliver reports whether the player holds at least one card of suit.
func (l *Ledger) CanDeliver(id string, suit types.Suit) bool {
	return l.players[id].Hand[suit] >= 1
}

// Transfer moves the money and the card and appends to the trade log.
// Feasibility must have been checked by the caller.
func (l *Ledger) Transfer(t types.Trade) {
	l.players[t.Buyer].Balance -= t.Price
	l.players[t.Seller].Balance += t.Price
	l.players[t.Buyer].Hand[t.Suit]++
	l.players[t.Seller].Hand[t.Suit]--
	l.trades = append(l.trades, t)
}

// ApplySettlement pays bonuses and pot shares out of the pot. Afterwards
// the pot holds exactly the settlement residue.
func (l *Ledger) ApplySettlement(res types.Results) {
	for id, bonus := range res.Bonuses {
		l.players[id].Balance += bonus
		l.pot -= bonus
	}
	for _, id := range res.Winners {
		l.players[id].Balance += res.ShareEach
		l.pot -= res.ShareEach
	}
}

// Trades returns a copy of the trade log in execution order.
func (l *Ledger) Trades() []types.Trade {
	out := make([]types.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Hand returns a copy of the player's hand.
func (l *Ledger) Hand(id string) map[types.Suit]int {
	return copyHand(l.players[id].Hand)
}

// BalancesCopy returns a copy of all current balances.
func (l *Ledger) BalancesCopy() map[string]int {
	out := make(map[string]int, len(l.players))
	for id, p := range l.players {
		out[id] = p.Balance
	}
	return out
}

// HandsCopy returns a copy of all current hands.
func (l *Ledger) HandsCopy() map[string]map[types.Suit]int {
	out := make(map[string]map[types.Suit]int, len(l.players))
	for id, p := range l.players {
		out[id] = copyHand(p.Hand)
	}
	return out
}

// InitialBalances returns the post-ante balance snapshot, or nil before
// the round started.
func (l *Ledger) InitialBalances() map[string]int {
	if l.initialBalances == nil {
		return nil
	}
	out := make(map[string]int, len(l.initialBalances))
	for id, b := range l.initialBalances {
		out[id] = b
	}
	return out
}

// InitialHands returns the dealt-hand snapshot, or nil before the round
// started.
func (l *Ledger) InitialHands() map[string]map[types.Suit]int {
	if l.initialHands == nil {
		return nil
	}
	out := make(map[string]map[types.Suit]int, len(l.initialHands))
	for id, hand := range l.initialHands {
		out[id] = copyHand(hand)
	}
	return out
}

// MoneyTotal returns balances plus pot, the conserved money quantity.
func (l *Ledger) MoneyTotal() int {
	total := l.pot
	for _, p := range l.players {
		total += p.Balance
	}
	return total
}

// SuitTotals returns how many cards of each suit all hands hold together.
func (l *Ledger) SuitTotals() map[types.Suit]int {
	out := make(map[types.Suit]int, 4)
	for _, p := range l.players {
		for s, n := range p.Hand {
			out[s] += n
		}
	}
	return out
}

func copyHand(hand map[types.Suit]int) map[types.Suit]int {
	out := make(map[types.Suit]int, len(hand))
	for s, n := range hand {
		out[s] = n
	}
	return out
}

package game

import (
	"math/rand"

	"figgie-server/pkg/types"
)

const (
	// StartingBalance is each player's bankroll at the top of a round,
	// before the ante is collected.
	StartingBalance = 350

	// PotSize is the total ante collected per round. The per-player ante
	// is PotSize divided by the table size, so the pot is the same
	// regardless of how many players are seated.
	PotSize = 200

	// BonusPerCard is paid from the pot for every goal-suit card held at
	// settlement.
	BonusPerCard = 10

	// DeckSize is fixed: 8 + 10 + 10 + 12 cards across the four suits.
	DeckSize = 40

	// TimeScale is the unit the remaining-time field is reported in.
	// Regardless of the configured round length, clients see a countdown
	// from TimeScale to 0.
	TimeScale = 240
)

// suitDistribution is the multiset of per-suit card counts. Which suit
// gets which count is decided by the shuffle in NewDeal.
var suitDistribution = [4]int{8, 10, 10, 12}

// Deal is the hidden setup of one round: how many cards of each suit are
// in the deck, which suit pays out, and what every player was dealt.
type Deal struct {
	SuitCounts map[types.Suit]int
	GoalSuit   types.Suit
	Hands      map[string]map[types.Suit]int
}

// NewDeal assigns the per-suit counts at random, derives the goal suit,
// shuffles the deck, and deals it round-robin so every player receives
// DeckSize/len(playerIDs) cards. The goal suit is the same-color partner
// of whichever suit got twelve cards, so it always holds eight or ten.
func NewDeal(playerIDs []string, rng *rand.Rand) Deal {
	suits := types.Suits()

	counts := suitDistribution
	rng.Shuffle(len(counts), func(i, j int) {
		counts[i], counts[j] = counts[j], counts[i]
	})

	d := Deal{
		SuitCounts: make(map[types.Suit]int, len(suits)),
		Hands:      make(map[string]map[types.Suit]int, len(playerIDs)),
	}
	for i, s := range suits {
		d.SuitCounts[s] = counts[i]
		if counts[i] == 12 {
			d.GoalSuit = s.Companion()
		}
	}

	deck := make([]types.Suit, 0, DeckSize)
	for _, s := range suits {
		for i := 0; i < d.SuitCounts[s]; i++ {
			deck = append(deck, s)
		}
	}
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	for _, id := range playerIDs {
		hand := make(map[types.Suit]int, len(suits))
		for _, s := range suits {
			hand[s] = 0
		}
		d.Hands[id] = hand
	}

	perPlayer := DeckSize / len(playerIDs)
	for i := 0; i < perPlayer; i++ {
		for _, id := range playerIDs {
			card := deck[len(deck)-1]
			deck = deck[:len(deck)-1]
			d.Hands[id][card]++
		}
	}
	return d
}

package game

import "figgie-server/pkg/types"

// Settle computes the payout of a round from the final hands and the pot.
// Every goal-suit card pays BonusPerCard from the pot; whatever is left
// after bonuses is split evenly, in whole dollars, among the players
// holding the most goal-suit cards. The indivisible residue stays in the
// pot and is reported so the books still balance.
func Settle(seats []string, hands map[string]map[types.Suit]int, pot int, goal types.Suit) types.Results {
	res := types.Results{
		GoalSuit: goal,
		Counts:   make(map[string]int, len(seats)),
		Bonuses:  make(map[string]int, len(seats)),
	}

	remainder := pot
	top := 0
	for _, id := range seats {
		n := hands[id][goal]
		res.Counts[id] = n
		res.Bonuses[id] = n * BonusPerCard
		remainder -= n * BonusPerCard
		if n > top {
			top = n
		}
	}

	for _, id := range seats {
		if res.Counts[id] == top {
			res.Winners = append(res.Winners, id)
		}
	}

	res.ShareEach = remainder / len(res.Winners)
	res.Residue = remainder - res.ShareEach*len(res.Winners)
	return res
}

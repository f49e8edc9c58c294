package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"

	"figgie-server/pkg/types"
)

// Report is one finished game with its settlement, assembled from the
// final snapshot.
type Report struct {
	Server     string       `json:"server"`
	FinishedAt time.Time    `json:"finished_at"`
	GoalSuit   types.Suit   `json:"goal_suit"`
	ShareEach  int          `json:"share_each"`
	Residue    int          `json:"residue"`
	Players    []PlayerLine `json:"players"`
}

// PlayerLine is one player's settlement, ordered by final balance.
type PlayerLine struct {
	PlayerID  string `json:"player_id"`
	Name      string `json:"name"`
	GoalCards int    `json:"goal_cards"`
	Bonus     int    `json:"bonus"`
	PotShare  int    `json:"pot_share"`
	Balance   int    `json:"balance"`
}

// BuildReport folds a completed snapshot into a Report. names maps
// player IDs to display names; IDs without an entry keep the raw ID.
func BuildReport(server string, st *types.StateSnapshot, names map[string]string) (*Report, error) {
	if st == nil || st.Results == nil {
		return nil, fmt.Errorf("snapshot has no results")
	}
	res := st.Results
	shares := make(map[string]int, len(res.Winners))
	for _, id := range res.Winners {
		shares[id] = res.ShareEach
	}
	r := &Report{
		Server:     server,
		FinishedAt: time.Now().UTC(),
		GoalSuit:   res.GoalSuit,
		ShareEach:  res.ShareEach,
		Residue:    res.Residue,
	}
	for id, balance := range st.Balances {
		name := names[id]
		if name == "" {
			name = id
		}
		r.Players = append(r.Players, PlayerLine{
			PlayerID:  id,
			Name:      name,
			GoalCards: res.Counts[id],
			Bonus:     res.Bonuses[id],
			PotShare:  shares[id],
			Balance:   balance,
		})
	}
	sort.Slice(r.Players, func(i, j int) bool {
		if r.Players[i].Balance != r.Players[j].Balance {
			return r.Players[i].Balance > r.Players[j].Balance
		}
		return r.Players[i].Name < r.Players[j].Name
	})
	return r, nil
}

// RenderTable writes the settlement as a console table.
func RenderTable(w io.Writer, r *Report) {
	fmt.Fprintf(w, "goal suit: %s   pot share: %d each", r.GoalSuit, r.ShareEach)
	if r.Residue > 0 {
		fmt.Fprintf(w, "   residue: %d", r.Residue)
	}
	fmt.Fprintln(w)

	tbl := tablewriter.NewWriter(w)
	tbl.Header("Player", "Goal Cards", "Bonus", "Pot Share", "Balance")
	for _, p := range r.Players {
		tbl.Append(
			p.Name,
			fmt.Sprintf("%d", p.GoalCards),
			fmt.Sprintf("%d", p.Bonus),
			fmt.Sprintf("%d", p.PotShare),
			fmt.Sprintf("%d", p.Balance),
		)
	}
	tbl.Render()
}

// WriteFile writes the report as JSON: to a .tmp file first, then
// renamed over the target so readers never see a partial report.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return os.Rename(tmp, path)
}

package game

import (
	"time"

	"figgie-server/pkg/types"
)

// Event kinds, as stored and logged.
const (
	EventRoundStarted   = "round_started"
	EventOrderRested    = "order_rested"
	EventCancel         = "cancel"
	EventTransaction    = "transaction"
	EventRoundCompleted = "round_completed"
	EventRoundFailed    = "round_failed"
)

// Cancel reasons carried on CancelEvent.
const (
	CancelRequested  = "requested"
	CancelDisplaced  = "displaced"
	CancelInfeasible = "infeasible"
)

// Event is one entry in a round's audit stream. Data holds the typed
// payload for the Kind.
type Event struct {
	Kind    string    `json:"kind"`
	RoundID string    `json:"round_id"`
	Time    time.Time `json:"time"`
	Data    any       `json:"data"`
}

// Sink consumes round events. Emit is called while the engine holds its
// lock, so implementations must not block; delivery is at-least-once.
type Sink interface {
	Emit(Event)
}

// RoundStartedEvent carries the full deal fingerprint: enough to replay
// the round from the event stream alone.
type RoundStartedEvent struct {
	Duration   int                           `json:"trading_duration"`
	Players    map[string]string             `json:"players"`
	Balances   map[string]int                `json:"balances"`
	SuitCounts map[types.Suit]int            `json:"suit_counts"`
	GoalSuit   types.Suit                    `json:"goal_suit"`
	Hands      map[string]map[types.Suit]int `json:"hands"`
}

// OrderRestedEvent records an order that reached the book.
type OrderRestedEvent struct {
	OrderID  string     `json:"order_id"`
	PlayerID string     `json:"player_id"`
	Side     types.Side `json:"order_type"`
	Suit     types.Suit `json:"suit"`
	Price    int        `json:"price"`
	TimeLeft int        `json:"time_left"`
}

// CancelEvent records a resting order leaving the book before it traded.
// NewPlayerID and NewPrice are set only when the order was displaced by a
// better one.
type CancelEvent struct {
	Side        types.Side `json:"order_type"`
	Suit        types.Suit `json:"suit"`
	OldPlayerID string     `json:"old_player_id"`
	OldPrice    int        `json:"old_price"`
	NewPlayerID string     `json:"new_player_id,omitempty"`
	NewPrice    int        `json:"new_price,omitempty"`
	Reason      string     `json:"reason"`
	TimeLeft    int        `json:"time_left"`
}

// TransactionEvent records an executed trade.
type TransactionEvent struct {
	Buyer    string     `json:"buyer"`
	Seller   string     `json:"seller"`
	Suit     types.Suit `json:"suit"`
	Price    int        `json:"price"`
	TimeLeft int        `json:"time_left"`
}

// RoundCompletedEvent records the settlement outcome.
type RoundCompletedEvent struct {
	Results  types.Results                 `json:"results"`
	Balances map[string]int                `json:"balances"`
	Hands    map[string]map[types.Suit]int `json:"hands"`
}

// RoundFailedEvent records a round abandoned after a consistency check
// failed. Emitted at most once per round.
type RoundFailedEvent struct {
	Reason string `json:"reason"`
}

// MultiSink fans each event out to every sink in order.
func MultiSink(sinks ...Sink) Sink { return multiSink(sinks) }

type multiSink []Sink

func (m multiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(Event) {}

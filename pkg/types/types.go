// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the Figgie server and its
// clients: suits, round phases, order and trade shapes, and the JSON
// payloads of the HTTP surface. It has no dependencies on internal
// packages, so it can be imported by any layer.
package types

import "encoding/json"

// Suit is one of the four card suits. The wire representation is the
// lowercase suit name.
type Suit string

const (
	Spades   Suit = "spades"
	Clubs    Suit = "clubs"
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"

	// AllSuits is the wildcard suit selector accepted by cancel requests.
	AllSuits Suit = "all"
)

// Suits returns the four suits in their canonical order.
func Suits() []Suit {
	return []Suit{Spades, Clubs, Hearts, Diamonds}
}

// Valid reports whether s names a real suit (the "all" wildcard is not one).
func (s Suit) Valid() bool {
	switch s {
	case Spades, Clubs, Hearts, Diamonds:
		return true
	}
	return false
}

// Companion returns the same-color counterpart of a suit:
// spades↔clubs and hearts↔diamonds.
func (s Suit) Companion() Suit {
	switch s {
	case Spades:
		return Clubs
	case Clubs:
		return Spades
	case Hearts:
		return Diamonds
	case Diamonds:
		return Hearts
	}
	return ""
}

// Side is the direction of an order. The wire representation matches the
// order_type field of action requests.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"

	// BothSides is the wildcard side selector accepted by cancel requests.
	BothSides Side = "both"
)

// Valid reports whether s is a placeable order side.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Phase is the round lifecycle state.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseTrading   Phase = "trading"
	PhaseCompleted Phase = "completed"

	// PhaseFailed is the terminal state entered when an internal
	// consistency check fails. It is reported by /status but never by
	// /state, which refuses reads on a failed round.
	PhaseFailed Phase = "failed"
)

// Order is a resting order on one side of a suit's book.
type Order struct {
	OrderID string `json:"order_id"`
	Owner   string `json:"player_id"`
	Side    Side   `json:"order_type"`
	Suit    Suit   `json:"suit"`
	Price   int    `json:"price"`
}

// Trade is one executed transaction. Trades execute at the resting
// order's price.
type Trade struct {
	Buyer  string `json:"buyer"`
	Seller string `json:"seller"`
	Price  int    `json:"price"`
	Suit   Suit   `json:"suit"`
}

// Quote is the visible half of a book side: who is quoting and at what
// price. Owners are exposed so agents can avoid lifting themselves.
type Quote struct {
	PlayerID string `json:"player_id"`
	Price    int    `json:"price"`
}

// SuitMarket is the top of book for one suit as shown in state snapshots.
// A nil side means no resting order.
type SuitMarket struct {
	HighestBid *Quote `json:"highest_bid"`
	LowestAsk  *Quote `json:"lowest_ask"`
}

// Results is the settlement outcome of a completed round.
type Results struct {
	GoalSuit  Suit           `json:"goal_suit"`
	Counts    map[string]int `json:"counts"`
	Bonuses   map[string]int `json:"bonuses"`
	Winners   []string       `json:"winners"`
	ShareEach int            `json:"share_each"`
	Residue   int            `json:"residue"`
}

// StateSnapshot is the per-player view returned by GET /state. It is a
// deep copy of engine state: mutating it never affects the round.
type StateSnapshot struct {
	State    Phase               `json:"state"`
	TimeLeft *int                `json:"time_left"`
	Pot      int                 `json:"pot"`
	Hand     map[Suit]int        `json:"hand"`
	Market   map[Suit]SuitMarket `json:"market"`
	Balances map[string]int      `json:"balances"`
	Trades   []Trade             `json:"trades"`

	// Populated only when State is completed.
	Results         *Results                `json:"results,omitempty"`
	Hands           map[string]map[Suit]int `json:"hands,omitempty"`
	InitialBalances map[string]int          `json:"initial_balances,omitempty"`
}

// JoinRequest is the body of POST /join.
type JoinRequest struct {
	Name string `json:"name"`
}

// JoinResponse is the success body of POST /join.
type JoinResponse struct {
	PlayerID string `json:"player_id"`
}

// ActionRequest is the body of POST /action, covering both order placement
// and bulk cancellation. Price is kept raw so that missing, fractional, and
// non-numeric values all survive body decoding and fail action-specific
// validation instead.
type ActionRequest struct {
	PlayerID   string          `json:"player_id"`
	ActionType string          `json:"action_type"`
	OrderType  Side            `json:"order_type"`
	Suit       Suit            `json:"suit"`
	Price      json.RawMessage `json:"price,omitempty"`
}

const (
	ActionOrder  = "order"
	ActionCancel = "cancel"
)

// ActionResult is the outcome of an accepted action. Exactly one of the
// three shapes is populated: OrderID when the order rested, Trade when it
// matched, Canceled (non-nil, possibly empty) for cancel requests.
type ActionResult struct {
	OrderID  string
	Trade    *Trade
	Canceled []string
}

// ServerStatus is the unauthenticated GET /status payload used by
// dispatchers to decide whether a server can host a fresh game.
type ServerStatus struct {
	State           Phase `json:"state"`
	CurrentPlayers  int   `json:"current_players"`
	NumPlayers      int   `json:"num_players"`
	TradingDuration int   `json:"trading_duration"`
}

// ErrorResponse is the uniform error envelope; every client-facing error
// is HTTP 400 with this body.
type ErrorResponse struct {
	Error string `json:"error"`
}

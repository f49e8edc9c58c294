package game

import "errors"

// Rejection errors returned by round operations. The texts are wire-format:
// the transport returns them verbatim inside the HTTP 400 error envelope,
// so changing one is a protocol change.
var (
	ErrNameRequired      = errors.New("Name is required")
	ErrCannotJoin        = errors.New("Cannot join right now")
	ErrGameFull          = errors.New("Game is full")
	ErrUnknownPlayer     = errors.New("Invalid or missing player_id")
	ErrInvalidPlayer     = errors.New("Invalid player_id")
	ErrTradingNotActive  = errors.New("Trading not active")
	ErrInvalidActionType = errors.New("Invalid action type")
	ErrInvalidOrderType  = errors.New("Invalid order_type")
	ErrInvalidSuit       = errors.New("Invalid suit")
	ErrInvalidPrice      = errors.New("Price must be a positive integer")
	ErrInvalidCancelBand = errors.New("Price must be a non-negative integer or -1")
	ErrRoundEnded        = errors.New("Round has ended")
	ErrInsufficientFunds = errors.New("Insufficient funds")
	ErrNotEnoughCards    = errors.New("Not enough cards")
	ErrDuplicateOrder    = errors.New("duplicate order")
	ErrSelfCross         = errors.New("would strike with self")
	ErrNotImproving      = errors.New("not improving")
	ErrRoundFailed       = errors.New("round failed")
)

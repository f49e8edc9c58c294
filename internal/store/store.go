// Package store persists the round event stream to SQLite.
//
// Every event the engine emits lands in one of five tables: players,
// rounds, actions, trades, results. The layout is meant for offline
// analysis (everything joins on round_id); the server never reads it on
// the request path.
//
// The engine emits events while holding its lock, so the database sits
// behind AsyncSink: an unbounded FIFO drained by a single goroutine.
// Delivery is at-least-once, and a failed write is logged and dropped
// rather than taking the game down.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"figgie-server/internal/game"
	"figgie-server/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS players (
    player_id TEXT NOT NULL,
    round_id  TEXT NOT NULL,
    name      TEXT NOT NULL,
    joined_at TEXT NOT NULL,
    PRIMARY KEY (player_id, round_id)
);

CREATE TABLE IF NOT EXISTS rounds (
    round_id    TEXT PRIMARY KEY,
    started_at  TEXT NOT NULL,
    ended_at    TEXT,
    goal_suit   TEXT NOT NULL,
    num_players INTEGER NOT NULL,
    duration    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS actions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    round_id       TEXT NOT NULL,
    kind           TEXT NOT NULL,
    player_id      TEXT NOT NULL,
    order_type     TEXT NOT NULL,
    suit           TEXT NOT NULL,
    price          INTEGER NOT NULL,
    reason         TEXT NOT NULL DEFAULT '',
    time_remaining INTEGER NOT NULL,
    at             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    round_id       TEXT NOT NULL,
    buyer          TEXT NOT NULL,
    seller         TEXT NOT NULL,
    suit           TEXT NOT NULL,
    price          INTEGER NOT NULL,
    time_remaining INTEGER NOT NULL,
    at             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
    round_id TEXT PRIMARY KEY,
    results  TEXT NOT NULL,
    failed   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_players_round ON players(round_id);
CREATE INDEX IF NOT EXISTS idx_actions_round ON actions(round_id);
CREATE INDEX IF NOT EXISTS idx_trades_round  ON trades(round_id);
`

// Action kinds in the actions table.
const (
	ActionRested   = "rested"
	ActionCanceled = "canceled"
)

// Store writes round events to a SQLite database. It implements
// game.Sink; wrap it in an AsyncSink before handing it to the engine.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the database at path and applies the schema.
// ":memory:" gives an in-process database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, logger: logger.With("component", "store")}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Emit implements game.Sink. Write failures are logged, never returned:
// persistence problems must not stop a running game.
func (s *Store) Emit(ev game.Event) {
	var err error
	switch ev.Kind {
	case game.EventRoundStarted:
		err = s.insertRoundStart(ev)
	case game.EventOrderRested:
		err = s.insertRested(ev)
	case game.EventCancel:
		err = s.insertCanceled(ev)
	case game.EventTransaction:
		err = s.insertTrade(ev)
	case game.EventRoundCompleted:
		err = s.finishRound(ev)
	case game.EventRoundFailed:
		err = s.failRound(ev)
	default:
		return
	}
	if err != nil {
		s.logger.Error("persist event", "kind", ev.Kind, "round_id", ev.RoundID, "error", err)
	}
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *Store) insertRoundStart(ev game.Event) error {
	data, ok := ev.Data.(game.RoundStartedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev.Data)
	}
	at := stamp(ev.Time)

	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO rounds (round_id, started_at, goal_suit, num_players, duration)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.RoundID, at, string(data.GoalSuit), len(data.Players), data.Duration,
	); err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	for pid, name := range data.Players {
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO players (player_id, round_id, name, joined_at) VALUES (?, ?, ?, ?)`,
			pid, ev.RoundID, name, at,
		); err != nil {
			return fmt.Errorf("insert player %s: %w", pid, err)
		}
	}
	return nil
}

func (s *Store) insertRested(ev game.Event) error {
	data, ok := ev.Data.(game.OrderRestedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev.Data)
	}
	if _, err := s.db.Exec(
		`INSERT INTO actions (round_id, kind, player_id, order_type, suit, price, reason, time_remaining, at)
		 VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)`,
		ev.RoundID, ActionRested, data.PlayerID, string(data.Side), string(data.Suit),
		data.Price, data.TimeLeft, stamp(ev.Time),
	); err != nil {
		return fmt.Errorf("insert rested order: %w", err)
	}
	return nil
}

func (s *Store) insertCanceled(ev game.Event) error {
	data, ok := ev.Data.(game.CancelEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev.Data)
	}
	if _, err := s.db.Exec(
		`INSERT INTO actions (round_id, kind, player_id, order_type, suit, price, reason, time_remaining, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RoundID, ActionCanceled, data.OldPlayerID, string(data.Side), string(data.Suit),
		data.OldPrice, data.Reason, data.TimeLeft, stamp(ev.Time),
	); err != nil {
		return fmt.Errorf("insert cancel: %w", err)
	}
	return nil
}

func (s *Store) insertTrade(ev game.Event) error {
	data, ok := ev.Data.(game.TransactionEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev.Data)
	}
	if _, err := s.db.Exec(
		`INSERT INTO trades (round_id, buyer, seller, suit, price, time_remaining, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.RoundID, data.Buyer, data.Seller, string(data.Suit), data.Price,
		data.TimeLeft, stamp(ev.Time),
	); err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *Store) finishRound(ev game.Event) error {
	data, ok := ev.Data.(game.RoundCompletedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev.Data)
	}
	blob, err := json.Marshal(data.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	if _, err := s.db.Exec(
		`UPDATE rounds SET ended_at = ? WHERE round_id = ?`, stamp(ev.Time), ev.RoundID,
	); err != nil {
		return fmt.Errorf("update round: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO results (round_id, results, failed) VALUES (?, ?, 0)`,
		ev.RoundID, string(blob),
	); err != nil {
		return fmt.Errorf("insert results: %w", err)
	}
	return nil
}

func (s *Store) failRound(ev game.Event) error {
	blob, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}

	if _, err := s.db.Exec(
		`UPDATE rounds SET ended_at = ? WHERE round_id = ?`, stamp(ev.Time), ev.RoundID,
	); err != nil {
		return fmt.Errorf("update round: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO results (round_id, results, failed) VALUES (?, ?, 1)`,
		ev.RoundID, string(blob),
	); err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	return nil
}

// RoundRow is one rounds-table entry.
type RoundRow struct {
	RoundID    string
	StartedAt  time.Time
	EndedAt    *time.Time
	GoalSuit   types.Suit
	NumPlayers int
	Duration   int
}

// PlayerRow is one players-table entry.
type PlayerRow struct {
	PlayerID string
	RoundID  string
	Name     string
	JoinedAt time.Time
}

// ActionRow is one actions-table entry: a rested or canceled order.
type ActionRow struct {
	RoundID       string
	Kind          string
	PlayerID      string
	Side          types.Side
	Suit          types.Suit
	Price         int
	Reason        string
	TimeRemaining int
}

// TradeRow is one trades-table entry.
type TradeRow struct {
	RoundID       string
	Buyer         string
	Seller        string
	Suit          types.Suit
	Price         int
	TimeRemaining int
}

// Rounds returns every recorded round, oldest first.
func (s *Store) Rounds(ctx context.Context) ([]RoundRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round_id, started_at, ended_at, goal_suit, num_players, duration
		FROM rounds ORDER BY started_at
	`)
	if err != nil {
		return nil, fmt.Errorf("store.Rounds: query: %w", err)
	}
	defer rows.Close()

	var out []RoundRow
	for rows.Next() {
		var r RoundRow
		var started string
		var ended sql.NullString
		var goal string
		if err := rows.Scan(&r.RoundID, &started, &ended, &goal, &r.NumPlayers, &r.Duration); err != nil {
			return nil, fmt.Errorf("store.Rounds: scan: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("store.Rounds: parse started_at: %w", err)
		}
		if ended.Valid {
			t, err := time.Parse(time.RFC3339Nano, ended.String)
			if err != nil {
				return nil, fmt.Errorf("store.Rounds: parse ended_at: %w", err)
			}
			r.EndedAt = &t
		}
		r.GoalSuit = types.Suit(goal)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Players returns the players seated in one round.
func (s *Store) Players(ctx context.Context, roundID string) ([]PlayerRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id, round_id, name, joined_at
		FROM players WHERE round_id = ? ORDER BY name
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("store.Players: query: %w", err)
	}
	defer rows.Close()

	var out []PlayerRow
	for rows.Next() {
		var p PlayerRow
		var joined string
		if err := rows.Scan(&p.PlayerID, &p.RoundID, &p.Name, &joined); err != nil {
			return nil, fmt.Errorf("store.Players: scan: %w", err)
		}
		if p.JoinedAt, err = time.Parse(time.RFC3339Nano, joined); err != nil {
			return nil, fmt.Errorf("store.Players: parse joined_at: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Actions returns one round's rested and canceled orders in event order.
func (s *Store) Actions(ctx context.Context, roundID string) ([]ActionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round_id, kind, player_id, order_type, suit, price, reason, time_remaining
		FROM actions WHERE round_id = ? ORDER BY id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("store.Actions: query: %w", err)
	}
	defer rows.Close()

	var out []ActionRow
	for rows.Next() {
		var a ActionRow
		var side, suit string
		if err := rows.Scan(&a.RoundID, &a.Kind, &a.PlayerID, &side, &suit, &a.Price, &a.Reason, &a.TimeRemaining); err != nil {
			return nil, fmt.Errorf("store.Actions: scan: %w", err)
		}
		a.Side = types.Side(side)
		a.Suit = types.Suit(suit)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Trades returns one round's executed trades in event order.
func (s *Store) Trades(ctx context.Context, roundID string) ([]TradeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round_id, buyer, seller, suit, price, time_remaining
		FROM trades WHERE round_id = ? ORDER BY id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("store.Trades: query: %w", err)
	}
	defer rows.Close()

	var out []TradeRow
	for rows.Next() {
		var t TradeRow
		var suit string
		if err := rows.Scan(&t.RoundID, &t.Buyer, &t.Seller, &suit, &t.Price, &t.TimeRemaining); err != nil {
			return nil, fmt.Errorf("store.Trades: scan: %w", err)
		}
		t.Suit = types.Suit(suit)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Results returns a round's settlement. A nil result with nil error means
// the round has not settled. failed reports rounds abandoned by a
// consistency check; their JSON holds the failure reason, not results.
func (s *Store) Results(ctx context.Context, roundID string) (*types.Results, bool, error) {
	var blob string
	var failed int
	err := s.db.QueryRowContext(ctx,
		`SELECT results, failed FROM results WHERE round_id = ?`, roundID,
	).Scan(&blob, &failed)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store.Results: query: %w", err)
	}

	if failed != 0 {
		return nil, true, nil
	}
	var res types.Results
	if err := json.Unmarshal([]byte(blob), &res); err != nil {
		return nil, false, fmt.Errorf("store.Results: unmarshal: %w", err)
	}
	return &res, false, nil
}

// Package client is the polling client for the Figgie game server.
//
// A Client joins the game on construction and, once started, polls
// GET /state at a fixed rate. Consecutive snapshots are diffed into a
// stream of callbacks: ticks, round start, executed trades, and
// top-of-book changes. Agents register hooks before Start and react by
// calling Bid, Offer, Buy, Sell or the cancel methods.
//
// Hooks run sequentially on the polling goroutine, so a hook that
// blocks delays the next poll.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"figgie-server/pkg/types"
)

// Config describes one client connection.
type Config struct {
	// ServerURL is the base URL of the game server.
	ServerURL string
	// Name is the player name sent on join.
	Name string
	// PollRate is the target interval between state polls. Defaults to
	// one second.
	PollRate time.Duration
	// Jitter bounds the random extra delay added to each poll, as a
	// fraction of PollRate. Defaults to 0.1.
	Jitter float64
}

// Client is a connected player. Its hooks fire from the polling
// goroutine; its action methods are safe to call from any goroutine.
type Client struct {
	http     *resty.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	rng      *rand.Rand
	pollRate time.Duration
	jitter   float64

	name     string
	playerID string

	mu        sync.Mutex
	tickFns   []func(int)
	startFns  []func(map[types.Suit]int, []string)
	bidFns    []func(string, int, types.Suit)
	offerFns  []func(string, int, types.Suit)
	tradeFns  []func(string, string, int, types.Suit)
	cancelFns []func(types.Side, string, int, string, int, types.Suit)

	view       map[types.Suit]types.SuitMarket // latest market, read by Buy and Sell
	prevMarket map[types.Suit]types.SuitMarket // previous poll's market, nil right after trades
	last       *types.StateSnapshot            // most recent successful poll
	seenTrades int

	runCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New joins the game at cfg.ServerURL and returns a client ready to
// poll. Register hooks on the returned client before calling Start.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollRate <= 0 {
		cfg.PollRate = time.Second
	}
	if cfg.Jitter <= 0 {
		cfg.Jitter = 0.1
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(cfg.ServerURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second),
		limiter:  rate.NewLimiter(rate.Every(cfg.PollRate), 1),
		logger:   logger.With("component", "client", "player", cfg.Name),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		pollRate: cfg.PollRate,
		jitter:   cfg.Jitter,
		name:     cfg.Name,
	}
	if err := c.join(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) join(ctx context.Context) error {
	var out types.JoinResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(types.JoinRequest{Name: c.name}).
		SetResult(&out).
		Post("/join")
	if err != nil {
		return fmt.Errorf("joining game: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("joining game: %w", apiError(resp))
	}
	if out.PlayerID == "" {
		return fmt.Errorf("joining game: empty player_id in response")
	}
	c.playerID = out.PlayerID
	c.logger = c.logger.With("player_id", out.PlayerID)
	return nil
}

// PlayerID returns the server-assigned identity of this client.
func (c *Client) PlayerID() string { return c.playerID }

// Name returns the player name used on join.
func (c *Client) Name() string { return c.name }

// Start launches the polling loop. Calling Start on a running client is
// a no-op.
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.runCtx = ctx
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Stop halts the polling loop and waits for it to exit. In-flight
// requests are canceled.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		if d := c.jitterDelay(); d > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
		}
		st, err := c.fetchState(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("state poll failed", "error", err)
			continue
		}
		c.processState(st)
	}
}

// jitterDelay desynchronizes clients that share a poll rate.
func (c *Client) jitterDelay() time.Duration {
	return time.Duration(c.rng.Float64() * c.jitter * float64(c.pollRate))
}

func (c *Client) fetchState(ctx context.Context) (*types.StateSnapshot, error) {
	var st types.StateSnapshot
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("player_id", c.playerID).
		SetResult(&st).
		Get("/state")
	if err != nil {
		return nil, fmt.Errorf("fetching state: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetching state: %w", apiError(resp))
	}
	return &st, nil
}

// processState diffs a fresh snapshot against the previous one and fires
// the resulting hooks in a fixed order: ticks, round start, executed
// trades, then book changes. Hook calls are collected under the lock and
// run after it is released, so hooks may call action methods freely.
func (c *Client) processState(st *types.StateSnapshot) {
	c.mu.Lock()

	c.view = st.Market
	prevPhase := types.Phase("")
	if c.last != nil {
		prevPhase = c.last.State
	}

	var calls []func()

	if st.TimeLeft != nil {
		left := *st.TimeLeft
		for _, fn := range c.tickFns {
			calls = append(calls, func() { fn(left) })
		}
	}

	if st.State == types.PhaseTrading && prevPhase != types.PhaseTrading {
		opponents := make([]string, 0, len(st.Balances))
		for id := range st.Balances {
			if id != c.playerID {
				opponents = append(opponents, id)
			}
		}
		sort.Strings(opponents)
		hand := st.Hand
		for _, fn := range c.startFns {
			calls = append(calls, func() { fn(hand, opponents) })
		}
	}

	// A table reset starts a fresh trade log.
	if c.seenTrades > len(st.Trades) {
		c.seenTrades = 0
	}
	fresh := st.Trades[c.seenTrades:]
	if len(fresh) > 0 {
		// Quotes consumed by these trades must not look like cancels,
		// so the book diff below runs against an empty previous market.
		c.prevMarket = nil
		for _, tr := range fresh {
			for _, fn := range c.tradeFns {
				calls = append(calls, func() { fn(tr.Buyer, tr.Seller, tr.Price, tr.Suit) })
			}
		}
	}
	c.seenTrades = len(st.Trades)

	for _, suit := range types.Suits() {
		pm := c.prevMarket[suit]
		cm := st.Market[suit]
		calls = append(calls, c.diffSide(types.Buy, suit, pm.HighestBid, cm.HighestBid)...)
		calls = append(calls, c.diffSide(types.Sell, suit, pm.LowestAsk, cm.LowestAsk)...)
	}

	c.prevMarket = st.Market
	c.last = st
	c.mu.Unlock()

	for _, call := range calls {
		call()
	}
}

// Phase returns the round phase from the most recent successful poll,
// or the empty phase before the first one.
func (c *Client) Phase() types.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return ""
	}
	return c.last.State
}

// LastState returns the most recent successfully polled snapshot, or
// nil before the first poll. The snapshot is shared with the poll loop
// and must be treated as read-only.
func (c *Client) LastState() *types.StateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// diffSide compares one half of a suit's book between polls. A strict
// improvement by another player fires bid or offer hooks; a retreat
// fires cancel hooks. A player improving their own quote fires nothing.
func (c *Client) diffSide(side types.Side, suit types.Suit, prev, curr *types.Quote) []func() {
	improves := curr != nil && (prev == nil || better(side, curr.Price, prev.Price))
	var calls []func()
	switch {
	case improves && curr.PlayerID != c.playerID:
		fns := c.bidFns
		if side == types.Sell {
			fns = c.offerFns
		}
		for _, fn := range fns {
			calls = append(calls, func() { fn(curr.PlayerID, curr.Price, suit) })
		}
	case prev != nil && (curr == nil || better(side, prev.Price, curr.Price) ||
		(curr.Price == prev.Price && curr.PlayerID != prev.PlayerID)):
		oldPlayer, oldPrice := prev.PlayerID, prev.Price
		var newPlayer string
		var newPrice int
		if curr != nil {
			newPlayer, newPrice = curr.PlayerID, curr.Price
		}
		for _, fn := range c.cancelFns {
			calls = append(calls, func() { fn(side, oldPlayer, oldPrice, newPlayer, newPrice, suit) })
		}
	}
	return calls
}

// better reports whether price a strictly improves on price b for the
// given side of the book.
func better(side types.Side, a, b int) bool {
	if side == types.Buy {
		return a > b
	}
	return a < b
}

// OnTick registers fn to run once per poll that carries a time value,
// with the seconds remaining in the round.
func (c *Client) OnTick(fn func(timeLeft int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickFns = append(c.tickFns, fn)
}

// OnStart registers fn to run on the first poll that observes trading,
// with this player's dealt hand and the IDs of the other players.
func (c *Client) OnStart(fn func(hand map[types.Suit]int, opponents []string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startFns = append(c.startFns, fn)
}

// OnBid registers fn to run when another player strictly improves the
// best bid for a suit.
func (c *Client) OnBid(fn func(player string, price int, suit types.Suit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bidFns = append(c.bidFns, fn)
}

// OnOffer registers fn to run when another player strictly improves the
// best offer for a suit.
func (c *Client) OnOffer(fn func(player string, price int, suit types.Suit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offerFns = append(c.offerFns, fn)
}

// OnTransaction registers fn to run once per executed trade, in trade
// log order.
func (c *Client) OnTransaction(fn func(buyer, seller string, price int, suit types.Suit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tradeFns = append(c.tradeFns, fn)
}

// OnCancel registers fn to run when the best quote on one side of a book
// retreats: its price worsened, the side emptied, or the owner changed
// at the same price. side is Buy for the bid half and Sell for the offer
// half. newPlayer and newPrice are zero values when the side is now
// empty. Unlike OnBid and OnOffer, this fires for own quotes too.
func (c *Client) OnCancel(fn func(side types.Side, oldPlayer string, oldPrice int, newPlayer string, newPrice int, suit types.Suit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelFns = append(c.cancelFns, fn)
}

// Bid places a buy order for one card of suit at price.
func (c *Client) Bid(price int, suit types.Suit) (*types.ActionResult, error) {
	return c.placeOrder(types.Buy, suit, price)
}

// Offer places a sell order for one card of suit at price.
func (c *Client) Offer(price int, suit types.Suit) (*types.ActionResult, error) {
	return c.placeOrder(types.Sell, suit, price)
}

// Buy lifts the best offer for suit at its quoted price, as last seen
// by the poll loop.
func (c *Client) Buy(suit types.Suit) (*types.ActionResult, error) {
	c.mu.Lock()
	ask := c.view[suit].LowestAsk
	c.mu.Unlock()
	if ask == nil {
		return nil, fmt.Errorf("buy %s: no resting offer", suit)
	}
	return c.Bid(ask.Price, suit)
}

// Sell hits the best bid for suit at its quoted price, as last seen by
// the poll loop.
func (c *Client) Sell(suit types.Suit) (*types.ActionResult, error) {
	c.mu.Lock()
	bid := c.view[suit].HighestBid
	c.mu.Unlock()
	if bid == nil {
		return nil, fmt.Errorf("sell %s: no resting bid", suit)
	}
	return c.Offer(bid.Price, suit)
}

// CancelSuit cancels this player's resting orders on both sides of one
// suit's book and returns the canceled order IDs. Passing types.AllSuits
// clears every book.
func (c *Client) CancelSuit(suit types.Suit) ([]string, error) {
	reply, err := c.postAction(types.ActionRequest{
		PlayerID:   c.playerID,
		ActionType: types.ActionCancel,
		OrderType:  types.BothSides,
		Suit:       suit,
		Price:      json.RawMessage("-1"),
	})
	if err != nil {
		return nil, fmt.Errorf("cancel %s: %w", suit, err)
	}
	return reply.Canceled, nil
}

// CancelAll cancels this player's resting orders in every suit.
func (c *Client) CancelAll() ([]string, error) {
	return c.CancelSuit(types.AllSuits)
}

func (c *Client) placeOrder(side types.Side, suit types.Suit, price int) (*types.ActionResult, error) {
	reply, err := c.postAction(types.ActionRequest{
		PlayerID:   c.playerID,
		ActionType: types.ActionOrder,
		OrderType:  side,
		Suit:       suit,
		Price:      json.RawMessage(strconv.Itoa(price)),
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s at %d: %w", side, suit, price, err)
	}
	if reply.Trade != nil {
		return &types.ActionResult{Trade: reply.Trade}, nil
	}
	return &types.ActionResult{OrderID: reply.OrderID}, nil
}

// actionReply covers the three success shapes of POST /action.
type actionReply struct {
	OrderID  string       `json:"order_id"`
	Trade    *types.Trade `json:"trade"`
	Canceled []string     `json:"canceled"`
}

func (c *Client) postAction(req types.ActionRequest) (*actionReply, error) {
	var out actionReply
	resp, err := c.http.R().
		SetContext(c.requestCtx()).
		SetBody(req).
		SetResult(&out).
		Post("/action")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, apiError(resp)
	}
	return &out, nil
}

// requestCtx bounds action requests by the poll loop's lifetime once
// Start has run.
func (c *Client) requestCtx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runCtx != nil {
		return c.runCtx
	}
	return context.Background()
}

// Status fetches the server's lobby status. Dispatchers call it before
// spawning clients to check that the table is free.
func Status(ctx context.Context, serverURL string) (*types.ServerStatus, error) {
	var st types.ServerStatus
	resp, err := resty.New().
		SetBaseURL(serverURL).
		SetTimeout(5 * time.Second).
		R().
		SetContext(ctx).
		SetResult(&st).
		Get("/status")
	if err != nil {
		return nil, fmt.Errorf("fetching server status: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetching server status: %w", apiError(resp))
	}
	return &st, nil
}

// apiError turns a non-200 response into an error carrying the server's
// error envelope when one is present.
func apiError(resp *resty.Response) error {
	var e types.ErrorResponse
	if err := json.Unmarshal(resp.Body(), &e); err == nil && e.Error != "" {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode(), e.Error)
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode())
}

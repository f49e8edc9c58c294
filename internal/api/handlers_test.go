package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"figgie-server/internal/config"
	"figgie-server/internal/engine"
	"figgie-server/internal/game"
	"figgie-server/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestServer boots the real stack: engine, metrics, handlers, mux.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Port:            5000,
		NumPlayers:      4,
		TradingDuration: 240,
		DBPath:          ":memory:",
		LogLevel:        "error",
	}
	metrics := NewMetrics()
	eng := engine.New(cfg, game.NewClock(), metrics, testLogger())
	t.Cleanup(eng.Stop)

	srv := NewServer(cfg, eng, metrics, testLogger())
	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) (int, []byte) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func getJSON(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func join(t *testing.T, base, name string) string {
	t.Helper()
	code, body := postJSON(t, base+"/join", types.JoinRequest{Name: name})
	if code != http.StatusOK {
		t.Fatalf("join %s: %d %s", name, code, body)
	}
	var jr types.JoinResponse
	if err := json.Unmarshal(body, &jr); err != nil || jr.PlayerID == "" {
		t.Fatalf("join response %q: %v", body, err)
	}
	return jr.PlayerID
}

func seatFour(t *testing.T, base string) []string {
	t.Helper()
	ids := make([]string, 0, 4)
	for _, n := range []string{"alice", "bob", "carol", "dave"} {
		ids = append(ids, join(t, base, n))
	}
	return ids
}

func stateFor(t *testing.T, base, pid string) types.StateSnapshot {
	t.Helper()
	code, body := getJSON(t, base+"/state?player_id="+pid)
	if code != http.StatusOK {
		t.Fatalf("state: %d %s", code, body)
	}
	var st types.StateSnapshot
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode state %q: %v", body, err)
	}
	return st
}

func wantError(t *testing.T, code int, body []byte, msg string) {
	t.Helper()
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d (%s), want 400", code, body)
	}
	var envelope types.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	if envelope.Error != msg {
		t.Fatalf("error = %q, want %q", envelope.Error, msg)
	}
}

func TestJoinEndpoint(t *testing.T) {
	ts := newTestServer(t)

	pid := join(t, ts.URL, "alice")
	if pid == "" {
		t.Fatal("empty player_id")
	}

	code, body := postJSON(t, ts.URL+"/join", types.JoinRequest{Name: ""})
	wantError(t, code, body, "Name is required")

	resp, err := http.Post(ts.URL+"/join", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	wantError(t, resp.StatusCode, raw, "Name is required")
}

func TestJoinFullTable(t *testing.T) {
	ts := newTestServer(t)
	seatFour(t, ts.URL)

	code, body := postJSON(t, ts.URL+"/join", types.JoinRequest{Name: "erin"})
	wantError(t, code, body, "Cannot join right now")
}

func TestStateEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ids := seatFour(t, ts.URL)

	st := stateFor(t, ts.URL, ids[0])
	if st.State != types.PhaseTrading {
		t.Fatalf("state = %s, want trading", st.State)
	}
	if st.TimeLeft == nil || *st.TimeLeft != game.TimeScale {
		t.Fatalf("time_left = %v, want %d", st.TimeLeft, game.TimeScale)
	}
	if st.Pot != game.PotSize {
		t.Fatalf("pot = %d, want %d", st.Pot, game.PotSize)
	}
	total := 0
	for _, n := range st.Hand {
		total += n
	}
	if total != game.DeckSize/4 {
		t.Fatalf("hand total = %d, want %d", total, game.DeckSize/4)
	}
	if len(st.Balances) != 4 {
		t.Fatalf("balances = %d entries, want 4", len(st.Balances))
	}
	for pid, bal := range st.Balances {
		if bal != game.StartingBalance-game.PotSize/4 {
			t.Fatalf("balance[%s] = %d, want %d", pid, bal, game.StartingBalance-game.PotSize/4)
		}
	}
	if len(st.Market) != 4 {
		t.Fatalf("market = %d suits, want 4", len(st.Market))
	}
	if st.Results != nil {
		t.Fatal("results should be absent while trading")
	}
}

func TestStateRequiresPlayerID(t *testing.T) {
	ts := newTestServer(t)

	code, body := getJSON(t, ts.URL+"/state")
	wantError(t, code, body, "Invalid or missing player_id")

	code, body = getJSON(t, ts.URL+"/state?player_id=ghost")
	wantError(t, code, body, "Invalid or missing player_id")
}

func TestActionEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ids := seatFour(t, ts.URL)

	var suit types.Suit
	for s, n := range stateFor(t, ts.URL, ids[0]).Hand {
		if n > 0 {
			suit = s
			break
		}
	}
	if suit == "" {
		t.Fatal("seller holds no cards")
	}

	code, body := postJSON(t, ts.URL+"/action", types.ActionRequest{
		PlayerID:   ids[0],
		ActionType: types.ActionOrder,
		OrderType:  types.Sell,
		Suit:       suit,
		Price:      json.RawMessage("8"),
	})
	if code != http.StatusOK {
		t.Fatalf("sell: %d %s", code, body)
	}
	var rested struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(body, &rested); err != nil || rested.OrderID == "" {
		t.Fatalf("sell response %q: %v", body, err)
	}

	code, body = postJSON(t, ts.URL+"/action", types.ActionRequest{
		PlayerID:   ids[1],
		ActionType: types.ActionOrder,
		OrderType:  types.Buy,
		Suit:       suit,
		Price:      json.RawMessage("8"),
	})
	if code != http.StatusOK {
		t.Fatalf("buy: %d %s", code, body)
	}
	var traded struct {
		Trade *types.Trade `json:"trade"`
	}
	if err := json.Unmarshal(body, &traded); err != nil || traded.Trade == nil {
		t.Fatalf("buy response %q: %v", body, err)
	}
	if traded.Trade.Buyer != ids[1] || traded.Trade.Seller != ids[0] || traded.Trade.Price != 8 || traded.Trade.Suit != suit {
		t.Fatalf("trade = %+v", traded.Trade)
	}

	code, body = postJSON(t, ts.URL+"/action", types.ActionRequest{
		PlayerID:   ids[2],
		ActionType: types.ActionCancel,
		OrderType:  types.BothSides,
		Suit:       types.AllSuits,
		Price:      json.RawMessage("-1"),
	})
	if code != http.StatusOK {
		t.Fatalf("cancel: %d %s", code, body)
	}
	var canceled struct {
		Canceled []string `json:"canceled"`
	}
	if err := json.Unmarshal(body, &canceled); err != nil || canceled.Canceled == nil {
		t.Fatalf("cancel response %q: %v", body, err)
	}
	if len(canceled.Canceled) != 0 {
		t.Fatalf("canceled = %v, want none", canceled.Canceled)
	}

	st := stateFor(t, ts.URL, ids[0])
	if len(st.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(st.Trades))
	}
}

func TestActionErrors(t *testing.T) {
	ts := newTestServer(t)
	ids := seatFour(t, ts.URL)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", ``, "Invalid player_id"},
		{"unknown player", `{"player_id":"ghost","action_type":"order","order_type":"buy","suit":"spades","price":5}`, "Invalid player_id"},
		{"bad action", fmt.Sprintf(`{"player_id":%q,"action_type":"fold"}`, ids[0]), "Invalid action type"},
		{"string price", fmt.Sprintf(`{"player_id":%q,"action_type":"order","order_type":"buy","suit":"spades","price":"abc"}`, ids[0]), "Price must be a positive integer"},
		{"missing price", fmt.Sprintf(`{"player_id":%q,"action_type":"order","order_type":"buy","suit":"spades"}`, ids[0]), "Price must be a positive integer"},
		{"fractional price", fmt.Sprintf(`{"player_id":%q,"action_type":"order","order_type":"buy","suit":"spades","price":4.5}`, ids[0]), "Price must be a positive integer"},
		{"bad suit", fmt.Sprintf(`{"player_id":%q,"action_type":"order","order_type":"buy","suit":"swords","price":5}`, ids[0]), "Invalid suit"},
		{"bad side", fmt.Sprintf(`{"player_id":%q,"action_type":"order","order_type":"hold","suit":"spades","price":5}`, ids[0]), "Invalid order_type"},
		{"bad cancel band", fmt.Sprintf(`{"player_id":%q,"action_type":"cancel","order_type":"both","suit":"all","price":-2}`, ids[0]), "Price must be a non-negative integer or -1"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := http.Post(ts.URL+"/action", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			wantError(t, resp.StatusCode, body, tt.want)
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)

	code, body := getJSON(t, ts.URL+"/status")
	if code != http.StatusOK {
		t.Fatalf("status: %d %s", code, body)
	}
	var st types.ServerStatus
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != types.PhaseWaiting || st.CurrentPlayers != 0 || st.NumPlayers != 4 || st.TradingDuration != 240 {
		t.Fatalf("status = %+v", st)
	}

	seatFour(t, ts.URL)
	_, body = getJSON(t, ts.URL+"/status")
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != types.PhaseTrading || st.CurrentPlayers != 4 {
		t.Fatalf("status = %+v", st)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	code, body := getJSON(t, ts.URL+"/health")
	if code != http.StatusOK || !strings.Contains(string(body), `"status":"ok"`) {
		t.Fatalf("health: %d %s", code, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ids := seatFour(t, ts.URL)

	var suit types.Suit
	for s, n := range stateFor(t, ts.URL, ids[0]).Hand {
		if n > 0 {
			suit = s
			break
		}
	}
	postJSON(t, ts.URL+"/action", types.ActionRequest{
		PlayerID: ids[0], ActionType: types.ActionOrder, OrderType: types.Sell,
		Suit: suit, Price: json.RawMessage("7"),
	})
	postJSON(t, ts.URL+"/action", types.ActionRequest{
		PlayerID: ids[1], ActionType: types.ActionOrder, OrderType: types.Buy,
		Suit: suit, Price: json.RawMessage("7"),
	})

	code, body := getJSON(t, ts.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("metrics: %d", code)
	}
	text := string(body)
	for _, want := range []string{
		"figgie_joins_total 4",
		"figgie_rounds_started_total 1",
		"figgie_orders_rested_total 1",
		"figgie_trades_total 1",
		"figgie_http_request_duration_seconds",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/join")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /join = %d, want 405", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/status", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /status = %d, want 405", resp.StatusCode)
	}
}

// Figgie Game Server — a four-suit trading card game served over HTTP.
//
// Architecture:
//
//	main.go            — entry point: loads config, wires sinks, serves until SIGINT/SIGTERM
//	engine/engine.go   — hosts the single table: serializes access, arms the deadline timer
//	game/round.go      — round state machine: seats, deal, books, trades, settlement
//	game/book.go       — per-suit top-of-book double auction with strict price improvement
//	game/settlement.go — goal-suit reveal, bonus payout, pot split among majority holders
//	api/server.go      — HTTP surface: /join, /state, /action, /status, /health, /metrics
//	store/store.go     — SQLite event store: every round event lands in one table
//	store/sink.go      — async fan-in so the engine never blocks on the database
//
// How a game runs:
//
//	Players join until the table fills, each staked 350 from the house.
//	A hidden 40-card deck is dealt and trading opens: one bid and one ask
//	per suit, where only strictly better prices displace a resting quote
//	and a crossing order strikes at the resting price. When the clock
//	runs out the goal suit is revealed, each goal card earns its holder
//	10, and the players holding the most goal cards split the 200 pot.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"figgie-server/internal/api"
	"figgie-server/internal/config"
	"figgie-server/internal/engine"
	"figgie-server/internal/game"
	"figgie-server/internal/store"
)

func main() {
	// Local overrides come from .env when present.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open event store", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	sink := store.NewAsyncSink(st, logger)
	metrics := api.NewMetrics()

	eng := engine.New(cfg, game.NewClock(), game.MultiSink(metrics, sink), logger)
	srv := api.NewServer(cfg, eng, metrics, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("figgie server started",
		"port", cfg.Port,
		"players", cfg.NumPlayers,
		"trading_duration", cfg.TradingDuration,
		"db", cfg.DBPath,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if err := srv.Stop(); err != nil {
		logger.Error("failed to stop server", "error", err)
	}
	eng.Stop()
	sink.Close()
	if err := st.Close(); err != nil {
		logger.Error("failed to close event store", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

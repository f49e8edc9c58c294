// Figgie Agent Dispatcher — fields a roster of trading agents against a
// running game server and reports the settlement.
//
// The dispatcher refuses a busy table, scales the roster's polling rate
// to the server's trading duration, seats every agent, and waits for
// one of them to see the round complete. The strategies and the roster
// format live in internal/agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"figgie-server/internal/agent"
	"figgie-server/pkg/client"
	"figgie-server/pkg/types"
)

func main() {
	rosterPath := flag.String("roster", "configs/roster.yaml", "path to the roster file")
	serverURL := flag.String("server", "", "server URL (overrides the roster)")
	reportPath := flag.String("report", "", "settlement report path (overrides the roster)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := run(*rosterPath, *serverURL, *reportPath, logger); err != nil {
		logger.Error("dispatcher failed", "error", err)
		os.Exit(1)
	}
}

func run(rosterPath, serverURL, reportPath string, logger *slog.Logger) error {
	roster, err := agent.LoadRoster(rosterPath)
	if err != nil {
		return err
	}
	if serverURL == "" {
		serverURL = roster.Server
	}
	if reportPath == "" {
		reportPath = roster.Report
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	status, err := client.Status(ctx, serverURL)
	cancel()
	if err != nil {
		return fmt.Errorf("fetching server status: %w", err)
	}
	if status.State == types.PhaseTrading {
		return fmt.Errorf("server is busy: a round is already trading")
	}
	if status.State == types.PhaseWaiting && status.CurrentPlayers != 0 {
		return fmt.Errorf("players already queued: %d seated in a waiting round", status.CurrentPlayers)
	}
	if status.NumPlayers != len(roster.Agents) {
		return fmt.Errorf("roster fields %d agents but the table seats %d", len(roster.Agents), status.NumPlayers)
	}

	// Roster rates are written against the reference 240s round; scale
	// to the round length the server actually runs.
	pollRate := time.Duration(roster.PollRate * float64(status.TradingDuration) / 240 * float64(time.Second))

	logger.Info("spawning agents",
		"count", len(roster.Agents),
		"server", serverURL,
		"poll_rate", pollRate,
	)

	var clients []*client.Client
	defer func() {
		for _, c := range clients {
			c.Stop()
		}
	}()

	names := make(map[string]string, len(roster.Agents))
	for i, spec := range roster.Agents {
		joinCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		c, err := client.New(joinCtx, client.Config{
			ServerURL: serverURL,
			Name:      spec.Name,
			PollRate:  pollRate,
		}, logger)
		cancel()
		if err != nil {
			return fmt.Errorf("seating %s: %w", spec.Name, err)
		}
		clients = append(clients, c)
		names[c.PlayerID()] = spec.Name

		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
		if err := spec.Attach(c, rng, logger); err != nil {
			return err
		}
		c.Start()
		logger.Info("agent seated", "name", spec.Name, "type", spec.Type, "player_id", c.PlayerID())
	}

	final, err := awaitCompletion(serverURL, clients, logger)
	if err != nil {
		return err
	}

	report, err := agent.BuildReport(serverURL, final, names)
	if err != nil {
		return err
	}
	agent.RenderTable(os.Stdout, report)
	if reportPath != "" {
		if err := report.WriteFile(reportPath); err != nil {
			return err
		}
		logger.Info("report written", "path", reportPath)
	}
	return nil
}

// awaitCompletion waits until any client has seen the round complete.
// A failed round never renders a completed snapshot, so the server's
// status endpoint is watched for that alongside.
func awaitCompletion(serverURL string, clients []*client.Client, logger *slog.Logger) (*types.StateSnapshot, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigCh:
			return nil, fmt.Errorf("interrupted by %s", sig)
		case <-ticker.C:
			for _, c := range clients {
				if c.Phase() == types.PhaseCompleted {
					logger.Info("round completed")
					return c.LastState(), nil
				}
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			status, err := client.Status(ctx, serverURL)
			cancel()
			if err != nil {
				logger.Debug("status check failed", "error", err)
				continue
			}
			if status.State == types.PhaseFailed {
				return nil, fmt.Errorf("round failed on the server")
			}
		}
	}
}

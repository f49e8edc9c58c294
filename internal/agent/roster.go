package agent

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

// Strategy names accepted in roster files.
const (
	TypeNoise          = "noise"
	TypeFundamentalist = "fundamentalist"
	TypeBottomFeeder   = "bottom_feeder"
)

// Roster is the lineup a dispatcher fields against one server.
type Roster struct {
	Server   string      `yaml:"server"`    // default http://localhost:5000
	PollRate float64     `yaml:"poll_rate"` // seconds between polls at the reference 240s round, default 1.0
	Report   string      `yaml:"report"`    // optional path for the JSON settlement report
	Agents   []AgentSpec `yaml:"agents"`
}

// AgentSpec configures one seat. Parameters left at zero fall back to
// the strategy's defaults; parameters belonging to other strategies are
// ignored.
type AgentSpec struct {
	Type       string  `yaml:"type"`
	Name       string  `yaml:"name"`
	Aggression float64 `yaml:"aggression"`
	DefaultVal int     `yaml:"default_val"` // noise
	Sigma      float64 `yaml:"sigma"`       // noise
	BuyRatio   float64 `yaml:"buy_ratio"`   // fundamentalist
	LookDepth  int     `yaml:"look_depth"`  // bottom_feeder
}

// LoadRoster reads and validates a YAML roster file. Agents without a
// name get one from their type and seat index.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}
	if r.Server == "" {
		r.Server = "http://localhost:5000"
	}
	if r.PollRate == 0 {
		r.PollRate = 1.0
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	for i := range r.Agents {
		if r.Agents[i].Name == "" {
			r.Agents[i].Name = fmt.Sprintf("%s%d", r.Agents[i].Type, i)
		}
	}
	return &r, nil
}

func (r *Roster) validate() error {
	if n := len(r.Agents); n != 4 && n != 5 {
		return fmt.Errorf("roster must field 4 or 5 agents, got %d", n)
	}
	if r.PollRate <= 0 {
		return fmt.Errorf("poll_rate must be positive, got %v", r.PollRate)
	}
	for i, a := range r.Agents {
		switch a.Type {
		case TypeNoise, TypeFundamentalist, TypeBottomFeeder:
		default:
			return fmt.Errorf("agent %d: unknown type %q", i, a.Type)
		}
		if a.Aggression < 0 || a.Aggression > 1 {
			return fmt.Errorf("agent %d: aggression must be in [0, 1], got %v", i, a.Aggression)
		}
		if a.DefaultVal < 0 {
			return fmt.Errorf("agent %d: default_val must be positive, got %d", i, a.DefaultVal)
		}
		if a.Sigma < 0 {
			return fmt.Errorf("agent %d: sigma must be positive, got %v", i, a.Sigma)
		}
		if a.BuyRatio != 0 && a.BuyRatio <= 1 {
			return fmt.Errorf("agent %d: buy_ratio must be greater than 1, got %v", i, a.BuyRatio)
		}
		if a.LookDepth < 0 {
			return fmt.Errorf("agent %d: look_depth must be positive, got %d", i, a.LookDepth)
		}
	}
	return nil
}

// Attach wires the strategy described by spec onto conn.
func (spec AgentSpec) Attach(conn Conn, rng *rand.Rand, logger *slog.Logger) error {
	switch spec.Type {
	case TypeNoise:
		NewNoiseTrader(conn, NoiseConfig{
			Aggression: spec.Aggression,
			DefaultVal: spec.DefaultVal,
			Sigma:      spec.Sigma,
		}, rng, logger)
	case TypeFundamentalist:
		NewFundamentalist(conn, FundamentalistConfig{
			Aggression: spec.Aggression,
			BuyRatio:   spec.BuyRatio,
		}, rng, logger)
	case TypeBottomFeeder:
		NewBottomFeeder(conn, BottomFeederConfig{
			Aggression: spec.Aggression,
			LookDepth:  spec.LookDepth,
		}, rng, logger)
	default:
		return fmt.Errorf("unknown agent type %q", spec.Type)
	}
	return nil
}

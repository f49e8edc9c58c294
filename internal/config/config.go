// Package config defines all configuration for the game server.
// Every value has a default, so a bare `figgie-server` starts a standard
// four-player table; overrides come from the environment (PORT,
// NUM_PLAYERS, TRADING_DURATION, DB_PATH, LOG_LEVEL), typically via a
// .env file loaded by the caller.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port int `mapstructure:"port"`
	// NumPlayers is the table size; a round starts once this many have joined.
	NumPlayers int `mapstructure:"num_players"`
	// TradingDuration is the real length of the trading window in seconds.
	// Reported clocks are always renormalized to a 240 scale, so shorter
	// rounds look identical to clients.
	TradingDuration int `mapstructure:"trading_duration"`
	// DBPath is the SQLite file for the event store. ":memory:" keeps
	// everything in-process.
	DBPath string `mapstructure:"db_path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

var envKeys = []string{"port", "num_players", "trading_duration", "db_path", "log_level"}

// Load reads configuration from the environment on top of the defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("port", 5000)
	v.SetDefault("num_players", 4)
	v.SetDefault("trading_duration", 240)
	v.SetDefault("db_path", "data/figgie.db")
	v.SetDefault("log_level", "info")

	for _, key := range envKeys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks all value ranges.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d (set PORT)", c.Port)
	}
	if c.NumPlayers != 4 && c.NumPlayers != 5 {
		return fmt.Errorf("num_players must be 4 or 5, got %d (set NUM_PLAYERS)", c.NumPlayers)
	}
	if c.TradingDuration <= 0 {
		return fmt.Errorf("trading_duration must be > 0, got %d (set TRADING_DURATION)", c.TradingDuration)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required (set DB_PATH)")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	return nil
}

// RoundDuration is the trading window as a time.Duration.
func (c *Config) RoundDuration() time.Duration {
	return time.Duration(c.TradingDuration) * time.Second
}

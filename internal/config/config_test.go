package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/swingdesk/swingbot/internal/config"
)

func TestDefaultsLoadWithoutFile(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Symbol != "BTC/USDT" {
		t.Errorf("expected default symbol BTC/USDT, got %s", cfg.Symbol)
	}
	if cfg.Risk.MaxOpenPositions != 1 {
		t.Errorf("expected max_open_positions 1, got %d", cfg.Risk.MaxOpenPositions)
	}
	if cfg.Bandit.ExplorationProb != 0.2 {
		t.Errorf("expected exploration_prob 0.2, got %v", cfg.Bandit.ExplorationProb)
	}
	if !cfg.Risk.AllowExitsWhenTripped {
		t.Error("exits should be allowed when tripped by default")
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
symbol: ETH/USDT
cycle_interval: 1m
risk:
  daily_loss_limit_percent: 3.5
bandit:
  exploration_prob: 0.5
`)
	if err := os.WriteFile(path, yaml, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Symbol != "ETH/USDT" {
		t.Errorf("expected ETH/USDT, got %s", cfg.Symbol)
	}
	if cfg.CycleInterval != time.Minute {
		t.Errorf("expected 1m interval, got %v", cfg.CycleInterval)
	}
	if cfg.Risk.DailyLossLimitPercent != 3.5 {
		t.Errorf("expected 3.5, got %v", cfg.Risk.DailyLossLimitPercent)
	}
	// Untouched keys keep defaults.
	if cfg.Risk.APIFailureLimit != 5 {
		t.Errorf("expected api_failure_limit 5, got %d", cfg.Risk.APIFailureLimit)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty symbol", func(c *config.Config) { c.Symbol = "" }},
		{"tiny lookback", func(c *config.Config) { c.Lookback = 10 }},
		{"zero interval", func(c *config.Config) { c.CycleInterval = 0 }},
		{"negative risk", func(c *config.Config) { c.Risk.RiskPerTradePercent = -1 }},
		{"epsilon above one", func(c *config.Config) { c.Bandit.ExplorationProb = 1.5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

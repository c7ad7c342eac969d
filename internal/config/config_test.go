package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	if cfg.Trading.SMAPeriod != 200 {
		t.Fatalf("expected default sma_period 200, got %d", cfg.Trading.SMAPeriod)
	}
	if cfg.Trading.BuyMultiplier != 1.05 {
		t.Fatalf("expected default buy_multiplier 1.05, got %v", cfg.Trading.BuyMultiplier)
	}
	if cfg.Trading.SellMultiplier != 0.97 {
		t.Fatalf("expected default sell_multiplier 0.97, got %v", cfg.Trading.SellMultiplier)
	}
	if cfg.Trading.BenchmarkSymbol != "QQQ" || cfg.Trading.TargetSymbol != "TQQQ" {
		t.Fatalf("unexpected default symbols: %s/%s", cfg.Trading.BenchmarkSymbol, cfg.Trading.TargetSymbol)
	}
	if cfg.Data.HistoryYears != 3 {
		t.Fatalf("expected default history_years 3, got %d", cfg.Data.HistoryYears)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"trading:",
		"  benchmark_symbol: SPY",
		"  target_symbol: UPRO",
		"  sma_period: 100",
		"data:",
		"  history_years: 2",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Trading.BenchmarkSymbol != "SPY" || cfg.Trading.TargetSymbol != "UPRO" {
		t.Fatalf("file values not applied: %s/%s", cfg.Trading.BenchmarkSymbol, cfg.Trading.TargetSymbol)
	}
	if cfg.Trading.SMAPeriod != 100 {
		t.Fatalf("expected sma_period 100, got %d", cfg.Trading.SMAPeriod)
	}
	// Untouched keys keep their defaults.
	if cfg.Trading.BuyMultiplier != 1.05 {
		t.Fatalf("default buy_multiplier lost: %v", cfg.Trading.BuyMultiplier)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"buy multiplier below one", func(c *Config) { c.Trading.BuyMultiplier = 0.99 }},
		{"sell multiplier above one", func(c *Config) { c.Trading.SellMultiplier = 1.02 }},
		{"sell multiplier zero", func(c *Config) { c.Trading.SellMultiplier = 0 }},
		{"non-positive window", func(c *Config) { c.Trading.SMAPeriod = 0 }},
		{"history shorter than window", func(c *Config) {
			c.Trading.SMAPeriod = 600
			c.Data.HistoryYears = 1
		}},
		{"invalid manual position", func(c *Config) { c.Trading.ManualPosition = "LONG" }},
		{"missing symbols", func(c *Config) { c.Trading.BenchmarkSymbol = "" }},
		{"telegram enabled without token", func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.ChatID = "42"
		}},
		{"email enabled without recipients", func(c *Config) {
			c.Alerting.Email.Enabled = true
			c.Alerting.Email.Host = "smtp.example.com"
			c.Alerting.Email.From = "a@example.com"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("load defaults: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsManualPositions(t *testing.T) {
	for _, p := range []string{"", "CASH", "HELD"} {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("load defaults: %v", err)
		}
		cfg.Trading.ManualPosition = p
		if err := cfg.Validate(); err != nil {
			t.Fatalf("manual position %q should validate: %v", p, err)
		}
	}
}

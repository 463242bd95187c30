package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ETHERSCAN_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("expected API key, got %q", cfg.APIKey)
	}
	if cfg.MaxWallets != DefaultMaxWallets {
		t.Errorf("expected default max wallets %d, got %d", DefaultMaxWallets, cfg.MaxWallets)
	}
	if cfg.RateLimitInterval != DefaultRateLimitInterval {
		t.Errorf("expected default rate limit interval, got %v", cfg.RateLimitInterval)
	}
	if !cfg.IncludeAirdrops {
		t.Error("airdrops are included by default")
	}
	if cfg.OutputFormat != "table" {
		t.Errorf("expected table format, got %q", cfg.OutputFormat)
	}
	if cfg.Currency != "ETH" {
		t.Errorf("expected ETH currency, got %q", cfg.Currency)
	}
}

func TestLoad_MissingAPIKeyFails(t *testing.T) {
	t.Setenv("ETHERSCAN_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ETHERSCAN_API_KEY", "test-key")
	t.Setenv("MAX_EARLY_WALLETS", "10")
	t.Setenv("RATE_LIMIT_DELAY", "0.5")
	t.Setenv("INCLUDE_LIKELY_AIRDROPS", "false")
	t.Setenv("MIN_TOKEN_AMOUNT", "2.5")
	t.Setenv("OUTPUT_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxWallets != 10 {
		t.Errorf("expected 10, got %d", cfg.MaxWallets)
	}
	if cfg.RateLimitInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", cfg.RateLimitInterval)
	}
	if cfg.IncludeAirdrops {
		t.Error("expected airdrops excluded")
	}
	if cfg.MinTokenAmount != 2.5 {
		t.Errorf("expected 2.5, got %f", cfg.MinTokenAmount)
	}
	if cfg.OutputFormat != "json" {
		t.Errorf("expected json, got %q", cfg.OutputFormat)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("ETHERSCAN_API_KEY", "test-key")
	t.Setenv("MAX_EARLY_WALLETS", "lots")
	t.Setenv("RATE_LIMIT_DELAY", "-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxWallets != DefaultMaxWallets {
		t.Errorf("expected fallback, got %d", cfg.MaxWallets)
	}
	if cfg.RateLimitInterval != DefaultRateLimitInterval {
		t.Errorf("expected fallback, got %v", cfg.RateLimitInterval)
	}
}

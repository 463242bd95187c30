// Package config loads tracker configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the environment leaves a knob unset.
const (
	DefaultMaxWallets          = 50
	DefaultRateLimitInterval   = 200 * time.Millisecond
	DefaultMaxScanPages        = 100
	DefaultOutputFormat        = "table"
	DefaultCurrency            = "ETH"
	DefaultWorkerCount         = 4
	DefaultFanOutMinRecipients = 10
	DefaultFanOutWindowBlocks  = 5
)

// Config holds runtime configuration.
type Config struct {
	// APIKey authenticates against the Etherscan-compatible API. Required.
	APIKey string

	// APIBaseURL overrides the provider endpoint; empty uses the client
	// default.
	APIBaseURL string

	// WSEndpoint is the JSON-RPC WebSocket endpoint for live watching.
	WSEndpoint string

	// PostgresDSN and ClickhouseDSN enable persistence when set.
	PostgresDSN   string
	ClickhouseDSN string

	MaxWallets        int
	RateLimitInterval time.Duration
	IncludeAirdrops   bool
	MinTokenAmount    float64
	MaxScanPages      int
	OutputFormat      string
	Currency          string

	// Tuning knobs; zero values fall back to component defaults.
	WorkerCount         int
	FetchMaxAttempts    int
	FanOutMinRecipients int
	FanOutWindowBlocks  int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first without overriding existing variables.
func Load() (*Config, error) {
	// Missing .env is fine; system env vars are the source of truth.
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:            os.Getenv("ETHERSCAN_API_KEY"),
		APIBaseURL:        os.Getenv("ETHERSCAN_API_URL"),
		WSEndpoint:        os.Getenv("ETH_WS_ENDPOINT"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		ClickhouseDSN:     os.Getenv("CLICKHOUSE_DSN"),
		MaxWallets:        envInt("MAX_EARLY_WALLETS", DefaultMaxWallets),
		RateLimitInterval: envSeconds("RATE_LIMIT_DELAY", DefaultRateLimitInterval),
		IncludeAirdrops:   envBool("INCLUDE_LIKELY_AIRDROPS", true),
		MinTokenAmount:    envFloat("MIN_TOKEN_AMOUNT", 0),
		MaxScanPages:      envInt("MAX_SCAN_PAGES", DefaultMaxScanPages),
		OutputFormat:      envString("OUTPUT_FORMAT", DefaultOutputFormat),
		Currency:          envString("NATIVE_CURRENCY", DefaultCurrency),

		WorkerCount:         envInt("WORKER_COUNT", DefaultWorkerCount),
		FetchMaxAttempts:    envInt("FETCH_MAX_ATTEMPTS", 0),
		FanOutMinRecipients: envInt("FANOUT_MIN_RECIPIENTS", DefaultFanOutMinRecipients),
		FanOutWindowBlocks:  int64(envInt("FANOUT_BLOCK_WINDOW", DefaultFanOutWindowBlocks)),
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ETHERSCAN_API_KEY is required")
	}
	if cfg.MaxWallets <= 0 {
		return nil, fmt.Errorf("MAX_EARLY_WALLETS must be positive, got %d", cfg.MaxWallets)
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envSeconds parses a float number of seconds.
func envSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return fallback
	}
	return time.Duration(f * float64(time.Second))
}

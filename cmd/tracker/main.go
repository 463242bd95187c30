// Command tracker discovers the earliest unique wallets that received an
// ERC-20 token and classifies each one as buyer or airdrop recipient.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/config"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/estimator"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ethereum"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/fetcher"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/gascost"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/pricing"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ratelimit"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/reporting"
	chstore "github.com/GentianSadiku/eth-wallet-tracker/internal/storage/clickhouse"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/storage/migrations"
	pgstore "github.com/GentianSadiku/eth-wallet-tracker/internal/storage/postgres"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/tracker"
)

func main() {
	logger := log.New(os.Stderr, "[tracker] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	token := flag.String("token", "", "ERC-20 token contract address (required)")
	maxWallets := flag.Int("max-wallets", cfg.MaxWallets, "Number of early wallets to discover")
	includeAirdrops := flag.Bool("include-airdrops", cfg.IncludeAirdrops, "Keep airdrop-classified wallets in the result")
	minAmount := flag.Float64("min-amount", cfg.MinTokenAmount, "Minimum qualifying transfer amount in whole tokens")
	maxPages := flag.Int("max-pages", cfg.MaxScanPages, "Provider page budget per run")
	format := flag.String("format", cfg.OutputFormat, "Output format: table, csv, or json")
	output := flag.String("output", "", "Write the report to a file instead of stdout")
	timeout := flag.Duration("timeout", 0, "Abort the run after this duration (0 = no deadline)")
	partial := flag.Bool("partial", false, "Return a flagged partial result on timeout instead of failing")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string for run persistence (optional)")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string for the transfer archive (optional)")
	verbose := flag.Bool("verbose", false, "Verbose logging")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "Error: --token is required")
		flag.Usage()
		os.Exit(1)
	}
	outFormat, err := reporting.ParseFormat(*format)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var clientOpts []ethereum.ClientOption
	if cfg.APIBaseURL != "" {
		clientOpts = append(clientOpts, ethereum.WithBaseURL(cfg.APIBaseURL))
	}
	clientOpts = append(clientOpts, ethereum.WithCurrency(cfg.Currency), ethereum.WithLogger(logger, *verbose))
	client := ethereum.NewClient(cfg.APIKey, clientOpts...)

	limiter := ratelimit.New(cfg.RateLimitInterval)
	pages := fetcher.New(fetcher.Options{
		Source:      client,
		Limiter:     limiter,
		MaxAttempts: cfg.FetchMaxAttempts,
		Logger:      logger,
		Verbose:     *verbose,
	})
	prices := pricing.New(pricing.Options{
		Source:  client,
		Limiter: limiter,
		Logger:  logger,
		Verbose: *verbose,
	})
	est := estimator.New(estimator.Options{
		Details: client,
		Prices:  prices,
		Limiter: limiter,
		Logger:  logger,
		Verbose: *verbose,
	})
	gas := gascost.New(gascost.Options{
		Details:  client,
		Prices:   prices,
		Limiter:  limiter,
		Currency: cfg.Currency,
		Logger:   logger,
		Verbose:  *verbose,
	})

	opts := tracker.Options{
		Pages:               pages,
		Tokens:              client,
		Estimator:           est,
		Gas:                 gas,
		Limiter:             limiter,
		Concurrency:         cfg.WorkerCount,
		MaxPages:            *maxPages,
		FanOutMinRecipients: cfg.FanOutMinRecipients,
		FanOutWindowBlocks:  cfg.FanOutWindowBlocks,
		Logger:              logger,
		Verbose:             *verbose,
	}
	if *minAmount > 0 {
		opts.MinRawAmount = rawAmountFloor(ctx, client, limiter, *token, *minAmount)
	}

	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		opts.RunStore = pgstore.NewRunStore(pool)
		opts.WalletStore = pgstore.NewWalletRecordStore(pool)
	}
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse: %v", err)
		}
		defer conn.Close()
		opts.ArchiveStore = chstore.NewTransferEventStore(conn)
	}

	engine := tracker.New(opts)

	result, err := engine.Discover(ctx, *token, tracker.DiscoverOptions{
		MaxWallets:      *maxWallets,
		IncludeAirdrops: *includeAirdrops,
		PartialResults:  *partial,
		Timeout:         *timeout,
	})
	if err != nil && !errors.Is(err, tracker.ErrDiscoveryExhausted) {
		logger.Fatalf("discovery failed: %v", err)
	}
	if err != nil {
		logger.Printf("page budget exhausted; reporting %d wallets found so far", len(result.Records))
	}

	dest := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			logger.Fatalf("create output file: %v", err)
		}
		defer f.Close()
		dest = f
	}
	if err := reporting.Render(dest, result, outFormat); err != nil {
		logger.Fatalf("render report: %v", err)
	}
}

// rawAmountFloor converts a whole-token threshold into raw units using the
// token's decimals. Falls back to 18 decimals when metadata is unavailable;
// the floor is a filter, not a correctness guarantee.
func rawAmountFloor(ctx context.Context, client *ethereum.Client, limiter *ratelimit.Limiter, tokenAddress string, amount float64) *big.Int {
	decimals := 18
	lookupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := limiter.Wait(lookupCtx); err == nil {
		if info, err := client.TokenInfo(lookupCtx, tokenAddress); err == nil && info != nil && info.Decimals > 0 {
			decimals = info.Decimals
		}
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	raw, _ := new(big.Float).Mul(big.NewFloat(amount), scale).Int(nil)
	return raw
}

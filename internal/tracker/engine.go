// Package tracker coordinates the discovery pipeline: fetch transfer pages,
// build the first-seen wallet ledger, enrich each wallet in parallel, and
// classify the result.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/classifier"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ledger"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/observability"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ratelimit"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/storage"
)

// Defaults for discovery runs.
const (
	DefaultMaxWallets  = 50
	DefaultConcurrency = 4
)

// PageSource fetches one validated page of transfer events.
// *fetcher.Fetcher satisfies this.
type PageSource interface {
	Fetch(ctx context.Context, tokenAddress, cursor string) (*domain.TransferPage, error)
}

// InvestmentEstimator derives the paired counter-value for a first transfer.
// *estimator.Estimator satisfies this.
type InvestmentEstimator interface {
	Estimate(ctx context.Context, ev *domain.TransferEvent) (*domain.EstimatedInvestment, error)
}

// GasAnnotator computes the fiat execution fee for a transaction.
// *gascost.Annotator satisfies this.
type GasAnnotator interface {
	GasCostFiat(ctx context.Context, txHash string, timestamp int64) (*float64, error)
}

// Engine runs discovery end to end.
type Engine struct {
	pages     PageSource
	tokens    domain.TokenInfoSource
	estimator InvestmentEstimator
	gas       GasAnnotator
	limiter   *ratelimit.Limiter

	concurrency         int
	maxPages            int
	minRawAmount        *big.Int
	fanOutMinRecipients int
	fanOutWindowBlocks  int64

	// Optional persistence; nil stores are skipped.
	runStore     storage.RunStore
	walletStore  storage.WalletRecordStore
	archiveStore storage.TransferEventStore

	logger  *log.Logger
	verbose bool
}

// Options for creating an Engine.
type Options struct {
	// Required sources
	Pages     PageSource
	Tokens    domain.TokenInfoSource
	Estimator InvestmentEstimator
	Gas       GasAnnotator
	Limiter   *ratelimit.Limiter

	// Tuning
	Concurrency         int      // parallel wallet enrichment, default DefaultConcurrency
	MaxPages            int      // scanning budget, default ledger.DefaultMaxPages
	MinRawAmount        *big.Int // qualifying transfer floor, nil disables
	FanOutMinRecipients int
	FanOutWindowBlocks  int64

	// Optional persistence
	RunStore     storage.RunStore
	WalletStore  storage.WalletRecordStore
	ArchiveStore storage.TransferEventStore

	Logger  *log.Logger
	Verbose bool
}

// New creates an Engine.
func New(opts Options) *Engine {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		pages:               opts.Pages,
		tokens:              opts.Tokens,
		estimator:           opts.Estimator,
		gas:                 opts.Gas,
		limiter:             opts.Limiter,
		concurrency:         concurrency,
		maxPages:            opts.MaxPages,
		minRawAmount:        opts.MinRawAmount,
		fanOutMinRecipients: opts.FanOutMinRecipients,
		fanOutWindowBlocks:  opts.FanOutWindowBlocks,
		runStore:            opts.RunStore,
		walletStore:         opts.WalletStore,
		archiveStore:        opts.ArchiveStore,
		logger:              logger,
		verbose:             opts.Verbose,
	}
}

// DiscoverOptions control one discovery run.
type DiscoverOptions struct {
	// MaxWallets caps the result size. Defaults to DefaultMaxWallets.
	MaxWallets int

	// IncludeAirdrops keeps airdrop-classified wallets in the result. When
	// false, excluded wallets free their ranks and scanning continues for
	// replacements within the page budget.
	IncludeAirdrops bool

	// PartialResults returns a flagged partial ledger on deadline instead of
	// ErrTimedOut.
	PartialResults bool

	// Timeout bounds the whole run. Zero means no deadline.
	Timeout time.Duration
}

// walletState carries one discovered wallet through enrichment and
// classification.
type walletState struct {
	entry      *ledger.Entry
	investment *domain.EstimatedInvestment
	gasFiat    *float64
	enriched   bool
	label      domain.Classification
	rule       string
}

// Discover scans the token's transfer history and returns the ordered,
// classified early-wallet ledger.
//
// On budget exhaustion the partial ledger is returned together with
// ErrDiscoveryExhausted. On deadline the run fails with ErrTimedOut unless
// PartialResults is set, in which case a ledger flagged Incomplete carries
// the fully processed wallets.
func (e *Engine) Discover(ctx context.Context, tokenAddress string, opts DiscoverOptions) (*domain.Ledger, error) {
	address := domain.NormalizeAddress(tokenAddress)
	if address == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTokenAddress, tokenAddress)
	}
	maxWallets := opts.MaxWallets
	if maxWallets <= 0 {
		maxWallets = DefaultMaxWallets
	}

	startedAt := time.Now()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	token := e.resolveToken(ctx, address)

	index := classifier.NewTransferIndex()
	var archived []*domain.TransferEvent
	builder := ledger.NewBuilder(ledger.Options{
		MaxPages:     e.maxPages,
		MinRawAmount: e.minRawAmount,
		OnEvent: func(ev *domain.TransferEvent) {
			index.Observe(ev)
			if e.archiveStore != nil {
				archived = append(archived, ev)
			}
		},
		Logger:  e.logger,
		Verbose: e.verbose,
	})
	cls := classifier.New(classifier.Options{
		Index:               index,
		FanOutMinRecipients: e.fanOutMinRecipients,
		FanOutWindowBlocks:  e.fanOutWindowBlocks,
		Logger:              e.logger,
		Verbose:             e.verbose,
	})

	fetch := func(ctx context.Context, cursor string) (*domain.TransferPage, error) {
		page, err := e.pages.Fetch(ctx, address, cursor)
		if err == nil {
			observability.RecordPageFetched()
			observability.RecordTransfersScanned(len(page.Events))
		}
		return page, err
	}

	var (
		states    []*walletState
		kept      []*walletState
		exhausted error
		timedOut  bool
	)
	target := maxWallets

	for {
		err := builder.Collect(ctx, fetch, target)
		switch {
		case err == nil:
		case errors.Is(err, ledger.ErrDiscoveryExhausted):
			exhausted = err
		case errors.Is(err, context.DeadlineExceeded):
			timedOut = true
		case errors.Is(err, context.Canceled):
			// Caller cancellation is not a timeout; surface it untranslated.
			observability.RecordRun("canceled", time.Since(startedAt).Seconds())
			return nil, err
		case errors.Is(err, ledger.ErrOrderViolation):
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		default:
			observability.RecordRun("error", time.Since(startedAt).Seconds())
			return nil, err
		}

		for _, entry := range builder.Entries()[len(states):] {
			states = append(states, &walletState{entry: entry})
		}

		if !timedOut {
			if err := e.enrich(ctx, token, states); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					timedOut = true
				} else if errors.Is(err, context.Canceled) {
					observability.RecordRun("canceled", time.Since(startedAt).Seconds())
					return nil, err
				} else {
					observability.RecordRun("error", time.Since(startedAt).Seconds())
					return nil, err
				}
			}
		}

		// Classification is re-run over the final index each round so fan-out
		// evidence gathered later still applies to earlier wallets.
		kept = kept[:0]
		for _, s := range states {
			if !s.enriched {
				continue
			}
			s.label, s.rule = cls.Classify(s.entry.First, s.investment, token.Decimals)
			if !opts.IncludeAirdrops && s.label == domain.ClassificationAirdrop {
				continue
			}
			kept = append(kept, s)
		}

		if timedOut || exhausted != nil || len(kept) >= maxWallets || builder.StreamDone() {
			break
		}
		// Excluded wallets freed ranks; scan further for replacements.
		target = len(states) + (maxWallets - len(kept))
	}

	if timedOut && !opts.PartialResults {
		observability.RecordRun("timeout", time.Since(startedAt).Seconds())
		return nil, fmt.Errorf("%w after %v", ErrTimedOut, time.Since(startedAt).Round(time.Millisecond))
	}

	if len(kept) > maxWallets {
		kept = kept[:maxWallets]
	}
	records := make([]*domain.WalletRecord, 0, len(kept))
	for i, s := range kept {
		first := s.entry.First
		records = append(records, &domain.WalletRecord{
			Address:        s.entry.Address,
			Rank:           i + 1,
			AmountReceived: first.RawAmount,
			FirstTxHash:    first.TxHash,
			FirstBlock:     first.BlockNumber,
			FirstTxIndex:   first.TxIndex,
			FirstLogIndex:  first.LogIndex,
			FirstTimestamp: first.Timestamp,
			Classification: s.label,
			Investment:     s.investment,
			GasCostFiat:    s.gasFiat,
		})
		observability.RecordClassification(string(s.label))
	}

	result := &domain.Ledger{
		Token:            token,
		Records:          records,
		TransfersScanned: builder.TransfersScanned(),
		UniqueRecipients: builder.UniqueRecipients(),
		AnalyzedAt:       time.Now().Unix(),
	}
	status := "ok"
	switch {
	case timedOut:
		result.Incomplete = true
		result.IncompleteReason = "run deadline exceeded"
		status = "partial"
	case exhausted != nil:
		result.Incomplete = true
		result.IncompleteReason = "scanning budget exhausted"
		status = "partial"
	}

	observability.RecordRun(status, time.Since(startedAt).Seconds())
	observability.RecordWalletsDiscovered(len(records))
	e.persist(ctx, result, opts, maxWallets, startedAt.Unix(), archived)

	if exhausted != nil {
		return result, exhausted
	}
	return result, nil
}

// resolveToken fetches token metadata, degrading to address-only defaults
// when the provider cannot answer. Metadata is presentation-level; a lookup
// failure must not abort discovery.
func (e *Engine) resolveToken(ctx context.Context, address string) domain.Token {
	fallback := domain.Token{Address: address, Symbol: "UNKNOWN", Decimals: 18}
	if e.tokens == nil {
		return fallback
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return fallback
	}
	token, err := e.tokens.TokenInfo(ctx, address)
	if err != nil || token == nil {
		e.log("token metadata unavailable for %s: %v", address, err)
		return fallback
	}
	t := *token
	t.Address = address
	if t.Decimals <= 0 {
		t.Decimals = 18
	}
	if t.Symbol == "" {
		t.Symbol = "UNKNOWN"
	}
	return t
}

// enrich runs investment estimation and gas annotation for every wallet not
// yet enriched. Wallets are independent, so enrichment fans out; results land
// in per-wallet state, and ordering is unaffected.
func (e *Engine) enrich(ctx context.Context, token domain.Token, states []*walletState) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, s := range states {
		if s.enriched {
			continue
		}
		s := s
		g.Go(func() error {
			inv, err := e.estimator.Estimate(gctx, s.entry.First)
			if err != nil {
				return err
			}
			gas, err := e.gas.GasCostFiat(gctx, s.entry.First.TxHash, s.entry.First.Timestamp)
			if err != nil {
				return err
			}
			s.investment = inv
			s.gasFiat = gas
			s.enriched = true
			if inv != nil {
				observability.DefaultMetrics.InvestmentsPaired.Inc()
			}
			if gas != nil {
				observability.DefaultMetrics.GasCostsAnnotated.Inc()
			}
			return nil
		})
	}
	return g.Wait()
}

// persist writes the run, its wallet records, and the scanned-event archive.
// Best effort: storage failures are logged, never fatal to the run.
func (e *Engine) persist(ctx context.Context, result *domain.Ledger, opts DiscoverOptions, maxWallets int, startedAt int64, archived []*domain.TransferEvent) {
	if e.runStore == nil && e.walletStore == nil && e.archiveStore == nil {
		return
	}
	runID := RunID(result.Token.Address, maxWallets, opts.IncludeAirdrops, startedAt)

	if e.runStore != nil {
		run := &domain.DiscoveryRun{
			RunID:            runID,
			TokenAddress:     result.Token.Address,
			TokenSymbol:      result.Token.Symbol,
			MaxWallets:       maxWallets,
			IncludeAirdrops:  opts.IncludeAirdrops,
			WalletsFound:     len(result.Records),
			TransfersScanned: result.TransfersScanned,
			Incomplete:       result.Incomplete,
			IncompleteReason: result.IncompleteReason,
			StartedAt:        startedAt,
			FinishedAt:       result.AnalyzedAt,
		}
		if err := e.runStore.Insert(ctx, run); err != nil {
			e.logger.Printf("[tracker] persist run %s: %v", runID, err)
			observability.DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "insert_run").Inc()
		}
	}
	if e.walletStore != nil && len(result.Records) > 0 {
		if err := e.walletStore.InsertBulk(ctx, runID, result.Records); err != nil {
			e.logger.Printf("[tracker] persist wallet records for run %s: %v", runID, err)
			observability.DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "insert_wallet_records").Inc()
		}
	}
	if e.archiveStore != nil && len(archived) > 0 {
		if err := e.archiveStore.InsertBulk(ctx, archived); err != nil {
			e.logger.Printf("[tracker] archive %d transfer events: %v", len(archived), err)
			observability.DefaultMetrics.DBQueryErrors.WithLabelValues("clickhouse", "insert_transfer_events").Inc()
		}
	}
}

func (e *Engine) log(format string, args ...interface{}) {
	if e.verbose {
		e.logger.Printf("[tracker] "+format, args...)
	}
}

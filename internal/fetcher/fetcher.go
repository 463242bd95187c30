// Package fetcher wraps a transfer-log source with pacing, bounded retry, and
// pagination cursoring.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/observability"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ratelimit"
)

// Default retry configuration.
const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Errors surfaced after local retry handling.
var (
	// ErrProviderRateLimited is returned when the provider kept signalling
	// rate limiting after all retry attempts.
	ErrProviderRateLimited = errors.New("provider rate limited")

	// ErrProviderUnavailable is returned when transient provider errors
	// persisted through all retry attempts.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMalformedResponse is returned when a page is missing required
	// fields. Not retryable: dropping events would corrupt ordering.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Fetcher paginates through a token's transfer history. Each underlying call
// waits on the shared limiter first; provider errors are retried with
// exponential backoff up to a bounded attempt count.
type Fetcher struct {
	source      domain.TransferLogSource
	limiter     *ratelimit.Limiter
	maxAttempts int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	logger      *log.Logger
	verbose     bool
}

// Options configures a Fetcher.
type Options struct {
	Source      domain.TransferLogSource
	Limiter     *ratelimit.Limiter
	MaxAttempts int
	RetryDelay  time.Duration
	MaxDelay    time.Duration
	Logger      *log.Logger
	Verbose     bool
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Fetcher{
		source:      opts.Source,
		limiter:     opts.Limiter,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		maxDelay:    maxDelay,
		backoffMult: DefaultBackoffMult,
		logger:      logger,
		verbose:     opts.Verbose,
	}
}

// Fetch returns one page of transfer events for the token. The cursor is
// opaque: pass "" for the first page and round-trip page.NextCursor for the
// rest. Identical cursor input against a fixed provider state yields the same
// page, which keeps retries safe.
func (f *Fetcher) Fetch(ctx context.Context, tokenAddress, cursor string) (*domain.TransferPage, error) {
	delay := f.retryDelay
	var lastErr error
	rateLimited := false

	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			reason := "unavailable"
			if rateLimited {
				reason = "rate_limited"
			}
			observability.DefaultMetrics.FetchRetries.WithLabelValues(reason).Inc()
			f.log("retry %d/%d after %v (cursor=%q): %v", attempt, f.maxAttempts-1, delay, cursor, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * f.backoffMult)
			if delay > f.maxDelay {
				delay = f.maxDelay
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		page, err := f.source.Page(ctx, tokenAddress, cursor)
		observability.DefaultMetrics.ProviderCallLatency.WithLabelValues("transfer_page").Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			rateLimited = errors.Is(err, domain.ErrRateLimited)
			continue
		}

		if err := validatePage(page); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}

		return page, nil
	}

	if rateLimited {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderRateLimited, f.maxAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderUnavailable, f.maxAttempts, lastErr)
}

// validatePage checks that every event carries the fields ordering and
// admission depend on. A bad event fails the whole page; silently dropping it
// would corrupt first-seen ordering.
func validatePage(page *domain.TransferPage) error {
	if page == nil {
		return errors.New("nil page")
	}
	for i, ev := range page.Events {
		switch {
		case ev == nil:
			return fmt.Errorf("event %d: nil", i)
		case ev.From == "" || ev.To == "":
			return fmt.Errorf("event %d (tx %s): missing sender or recipient", i, ev.TxHash)
		case ev.TxHash == "":
			return fmt.Errorf("event %d: missing transaction hash", i)
		case ev.RawAmount == nil:
			return fmt.Errorf("event %d (tx %s): missing amount", i, ev.TxHash)
		case ev.BlockNumber <= 0:
			return fmt.Errorf("event %d (tx %s): missing block number", i, ev.TxHash)
		case ev.Timestamp <= 0:
			return fmt.Errorf("event %d (tx %s): missing timestamp", i, ev.TxHash)
		}
	}
	return nil
}

func (f *Fetcher) log(format string, args ...interface{}) {
	if f.verbose {
		f.logger.Printf("[fetcher] "+format, args...)
	}
}

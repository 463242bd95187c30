// Package pricing resolves historical fiat prices for native currencies, with
// hour-bucket caching over an upstream price source.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/observability"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ratelimit"
)

// BucketSeconds is the cache granularity. Historical daily/hourly price feeds
// do not resolve finer than this, so two timestamps in the same bucket share
// one upstream lookup.
const BucketSeconds = 3600

type cacheKey struct {
	currency string
	bucket   int64
}

type cacheEntry struct {
	price float64
	err   error
}

// Service caches price lookups. Failed lookups are cached too, so one
// unavailable bucket does not trigger a provider call per wallet.
type Service struct {
	source  domain.PriceSource
	limiter *ratelimit.Limiter
	logger  *log.Logger
	verbose bool

	mu       sync.Mutex
	cache    map[cacheKey]cacheEntry
	inflight map[cacheKey]chan struct{}
}

// Options configures a Service.
type Options struct {
	Source  domain.PriceSource
	Limiter *ratelimit.Limiter
	Logger  *log.Logger
	Verbose bool
}

// New creates a Service.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		source:  opts.Source,
		limiter: opts.Limiter,
		logger:  logger,
		verbose:  opts.Verbose,
		cache:    make(map[cacheKey]cacheEntry),
		inflight: make(map[cacheKey]chan struct{}),
	}
}

// PriceAt returns the fiat price of one unit of currency at the given Unix
// timestamp. Unavailable prices return domain.ErrPriceUnavailable; callers
// degrade to an unknown fiat value rather than failing the run.
func (s *Service) PriceAt(ctx context.Context, currency string, timestamp int64) (float64, error) {
	if timestamp <= 0 {
		return 0, fmt.Errorf("%w: invalid timestamp %d", domain.ErrPriceUnavailable, timestamp)
	}
	key := cacheKey{currency: currency, bucket: timestamp / BucketSeconds}

	// Concurrent misses on one bucket share a single upstream call; only
	// the first caller goes to the wire, the rest wait for its cache write.
	var flight chan struct{}
	for {
		s.mu.Lock()
		if entry, ok := s.cache[key]; ok {
			s.mu.Unlock()
			return entry.price, entry.err
		}
		wait, ok := s.inflight[key]
		if !ok {
			flight = make(chan struct{})
			s.inflight[key] = flight
			s.mu.Unlock()
			break
		}
		s.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	price, err := s.resolve(ctx, currency, timestamp, key)

	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
	close(flight)

	return price, err
}

// resolve performs the upstream lookup and caches the outcome. Context
// errors are not cached; the bucket stays unresolved and the next caller
// retries.
func (s *Service) resolve(ctx context.Context, currency string, timestamp int64, key cacheKey) (float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	price, err := s.source.PriceAt(ctx, currency, timestamp)
	if err != nil {
		// Context errors are the caller's problem, not a fact about the bucket.
		if ctx.Err() != nil {
			return 0, err
		}
		if !errors.Is(err, domain.ErrPriceUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrPriceUnavailable, err)
		}
		s.log("price lookup failed for %s@%d: %v", currency, timestamp, err)
		observability.DefaultMetrics.PriceLookups.WithLabelValues("unavailable").Inc()
		s.store(key, cacheEntry{err: err})
		return 0, err
	}
	if price <= 0 {
		err := fmt.Errorf("%w: non-positive price %f for %s@%d", domain.ErrPriceUnavailable, price, currency, timestamp)
		observability.DefaultMetrics.PriceLookups.WithLabelValues("unavailable").Inc()
		s.store(key, cacheEntry{err: err})
		return 0, err
	}

	observability.DefaultMetrics.PriceLookups.WithLabelValues("ok").Inc()
	s.store(key, cacheEntry{price: price})
	return price, nil
}

func (s *Service) store(key cacheKey, entry cacheEntry) {
	s.mu.Lock()
	s.cache[key] = entry
	s.mu.Unlock()
}

func (s *Service) log(format string, args ...interface{}) {
	if s.verbose {
		s.logger.Printf("[pricing] "+format, args...)
	}
}

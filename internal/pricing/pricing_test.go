package pricing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ratelimit"
)

type fakePriceSource struct {
	price float64
	err   error
	calls int
}

func (f *fakePriceSource) PriceAt(_ context.Context, _ string, _ int64) (float64, error) {
	f.calls++
	return f.price, f.err
}

func TestPriceAt_CachesByHourBucket(t *testing.T) {
	source := &fakePriceSource{price: 2000}
	s := New(Options{Source: source, Limiter: ratelimit.New(0)})
	ctx := context.Background()

	base := int64(1700000000) - int64(1700000000)%BucketSeconds

	// Two timestamps in the same hour share one lookup.
	for _, ts := range []int64{base + 10, base + 3000} {
		price, err := s.PriceAt(ctx, "ETH", ts)
		if err != nil {
			t.Fatalf("PriceAt(%d): %v", ts, err)
		}
		if price != 2000 {
			t.Errorf("expected 2000, got %f", price)
		}
	}
	if source.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", source.calls)
	}

	// Next hour is a separate bucket.
	if _, err := s.PriceAt(ctx, "ETH", base+BucketSeconds+1); err != nil {
		t.Fatalf("PriceAt: %v", err)
	}
	if source.calls != 2 {
		t.Errorf("expected 2 upstream calls, got %d", source.calls)
	}
}

func TestPriceAt_CachesByCurrency(t *testing.T) {
	source := &fakePriceSource{price: 100}
	s := New(Options{Source: source, Limiter: ratelimit.New(0)})
	ctx := context.Background()

	if _, err := s.PriceAt(ctx, "ETH", 1700000000); err != nil {
		t.Fatalf("PriceAt: %v", err)
	}
	if _, err := s.PriceAt(ctx, "BNB", 1700000000); err != nil {
		t.Fatalf("PriceAt: %v", err)
	}
	if source.calls != 2 {
		t.Errorf("expected separate lookups per currency, got %d calls", source.calls)
	}
}

func TestPriceAt_CachesUnavailability(t *testing.T) {
	source := &fakePriceSource{err: domain.ErrPriceUnavailable}
	s := New(Options{Source: source, Limiter: ratelimit.New(0)})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.PriceAt(ctx, "ETH", 1700000000)
		if !errors.Is(err, domain.ErrPriceUnavailable) {
			t.Fatalf("expected ErrPriceUnavailable, got %v", err)
		}
	}
	if source.calls != 1 {
		t.Errorf("unavailable bucket must not be re-fetched, got %d calls", source.calls)
	}
}

func TestPriceAt_WrapsUpstreamErrors(t *testing.T) {
	source := &fakePriceSource{err: errors.New("boom")}
	s := New(Options{Source: source, Limiter: ratelimit.New(0)})

	_, err := s.PriceAt(context.Background(), "ETH", 1700000000)
	if !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable wrapping, got %v", err)
	}
}

func TestPriceAt_RejectsNonPositivePrice(t *testing.T) {
	source := &fakePriceSource{price: 0}
	s := New(Options{Source: source, Limiter: ratelimit.New(0)})

	_, err := s.PriceAt(context.Background(), "ETH", 1700000000)
	if !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestPriceAt_InvalidTimestamp(t *testing.T) {
	source := &fakePriceSource{price: 100}
	s := New(Options{Source: source, Limiter: ratelimit.New(0)})

	_, err := s.PriceAt(context.Background(), "ETH", 0)
	if !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
	if source.calls != 0 {
		t.Errorf("invalid timestamp must not reach upstream, got %d calls", source.calls)
	}
}

// gatedPriceSource blocks every lookup until released.
type gatedPriceSource struct {
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedPriceSource) PriceAt(ctx context.Context, _ string, _ int64) (float64, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
		return 2000, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestPriceAt_ConcurrentMissesShareOneLookup(t *testing.T) {
	source := &gatedPriceSource{release: make(chan struct{})}
	s := New(Options{Source: source, Limiter: ratelimit.New(0)})
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	prices := make([]float64, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prices[i], errs[i] = s.PriceAt(ctx, "ETH", 1700000000)
		}(i)
	}

	// Let the callers pile up on the in-flight bucket before releasing.
	time.Sleep(50 * time.Millisecond)
	close(source.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if prices[i] != 2000 {
			t.Errorf("caller %d: expected 2000, got %f", i, prices[i])
		}
	}
	if got := source.calls.Load(); got != 1 {
		t.Errorf("expected one shared upstream call, got %d", got)
	}
}

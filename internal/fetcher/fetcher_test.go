package fetcher

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ratelimit"
)

// scriptedSource returns canned responses in sequence.
type scriptedSource struct {
	responses []scriptedResponse
	calls     int
}

type scriptedResponse struct {
	page *domain.TransferPage
	err  error
}

func (s *scriptedSource) Page(_ context.Context, _, _ string) (*domain.TransferPage, error) {
	if s.calls >= len(s.responses) {
		return nil, errors.New("unexpected extra call")
	}
	r := s.responses[s.calls]
	s.calls++
	return r.page, r.err
}

func validEvent(block int64, logIndex int) *domain.TransferEvent {
	return &domain.TransferEvent{
		TokenAddress: "0xtoken",
		From:         "0xsender",
		To:           "0xrecipient",
		RawAmount:    big.NewInt(500),
		BlockNumber:  block,
		TxHash:       "0xhash",
		LogIndex:     logIndex,
		Timestamp:    1700000000,
	}
}

func newTestFetcher(source domain.TransferLogSource, maxAttempts int) *Fetcher {
	return New(Options{
		Source:      source,
		Limiter:     ratelimit.New(0),
		MaxAttempts: maxAttempts,
		RetryDelay:  time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	})
}

func TestFetch_Success(t *testing.T) {
	source := &scriptedSource{responses: []scriptedResponse{
		{page: &domain.TransferPage{Events: []*domain.TransferEvent{validEvent(100, 0)}, NextCursor: "2"}},
	}}

	f := newTestFetcher(source, 5)
	page, err := f.Fetch(context.Background(), "0xtoken", "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(page.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(page.Events))
	}
	if page.NextCursor != "2" {
		t.Errorf("expected cursor 2, got %q", page.NextCursor)
	}
}

func TestFetch_RateLimitedThenSuccess(t *testing.T) {
	// Three rate-limit signals then a good page; 5 attempts is enough.
	source := &scriptedSource{responses: []scriptedResponse{
		{err: domain.ErrRateLimited},
		{err: domain.ErrRateLimited},
		{err: domain.ErrRateLimited},
		{page: &domain.TransferPage{Events: []*domain.TransferEvent{validEvent(100, 0)}}},
	}}

	f := newTestFetcher(source, 5)
	page, err := f.Fetch(context.Background(), "0xtoken", "")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(page.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(page.Events))
	}
	if source.calls != 4 {
		t.Errorf("expected 4 calls, got %d", source.calls)
	}
}

func TestFetch_RateLimitExhausted(t *testing.T) {
	source := &scriptedSource{responses: []scriptedResponse{
		{err: domain.ErrRateLimited},
		{err: domain.ErrRateLimited},
		{err: domain.ErrRateLimited},
		{err: domain.ErrRateLimited},
		{err: domain.ErrRateLimited},
	}}

	f := newTestFetcher(source, 5)
	_, err := f.Fetch(context.Background(), "0xtoken", "")
	if !errors.Is(err, ErrProviderRateLimited) {
		t.Fatalf("expected ErrProviderRateLimited, got %v", err)
	}
	if source.calls != 5 {
		t.Errorf("expected 5 attempts, got %d", source.calls)
	}
}

func TestFetch_TransientErrorExhausted(t *testing.T) {
	source := &scriptedSource{responses: []scriptedResponse{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
	}}

	f := newTestFetcher(source, 3)
	_, err := f.Fetch(context.Background(), "0xtoken", "")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestFetch_MalformedPageNotRetried(t *testing.T) {
	missing := validEvent(100, 0)
	missing.RawAmount = nil

	source := &scriptedSource{responses: []scriptedResponse{
		{page: &domain.TransferPage{Events: []*domain.TransferEvent{missing}}},
		{page: &domain.TransferPage{Events: []*domain.TransferEvent{validEvent(100, 0)}}},
	}}

	f := newTestFetcher(source, 5)
	_, err := f.Fetch(context.Background(), "0xtoken", "")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if source.calls != 1 {
		t.Errorf("malformed page must not be retried, got %d calls", source.calls)
	}
}

func TestFetch_ContextCancelledDuringBackoff(t *testing.T) {
	source := &scriptedSource{responses: []scriptedResponse{
		{err: domain.ErrRateLimited},
		{err: domain.ErrRateLimited},
	}}

	f := New(Options{
		Source:      source,
		Limiter:     ratelimit.New(0),
		MaxAttempts: 5,
		RetryDelay:  time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, "0xtoken", "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}
}

package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_PacesCalls(t *testing.T) {
	interval := 20 * time.Millisecond
	l := New(interval)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	elapsed := time.Since(start)

	// First call is immediate (burst 1), the next two wait one interval each.
	if elapsed < 2*interval-5*time.Millisecond {
		t.Errorf("expected at least ~%v of pacing, got %v", 2*interval, elapsed)
	}
}

func TestLimiter_DisabledInterval(t *testing.T) {
	l := New(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("disabled limiter should not block")
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := New(time.Hour)
	ctx := context.Background()

	// Exhaust the burst token.
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(cancelled); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

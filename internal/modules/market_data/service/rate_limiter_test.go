package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"screener_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

func TestLimiter_RetriesTransient(t *testing.T) {
	l := NewLimiter(2, 0, 3, time.Millisecond)

	calls := 0
	err := l.Do(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestLimiter_GivesUpAfterMaxRetries(t *testing.T) {
	l := NewLimiter(2, 0, 2, time.Millisecond)

	calls := 0
	sentinel := errors.New("still broken")
	err := l.Do(context.Background(), "test", func() error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	// первая попытка + maxRetries повторов
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestLimiter_InvalidDataNotRetried(t *testing.T) {
	l := NewLimiter(2, 0, 5, time.Millisecond)

	calls := 0
	err := l.Do(context.Background(), "test", func() error {
		calls++
		return ErrInvalidData
	})
	if !IsInvalidData(err) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on bad data)", calls)
	}
}

func TestLimiter_RateLimitBacksOffLonger(t *testing.T) {
	base := 5 * time.Millisecond
	l := NewLimiter(1, 0, 1, base)

	started := time.Now()
	_ = l.Do(context.Background(), "test", func() error {
		return ErrRateLimited
	})
	// один ретрай с ожиданием base*4
	if elapsed := time.Since(started); elapsed < 4*base {
		t.Errorf("elapsed %s, expected at least %s for rate-limit backoff", elapsed, 4*base)
	}
}

func TestLimiter_ContextCancel(t *testing.T) {
	l := NewLimiter(1, 0, 10, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := l.Do(ctx, "test", func() error {
		return errors.New("always failing")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLimiter_MinGap(t *testing.T) {
	gap := 20 * time.Millisecond
	l := NewLimiter(1, gap, 0, time.Millisecond)

	started := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Do(context.Background(), "test", func() error { return nil }); err != nil {
			t.Fatal(err)
		}
	}
	// три запроса => минимум два зазора
	if elapsed := time.Since(started); elapsed < 2*gap {
		t.Errorf("elapsed %s, expected at least %s from min gap", elapsed, 2*gap)
	}
}

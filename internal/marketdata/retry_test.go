package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type scriptedFetcher struct {
	errs  []error
	calls int
}

func (s *scriptedFetcher) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]PricePoint, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	return []PricePoint{{Date: Day(time.Now()), Close: decimal.NewFromInt(100)}}, nil
}

func newTestRetry(inner Fetcher, attempts int) (*RetryFetcher, *[]time.Duration) {
	r := NewRetryFetcher(inner, RetryOptions{
		Attempts:     attempts,
		InitialDelay: 2 * time.Second,
	}, noopLogger())

	var delays []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return r, &delays
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	inner := &scriptedFetcher{errs: []error{ErrUnavailable, nil}}
	r, _ := newTestRetry(inner, 3)

	series, err := r.Fetch(context.Background(), "QQQ", time.Now().AddDate(-1, 0, 0), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("expected the recovered series, got %d points", len(series))
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", inner.calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &scriptedFetcher{errs: []error{ErrUnavailable, ErrUnavailable, ErrUnavailable}}
	r, delays := newTestRetry(inner, 3)

	_, err := r.Fetch(context.Background(), "QQQ", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected wrapped ErrUnavailable, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.calls)
	}
	// No sleep after the final attempt.
	if len(*delays) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(*delays))
	}
}

func TestRetryBacksOffHarderOnRateLimit(t *testing.T) {
	generic := &scriptedFetcher{errs: []error{ErrUnavailable, ErrUnavailable, nil}}
	r, genericDelays := newTestRetry(generic, 3)
	if _, err := r.Fetch(context.Background(), "QQQ", time.Now().AddDate(-1, 0, 0), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	limited := &scriptedFetcher{errs: []error{ErrRateLimited, ErrRateLimited, nil}}
	rl, limitedDelays := newTestRetry(limited, 3)
	if _, err := rl.Fetch(context.Background(), "QQQ", time.Now().AddDate(-1, 0, 0), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if (*limitedDelays)[0] <= (*genericDelays)[0] {
		t.Fatalf("rate-limit backoff (%s) should exceed generic backoff (%s)",
			(*limitedDelays)[0], (*genericDelays)[0])
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &scriptedFetcher{errs: []error{ErrUnavailable, nil}}
	r, _ := newTestRetry(inner, 3)
	r.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := r.Fetch(ctx, "QQQ", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected no further attempts after cancellation, got %d", inner.calls)
	}
}

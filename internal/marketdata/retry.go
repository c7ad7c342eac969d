package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RetryOptions tune the bounded retry policy around a Fetcher.
type RetryOptions struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// MaxRateLimitDelay caps the longer backoff applied after a
	// rate-limit response.
	MaxRateLimitDelay time.Duration
}

// RetryFetcher wraps a Fetcher with exponential backoff. Rate-limit
// responses back off harder than generic transient failures.
type RetryFetcher struct {
	inner  Fetcher
	opts   RetryOptions
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryFetcher decorates inner with the bounded retry policy.
func NewRetryFetcher(inner Fetcher, opts RetryOptions, logger zerolog.Logger) *RetryFetcher {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 2 * time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.MaxRateLimitDelay <= 0 {
		opts.MaxRateLimitDelay = 60 * time.Second
	}

	return &RetryFetcher{
		inner:  inner,
		opts:   opts,
		logger: logger.With().Str("component", "retry_fetcher").Logger(),
		sleep:  sleepCtx,
	}
}

// Fetch attempts the underlying fetch up to Attempts times.
func (r *RetryFetcher) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]PricePoint, error) {
	delay := r.opts.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		series, err := r.inner.Fetch(ctx, symbol, start, end)
		if err == nil {
			return series, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if errors.Is(err, ErrRateLimited) {
			delay = minDuration(delay*3, r.opts.MaxRateLimitDelay)
			r.logger.Warn().Str("symbol", symbol).Int("attempt", attempt).
				Dur("next_delay", delay).Msg("rate limit detected")
		} else {
			delay = minDuration(delay*2, r.opts.MaxDelay)
			r.logger.Warn().Str("symbol", symbol).Int("attempt", attempt).
				Err(err).Dur("next_delay", delay).Msg("fetch attempt failed")
		}

		if attempt == r.opts.Attempts {
			break
		}
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch %s: retries exhausted: %w", symbol, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

var _ Fetcher = (*RetryFetcher)(nil)

package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one daily close for a symbol.
type PricePoint struct {
	Date  time.Time
	Close decimal.Decimal
}

// Fetcher retrieves a daily close series for a symbol over a date range.
// The returned slice is ordered by date ascending with no duplicates.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time) ([]PricePoint, error)
}

var (
	// ErrRateLimited indicates the upstream API rejected the request for
	// quota reasons; retriable with a longer backoff.
	ErrRateLimited = errors.New("marketdata: rate limited")
	// ErrUnavailable indicates a transient upstream failure; retriable.
	ErrUnavailable = errors.New("marketdata: source unavailable")
)

// Day normalises a timestamp to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func chartPayload(timestamps []int64, adjCloses []*float64) map[string]any {
	return map[string]any{
		"chart": map[string]any{
			"result": []map[string]any{
				{
					"timestamp": timestamps,
					"indicators": map[string]any{
						"adjclose": []map[string]any{
							{"adjclose": adjCloses},
						},
					},
				},
			},
		},
	}
}

func fptr(v float64) *float64 { return &v }

func TestYahooFetchSuccess(t *testing.T) {
	day1 := time.Date(2026, 8, 24, 14, 30, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1d" {
			t.Fatalf("expected daily interval, got %q", r.URL.Query().Get("interval"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chartPayload(
			[]int64{day1.Unix(), day2.Unix()},
			[]*float64{fptr(500.5), fptr(502.25)},
		))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	series, err := y.Fetch(context.Background(), "QQQ", day1.AddDate(0, -1, 0), day2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 points, got %d", len(series))
	}
	if !series[0].Date.Before(series[1].Date) {
		t.Fatal("series must be ordered by date ascending")
	}
	if !series[0].Date.Equal(Day(day1)) {
		t.Fatalf("dates must be normalised to UTC midnight, got %s", series[0].Date)
	}
	if series[0].Close.String() != "500.5" {
		t.Fatalf("expected close 500.5, got %s", series[0].Close)
	}
}

func TestYahooFetchSkipsNilAndNonPositiveCloses(t *testing.T) {
	day := time.Date(2026, 8, 24, 14, 30, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chartPayload(
			[]int64{day.Unix(), day.AddDate(0, 0, 1).Unix(), day.AddDate(0, 0, 2).Unix()},
			[]*float64{fptr(500), nil, fptr(-1)},
		))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	series, err := y.Fetch(context.Background(), "QQQ", day.AddDate(0, -1, 0), day.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("expected only the usable point, got %d", len(series))
	}
}

func TestYahooFetchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := y.Fetch(context.Background(), "QQQ", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestYahooFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := y.Fetch(context.Background(), "QQQ", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestYahooFetchEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"chart": map[string]any{"result": []any{}}})
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := y.Fetch(context.Background(), "QQQ", time.Now().AddDate(-1, 0, 0), time.Now()); err == nil {
		t.Fatal("empty result should be an error")
	}
}

func TestYahooFetchValidatesRange(t *testing.T) {
	y := NewYahoo(YahooOptions{}, noopLogger())
	now := time.Now()
	if _, err := y.Fetch(context.Background(), "QQQ", now, now); err == nil {
		t.Fatal("start == end should be rejected")
	}
}

package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const chartPathPrefix = "/v8/finance/chart/"

// YahooOptions parameterise the Yahoo Finance chart client.
type YahooOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Yahoo fetches daily adjusted close series from the Yahoo Finance chart API.
type Yahoo struct {
	opts    YahooOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewYahoo constructs a Yahoo chart client.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	return &Yahoo{
		opts:    opts,
		logger:  logger.With().Str("component", "yahoo_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Fetch retrieves the daily close series for symbol between start and end.
func (y *Yahoo) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]PricePoint, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("start must be before end")
	}

	query := url.Values{}
	query.Set("period1", fmt.Sprintf("%d", start.UTC().Unix()))
	query.Set("period2", fmt.Sprintf("%d", end.UTC().Unix()))
	query.Set("interval", "1d")
	query.Set("events", "div,split")

	endpoint := y.baseURL + chartPathPrefix + url.PathEscape(symbol) + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "smasignal/1.0")
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp.StatusCode, payload)
	}

	var chartRes chartResponse
	if err := json.Unmarshal(payload, &chartRes); err != nil {
		return nil, fmt.Errorf("%w: decode chart payload: %v", ErrUnavailable, err)
	}

	if chartRes.Chart.Error != nil && chartRes.Chart.Error.Code != "" {
		return nil, fmt.Errorf("%w: chart api error: %s", ErrUnavailable, chartRes.Chart.Error.Description)
	}
	if len(chartRes.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: empty chart result for %s", ErrUnavailable, symbol)
	}

	series := extractSeries(chartRes.Chart.Result[0])
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no usable closes for %s", ErrUnavailable, symbol)
	}

	y.logger.Debug().Str("symbol", symbol).Int("points", len(series)).Msg("fetched daily closes")
	return series, nil
}

func extractSeries(result chartResult) []PricePoint {
	closes := make(map[int64]float64, len(result.Timestamp))

	// Prefer adjusted close; fall back to the raw quote close per timestamp.
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}
	var raw []*float64
	if len(result.Indicators.Quote) > 0 {
		raw = result.Indicators.Quote[0].Close
	}

	for i, ts := range result.Timestamp {
		var v *float64
		if i < len(adj) && adj[i] != nil {
			v = adj[i]
		} else if i < len(raw) && raw[i] != nil {
			v = raw[i]
		}
		if v == nil || *v <= 0 {
			continue
		}
		day := Day(time.Unix(ts, 0))
		closes[day.Unix()] = *v
	}

	series := make([]PricePoint, 0, len(closes))
	for unix, close := range closes {
		series = append(series, PricePoint{
			Date:  time.Unix(unix, 0).UTC(),
			Close: decimal.NewFromFloat(close),
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series
}

func classifyHTTPError(status int, payload []byte) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: http 429", ErrRateLimited)
	}
	body := strings.TrimSpace(string(payload))
	if strings.Contains(strings.ToLower(body), "too many requests") {
		return fmt.Errorf("%w: http %d", ErrRateLimited, status)
	}
	if len(body) > 200 {
		body = body[:200]
	}
	if body != "" {
		return fmt.Errorf("%w: http %d: %s", ErrUnavailable, status, body)
	}
	return fmt.Errorf("%w: http %d", ErrUnavailable, status)
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

var _ Fetcher = (*Yahoo)(nil)

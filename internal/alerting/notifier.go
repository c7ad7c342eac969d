package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification carries the transition context delivered to notifiers.
type Notification struct {
	Symbol       string
	Action       string
	Date         time.Time
	PositionFrom string
	PositionTo   string
	Close        decimal.Decimal
	SMA          decimal.Decimal
	PctVsSMA     decimal.Decimal
	BuyLevel     decimal.Decimal
	SellLevel    decimal.Decimal
	PctToBuy     decimal.Decimal
	PctToSell    decimal.Decimal
}

// Notifier delivers a transition alert.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the rendered message via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("action", note.Action).
		Str("date", note.Date.Format("2006-01-02")).
		Msg("alert dispatched (telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s %s Alert]\n", note.Symbol, note.Action))
	builder.WriteString(fmt.Sprintf("Date: %s\n", note.Date.Format("2006-01-02")))
	builder.WriteString(fmt.Sprintf("Position: %s -> %s\n", note.PositionFrom, note.PositionTo))
	builder.WriteString(fmt.Sprintf("Close: %s\n", note.Close.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("SMA: %s (close %s%% vs SMA)\n", note.SMA.StringFixed(2), note.PctVsSMA.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Buy level: %s / Sell level: %s\n", note.BuyLevel.StringFixed(2), note.SellLevel.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("To buy: %s%% / To sell: %s%%\n", note.PctToBuy.StringFixed(2), note.PctToSell.StringFixed(2)))
	builder.WriteString("Generated by a mechanical SMA signalling rule.")
	return builder.String()
}

// Multi fans a notification out to several notifiers. Every notifier is
// attempted; the first error is returned.
type Multi []Notifier

// Notify delivers to each notifier in order.
func (m Multi) Notify(ctx context.Context, note Notification) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (Multi)(nil)
)

package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sma-signal/internal/engine"
	"sma-signal/internal/state"
)

func sampleRecord(action engine.Action) engine.SignalRecord {
	return engine.SignalRecord{
		Date:         time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
		Action:       action,
		PositionFrom: state.Cash,
		PositionTo:   state.Held,
		Close:        decimal.NewFromFloat(585.67),
		SMA:          decimal.NewFromFloat(542.35),
		PctVsSMA:     decimal.NewFromFloat(7.99),
		BuyLevel:     decimal.NewFromFloat(569.4675),
		SellLevel:    decimal.NewFromFloat(526.0795),
		PctToBuy:     decimal.NewFromFloat(-2.77),
		PctToSell:    decimal.NewFromFloat(-10.17),
	}
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals_log.csv")
	j := NewCSV(path)
	j.now = func() time.Time { return time.Date(2026, 8, 21, 21, 5, 0, 0, time.UTC) }

	if err := j.Append(sampleRecord(engine.ActionBuy)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Append(sampleRecord(engine.ActionSell)); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)

	if strings.Count(content, "timestamp_utc") != 1 {
		t.Fatalf("header must appear exactly once:\n%s", content)
	}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "BUY") || !strings.Contains(lines[2], "SELL") {
		t.Fatalf("rows must be appended in order:\n%s", content)
	}
}

func TestAppendRowContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals_log.csv")
	j := NewCSV(path)
	j.now = func() time.Time { return time.Date(2026, 8, 21, 21, 5, 0, 0, time.UTC) }

	if err := j.Append(sampleRecord(engine.ActionBuy)); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := j.Tail(10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if len(row) != len(Header()) {
		t.Fatalf("expected %d columns, got %d", len(Header()), len(row))
	}
	if row[0] != "2026-08-21T21:05:00Z" {
		t.Fatalf("unexpected timestamp %q", row[0])
	}
	if row[1] != "BUY" || row[2] != "CASH" || row[3] != "HELD" {
		t.Fatalf("unexpected action columns: %v", row[1:4])
	}
	if row[4] != "2026-08-21" {
		t.Fatalf("unexpected date %q", row[4])
	}
	if row[8] != "569.4675" {
		t.Fatalf("unexpected buy level %q", row[8])
	}
}

func TestTailLimitsAndOrders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals_log.csv")
	j := NewCSV(path)

	for i := 0; i < 5; i++ {
		record := sampleRecord(engine.ActionBuy)
		record.Date = record.Date.AddDate(0, 0, i)
		if err := j.Append(record); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rows, err := j.Tail(2)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][4] != "2026-08-24" || rows[1][4] != "2026-08-25" {
		t.Fatalf("expected the two newest rows, got %v / %v", rows[0][4], rows[1][4])
	}
}

func TestTailMissingFile(t *testing.T) {
	j := NewCSV(filepath.Join(t.TempDir(), "missing.csv"))
	rows, err := j.Tail(10)
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if rows != nil {
		t.Fatalf("expected no rows, got %v", rows)
	}
}

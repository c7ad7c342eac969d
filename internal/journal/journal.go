// Package journal appends executed transitions to a CSV trade log.
package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sma-signal/internal/engine"
)

var header = []string{
	"timestamp_utc", "action", "position_from", "position_to", "date",
	"close", "sma", "pct_vs_sma", "buy_level", "sell_level",
	"pct_to_buy", "pct_to_sell",
}

// CSVJournal is an append-only trade log, one row per BUY/SELL.
type CSVJournal struct {
	path string
	now  func() time.Time
}

// NewCSV builds a journal backed by the CSV file at path.
func NewCSV(path string) *CSVJournal {
	return &CSVJournal{path: path, now: time.Now}
}

// Append writes one row for the record. The header is written only
// when the file is created.
func (j *CSVJournal) Append(record engine.SignalRecord) error {
	dir := filepath.Dir(j.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	_, statErr := os.Stat(j.path)
	writeHeader := os.IsNotExist(statErr)

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if writeHeader {
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("write journal header: %w", err)
		}
	}

	row := []string{
		j.now().UTC().Format(time.RFC3339),
		string(record.Action),
		string(record.PositionFrom),
		string(record.PositionTo),
		record.Date.Format("2006-01-02"),
		record.Close.String(),
		record.SMA.String(),
		record.PctVsSMA.StringFixed(4),
		record.BuyLevel.StringFixed(4),
		record.SellLevel.StringFixed(4),
		record.PctToBuy.StringFixed(4),
		record.PctToSell.StringFixed(4),
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("write journal row: %w", err)
	}

	writer.Flush()
	return writer.Error()
}

// Tail returns up to n most recent rows, newest last. A missing file
// yields an empty result.
func (j *CSVJournal) Tail(n int) ([][]string, error) {
	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	rows = rows[1:] // drop header
	if n > 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return rows, nil
}

// Header returns the column names of the trade log.
func Header() []string {
	out := make([]string, len(header))
	copy(out, header)
	return out
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	upsertSignalSQL = `INSERT INTO signal_log (
        signal_date,
        action,
        position_from,
        position_to,
        close_price,
        sma,
        pct_vs_sma,
        buy_level,
        sell_level,
        pct_to_buy,
        pct_to_sell
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (signal_date, action) DO UPDATE
    SET
        position_from = EXCLUDED.position_from,
        position_to   = EXCLUDED.position_to,
        close_price   = EXCLUDED.close_price,
        sma           = EXCLUDED.sma,
        pct_vs_sma    = EXCLUDED.pct_vs_sma,
        buy_level     = EXCLUDED.buy_level,
        sell_level    = EXCLUDED.sell_level,
        pct_to_buy    = EXCLUDED.pct_to_buy,
        pct_to_sell   = EXCLUDED.pct_to_sell;`

	listRecentSignalsSQL = `SELECT
        signal_date,
        action,
        position_from,
        position_to,
        close_price,
        sma,
        pct_vs_sma,
        buy_level,
        sell_level,
        pct_to_buy,
        pct_to_sell,
        created_at
    FROM signal_log
    ORDER BY signal_date DESC, created_at DESC
    LIMIT $1;`

	countSignalsSQL = `SELECT COUNT(*) FROM signal_log;`
)

// SignalRow is a persisted transition, mirroring one CSV journal row.
type SignalRow struct {
	SignalDate   time.Time
	Action       string
	PositionFrom string
	PositionTo   string
	Close        decimal.Decimal
	SMA          decimal.Decimal
	PctVsSMA     decimal.Decimal
	BuyLevel     decimal.Decimal
	SellLevel    decimal.Decimal
	PctToBuy     decimal.Decimal
	PctToSell    decimal.Decimal
	CreatedAt    time.Time
}

// SignalStore defines operations for the optional database journal.
type SignalStore interface {
	UpsertSignal(ctx context.Context, row SignalRow) error
	ListRecentSignals(ctx context.Context, limit int) ([]SignalRow, error)
	CountSignals(ctx context.Context) (int64, error)
}

// Store provides the pgx-backed SignalStore.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertSignal persists one transition, keyed on (signal_date, action)
// so a re-run of the same session never duplicates a row.
func (s *Store) UpsertSignal(ctx context.Context, row SignalRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertSignalSQL,
		row.SignalDate,
		row.Action,
		row.PositionFrom,
		row.PositionTo,
		row.Close,
		row.SMA,
		row.PctVsSMA,
		row.BuyLevel,
		row.SellLevel,
		row.PctToBuy,
		row.PctToSell,
	)
	if execErr != nil {
		return fmt.Errorf("upsert signal: %w", execErr)
	}
	return nil
}

// ListRecentSignals lists the most recent transitions, newest first.
func (s *Store) ListRecentSignals(ctx context.Context, limit int) ([]SignalRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSignalsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent signals: %w", queryErr)
	}
	defer rows.Close()

	signals := make([]SignalRow, 0, limit)
	for rows.Next() {
		var row SignalRow
		if scanErr := rows.Scan(
			&row.SignalDate,
			&row.Action,
			&row.PositionFrom,
			&row.PositionTo,
			&row.Close,
			&row.SMA,
			&row.PctVsSMA,
			&row.BuyLevel,
			&row.SellLevel,
			&row.PctToBuy,
			&row.PctToSell,
			&row.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan signal row: %w", scanErr)
		}
		signals = append(signals, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return signals, nil
}

// CountSignals counts stored transitions.
func (s *Store) CountSignals(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSignalsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count signals: %w", scanErr)
	}
	return count, nil
}

var _ SignalStore = (*Store)(nil)

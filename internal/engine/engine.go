// Package engine converts the latest close and SMA into at most one
// BUY or SELL transition per calendar date.
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sma-signal/internal/calc"
	"sma-signal/internal/state"
)

// Action is the decision emitted for a single evaluation.
type Action string

const (
	// ActionBuy flips CASH to HELD.
	ActionBuy Action = "BUY"
	// ActionSell flips HELD to CASH.
	ActionSell Action = "SELL"
	// ActionNone leaves the position unchanged.
	ActionNone Action = "NONE"
)

// Thresholds are the asymmetric multipliers around the SMA. The
// configuration owner guarantees buy > 1 > sell > 0.
type Thresholds struct {
	BuyMultiplier  decimal.Decimal
	SellMultiplier decimal.Decimal
}

// Snapshot is the market input of one evaluation.
type Snapshot struct {
	Date  time.Time
	Close decimal.Decimal
	SMA   decimal.Decimal
}

// SignalRecord is the full evaluation output, emitted on every run so
// downstream logging is uniform whether or not the state changed.
type SignalRecord struct {
	Date         time.Time
	Action       Action
	PositionFrom state.Position
	PositionTo   state.Position
	Close        decimal.Decimal
	SMA          decimal.Decimal
	PctVsSMA     decimal.Decimal
	BuyLevel     decimal.Decimal
	SellLevel    decimal.Decimal
	PctToBuy     decimal.Decimal
	PctToSell    decimal.Decimal
}

// Decision bundles the record with the state the caller should persist
// when Transition is true.
type Decision struct {
	Record     SignalRecord
	State      state.PositionState
	Transition bool
}

// Evaluate applies the transition rule to one snapshot.
//
// CASH flips to HELD when close >= sma*buy; HELD flips to CASH when
// close <= sma*sell; anything else is a NONE. A snapshot whose date is
// not strictly after the last signal date never transitions, so re-runs
// against the same session are idempotent.
func Evaluate(snap Snapshot, st state.PositionState, th Thresholds) (Decision, error) {
	buyLevel, sellLevel := calc.ThresholdLevels(snap.SMA, th.BuyMultiplier, th.SellMultiplier)

	pctVsSMA, err := calc.PercentDelta(snap.Close, snap.SMA)
	if err != nil {
		return Decision{}, fmt.Errorf("pct vs sma: %w", err)
	}
	pctToBuy, err := calc.PercentDelta(buyLevel, snap.Close)
	if err != nil {
		return Decision{}, fmt.Errorf("pct to buy: %w", err)
	}
	pctToSell, err := calc.PercentDelta(sellLevel, snap.Close)
	if err != nil {
		return Decision{}, fmt.Errorf("pct to sell: %w", err)
	}

	record := SignalRecord{
		Date:         snap.Date,
		Action:       ActionNone,
		PositionFrom: st.Position,
		PositionTo:   st.Position,
		Close:        snap.Close,
		SMA:          snap.SMA,
		PctVsSMA:     pctVsSMA,
		BuyLevel:     buyLevel,
		SellLevel:    sellLevel,
		PctToBuy:     pctToBuy,
		PctToSell:    pctToSell,
	}

	if !eligible(st, snap.Date) {
		return Decision{Record: record, State: st}, nil
	}

	switch st.Position {
	case state.Cash:
		if snap.Close.GreaterThanOrEqual(buyLevel) {
			record.Action = ActionBuy
			record.PositionTo = state.Held
		}
	case state.Held:
		if snap.Close.LessThanOrEqual(sellLevel) {
			record.Action = ActionSell
			record.PositionTo = state.Cash
		}
	}

	if record.Action == ActionNone {
		return Decision{Record: record, State: st}, nil
	}

	date := snap.Date
	st.Position = record.PositionTo
	st.LastSignalDate = &date
	return Decision{Record: record, State: st, Transition: true}, nil
}

// eligible enforces the once-per-date guard: a transition already
// stamped with this date (or a later one) has been applied.
func eligible(st state.PositionState, date time.Time) bool {
	if st.LastSignalDate == nil {
		return true
	}
	return date.After(*st.LastSignalDate)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"sma-signal/internal/alerting"
	"sma-signal/internal/calc"
	"sma-signal/internal/engine"
	"sma-signal/internal/state"
	"sma-signal/internal/storage"
)

// Run executes one daily evaluation: refresh the cache, compute the SMA
// and thresholds, evaluate the state machine, and persist any
// transition. With DryRun nothing is written.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	stateStore := a.newStateStore()

	st, err := stateStore.Load()
	if err != nil {
		return fmt.Errorf("load position state: %w", err)
	}

	// A configured manual position reconciles the saved state with a
	// trade made outside this tool, before the threshold rule runs.
	if manual := a.Config.Trading.ManualPosition; manual != "" && !opts.DryRun {
		if st.Position != state.Position(manual) {
			a.Logger.Warn().Str("from", string(st.Position)).Str("to", manual).
				Msg("applying manual position override")
			st, err = state.ApplyOverride(stateStore, state.Position(manual), nil)
			if err != nil {
				return fmt.Errorf("apply manual override: %w", err)
			}
		}
	}

	snapshot, err := a.evaluateInputs(ctx)
	if err != nil {
		if errors.Is(err, calc.ErrInsufficientData) {
			// Not enough history for the window: report and skip the
			// signal for this run instead of failing the process.
			a.Logger.Error().Err(err).Int("sma_period", a.Config.Trading.SMAPeriod).
				Msg("insufficient history; skipping signal evaluation")
			return nil
		}
		return err
	}

	thresholds := engine.Thresholds{
		BuyMultiplier:  decimal.NewFromFloat(a.Config.Trading.BuyMultiplier),
		SellMultiplier: decimal.NewFromFloat(a.Config.Trading.SellMultiplier),
	}

	decision, err := engine.Evaluate(snapshot, st, thresholds)
	if err != nil {
		return fmt.Errorf("evaluate signal: %w", err)
	}

	a.printSummary(decision, st)

	if decision.Transition && !opts.DryRun {
		if err := a.commitTransition(ctx, stateStore, decision); err != nil {
			return err
		}
	}

	if a.Config.Chart.Enabled && !opts.DryRun {
		exportErr := a.Export(ctx, ExportOptions{
			PNGPath: a.Config.Chart.PNGPath,
			Months:  a.Config.Chart.LastMonths,
		})
		if exportErr != nil {
			a.Logger.Warn().Err(exportErr).Msg("chart rendering failed")
		}
	}

	return nil
}

// evaluateInputs refreshes the cache and derives the latest snapshot.
func (a *App) evaluateInputs(ctx context.Context) (engine.Snapshot, error) {
	cacheStore := a.newCacheStore()
	start, end := a.fetchWindow(time.Now())

	symbols := []string{a.Config.Trading.BenchmarkSymbol, a.Config.Trading.TargetSymbol}
	series, err := cacheStore.GetOrFetch(ctx, symbols, start, end)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("acquire market data: %w", err)
	}

	bench := series[a.Config.Trading.BenchmarkSymbol]
	smaSeries, err := calc.MovingAverage(bench, a.Config.Trading.SMAPeriod)
	if err != nil {
		return engine.Snapshot{}, err
	}

	latest := bench[len(bench)-1]
	latestSMA := smaSeries[len(smaSeries)-1]

	return engine.Snapshot{
		Date:  latest.Date,
		Close: latest.Close,
		SMA:   latestSMA.Value,
	}, nil
}

// commitTransition persists the new state, then the journal row, then
// the optional database mirror and alerts. State goes first: the
// position is the one record that must never lag the decision.
func (a *App) commitTransition(ctx context.Context, stateStore state.Store, decision engine.Decision) error {
	record := decision.Record

	if err := stateStore.Save(decision.State); err != nil {
		return fmt.Errorf("persist position state: %w", err)
	}

	if err := a.newJournal().Append(record); err != nil {
		return fmt.Errorf("append trade log: %w", err)
	}

	a.Logger.Info().Str("action", string(record.Action)).
		Str("from", string(record.PositionFrom)).
		Str("to", string(record.PositionTo)).
		Str("date", record.Date.Format("2006-01-02")).
		Msg("transition recorded")

	if store, closeStore, err := a.openStore(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("database journal unavailable")
	} else if store != nil {
		defer closeStore()
		row := storage.SignalRow{
			SignalDate:   record.Date,
			Action:       string(record.Action),
			PositionFrom: string(record.PositionFrom),
			PositionTo:   string(record.PositionTo),
			Close:        record.Close,
			SMA:          record.SMA,
			PctVsSMA:     record.PctVsSMA,
			BuyLevel:     record.BuyLevel,
			SellLevel:    record.SellLevel,
			PctToBuy:     record.PctToBuy,
			PctToSell:    record.PctToSell,
		}
		if err := store.UpsertSignal(ctx, row); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to mirror signal to database")
		}
	}

	if notifier := a.newNotifier(); notifier != nil {
		note := alerting.Notification{
			Symbol:       a.Config.Trading.TargetSymbol,
			Action:       string(record.Action),
			Date:         record.Date,
			PositionFrom: string(record.PositionFrom),
			PositionTo:   string(record.PositionTo),
			Close:        record.Close,
			SMA:          record.SMA,
			PctVsSMA:     record.PctVsSMA,
			BuyLevel:     record.BuyLevel,
			SellLevel:    record.SellLevel,
			PctToBuy:     record.PctToBuy,
			PctToSell:    record.PctToSell,
		}
		if err := notifier.Notify(ctx, note); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to dispatch alert")
		}
	}

	return nil
}

func (a *App) printSummary(decision engine.Decision, prior state.PositionState) {
	record := decision.Record

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Date:\t%s\n", record.Date.Format("2006-01-02"))
	fmt.Fprintf(writer, "%s Close:\t%s\n", a.Config.Trading.BenchmarkSymbol, record.Close.StringFixed(2))
	fmt.Fprintf(writer, "SMA%d:\t%s\n", a.Config.Trading.SMAPeriod, record.SMA.StringFixed(2))
	fmt.Fprintf(writer, "Close vs SMA:\t%s%%\n", record.PctVsSMA.StringFixed(2))
	fmt.Fprintf(writer, "BUY level:\t%s\n", record.BuyLevel.StringFixed(2))
	fmt.Fprintf(writer, "SELL level:\t%s\n", record.SellLevel.StringFixed(2))
	fmt.Fprintf(writer, "To BUY:\t%s%%\n", record.PctToBuy.StringFixed(2))
	fmt.Fprintf(writer, "To SELL:\t%s%%\n", record.PctToSell.StringFixed(2))
	fmt.Fprintf(writer, "Position:\t%s\n", prior.Position)
	if prior.LastSignalDate != nil {
		fmt.Fprintf(writer, "Last signal:\t%s\n", prior.LastSignalDate.Format("2006-01-02"))
	}
	writer.Flush()

	switch record.Action {
	case engine.ActionBuy:
		fmt.Fprintf(os.Stdout, "\nALERT: BUY %s (close %s >= buy level %s)\n",
			a.Config.Trading.TargetSymbol, record.Close.StringFixed(2), record.BuyLevel.StringFixed(2))
	case engine.ActionSell:
		fmt.Fprintf(os.Stdout, "\nALERT: SELL %s (close %s <= sell level %s)\n",
			a.Config.Trading.TargetSymbol, record.Close.StringFixed(2), record.SellLevel.StringFixed(2))
	default:
		if prior.Position == state.Cash {
			fmt.Fprintln(os.Stdout, "\nSTATUS: in CASH, waiting for BUY signal")
		} else {
			fmt.Fprintf(os.Stdout, "\nSTATUS: holding %s, SELL condition not met\n", a.Config.Trading.TargetSymbol)
		}
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"sma-signal/internal/journal"
)

// Show prints recent trade-log rows, from the CSV journal by default or
// from the optional database mirror with FromDB.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.FromDB {
		return a.showFromDB(ctx, opts.Limit)
	}

	rows, err := a.newJournal().Tail(opts.Limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no signals logged yet")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, strings.Join(journal.Header(), "\t"))
	for _, row := range rows {
		fmt.Fprintln(writer, strings.Join(row, "\t"))
	}
	writer.Flush()
	return nil
}

func (a *App) showFromDB(ctx context.Context, limit int) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show from db")
	}
	defer closeStore()

	signals, err := store.ListRecentSignals(ctx, limit)
	if err != nil {
		return err
	}
	if len(signals) == 0 {
		fmt.Fprintln(os.Stdout, "no signals stored")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tAction\tFrom\tTo\tClose\tSMA\tBuy\tSell")
	for _, s := range signals {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.SignalDate.UTC().Format("2006-01-02"),
			s.Action,
			s.PositionFrom,
			s.PositionTo,
			s.Close.StringFixed(2),
			s.SMA.StringFixed(2),
			s.BuyLevel.StringFixed(2),
			s.SellLevel.StringFixed(2),
		)
	}
	writer.Flush()
	return nil
}

// Status prints the persisted position without evaluating anything.
func (a *App) Status() error {
	st, err := a.newStateStore().Load()
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Position:\t%s\n", st.Position)
	if st.LastSignalDate != nil {
		fmt.Fprintf(writer, "Last signal:\t%s\n", st.LastSignalDate.Format("2006-01-02"))
	} else {
		fmt.Fprintf(writer, "Last signal:\t(none)\n")
	}
	if !st.Created.IsZero() {
		fmt.Fprintf(writer, "Created:\t%s\n", st.Created.UTC().Format(time.RFC3339))
	}
	writer.Flush()
	return nil
}

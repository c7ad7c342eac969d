package app

import (
	"fmt"
	"os"
	"time"

	"sma-signal/internal/state"
)

// Override forces the persisted position, bypassing the threshold rule.
// asOf, when non-nil, stamps the last signal date so a same-day re-run
// stays idempotent against the manual change.
func (a *App) Override(position string, asOf *time.Time) error {
	st, err := state.ApplyOverride(a.newStateStore(), state.Position(position), asOf)
	if err != nil {
		return err
	}

	a.Logger.Warn().Str("position", string(st.Position)).Msg("manual position override applied")
	fmt.Fprintf(os.Stdout, "position set to %s\n", st.Position)
	return nil
}

// InvalidateCache clears the market-data cache; the next run fetches.
func (a *App) InvalidateCache() error {
	if err := a.newCacheStore().Invalidate(); err != nil {
		return err
	}
	a.Logger.Info().Str("path", a.Config.Data.CacheFile).Msg("cache invalidated")
	return nil
}

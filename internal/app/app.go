package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sma-signal/internal/alerting"
	"sma-signal/internal/cache"
	"sma-signal/internal/config"
	"sma-signal/internal/journal"
	"sma-signal/internal/marketdata"
	"sma-signal/internal/state"
	"sma-signal/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() marketdata.Fetcher {
	yahoo := marketdata.NewYahoo(marketdata.YahooOptions{
		BaseURL:   a.Config.Data.BaseURL,
		Timeout:   a.Config.Data.RequestTimeout,
		UserAgent: a.Config.Data.UserAgent,
	}, a.Logger)

	return marketdata.NewRetryFetcher(yahoo, marketdata.RetryOptions{
		Attempts:     a.Config.Data.RetryAttempts,
		InitialDelay: a.Config.Data.RetryDelay,
	}, a.Logger)
}

func (a *App) newCacheStore() *cache.Store {
	return cache.NewStore(a.Config.Data.CacheFile, a.newFetcher(), a.Logger)
}

func (a *App) newStateStore() *state.FileStore {
	return state.NewFileStore(a.Config.Data.StateFile, a.Logger)
}

func (a *App) newJournal() *journal.CSVJournal {
	return journal.NewCSV(a.Config.Data.SignalLogCSV)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}

	var notifiers alerting.Multi
	if tg := a.Config.Alerting.Telegram; tg.Enabled {
		notifiers = append(notifiers, alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, 10*time.Second, a.Logger))
	}
	if em := a.Config.Alerting.Email; em.Enabled {
		notifiers = append(notifiers, alerting.NewEmailNotifier(alerting.EmailOptions{
			Host:     em.Host,
			Port:     em.Port,
			Username: em.Username,
			Password: em.Password,
			From:     em.From,
			To:       em.To,
		}, a.Logger))
	}

	if len(notifiers) == 0 {
		return nil
	}
	return notifiers
}

// openStore opens the optional database journal. A missing DSN is not
// an error; the CSV journal remains the source of truth.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, storage.PoolConfig{
		DSN:             a.Config.Database.DSN,
		MaxOpenConns:    a.Config.Database.MaxOpenConns,
		MaxIdleConns:    a.Config.Database.MaxIdleConns,
		ConnMaxLifetime: a.Config.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	return store, store.Close, nil
}

// fetchWindow is the date range requested from the data source.
func (a *App) fetchWindow(now time.Time) (start, end time.Time) {
	end = now.UTC()
	start = end.AddDate(-a.Config.Data.HistoryYears, 0, 0)
	return start, end
}

// RunOptions configure the daily evaluation.
type RunOptions struct {
	// DryRun evaluates and prints without persisting state, journal
	// rows, or alerts.
	DryRun bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	FromDB bool
}

// ExportOptions hold parameters for exporting the cached series.
type ExportOptions struct {
	PNGPath string
	CSVPath string
	Months  int
}

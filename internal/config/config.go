package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"sma-signal/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Data     DataConfig     `mapstructure:"data"`
	Database DatabaseConfig `mapstructure:"database"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Chart    ChartConfig    `mapstructure:"chart"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// TradingConfig holds the strategy parameters.
type TradingConfig struct {
	// BenchmarkSymbol drives the SMA and thresholds; TargetSymbol is
	// the leveraged ETF actually traded.
	BenchmarkSymbol string  `mapstructure:"benchmark_symbol"`
	TargetSymbol    string  `mapstructure:"target_symbol"`
	SMAPeriod       int     `mapstructure:"sma_period"`
	BuyMultiplier   float64 `mapstructure:"buy_multiplier"`
	SellMultiplier  float64 `mapstructure:"sell_multiplier"`
	// ManualPosition, when set to CASH or HELD, overrides the saved
	// position before evaluation (reconciles a manual trade).
	ManualPosition string `mapstructure:"manual_position"`
}

// DataConfig covers market data access and local persistence paths.
type DataConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	HistoryYears   int           `mapstructure:"history_years"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	CacheFile      string        `mapstructure:"cache_file"`
	StateFile      string        `mapstructure:"state_file"`
	SignalLogCSV   string        `mapstructure:"signal_log_csv"`
}

// DatabaseConfig encapsulates the optional PostgreSQL journal.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Email    EmailConfig    `mapstructure:"email"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// EmailConfig describes SMTP delivery parameters.
type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// ChartConfig sets export behaviour.
type ChartConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	PNGPath    string `mapstructure:"png_path"`
	LastMonths int    `mapstructure:"last_months"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SMASIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "smasignal")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("trading.benchmark_symbol", "QQQ")
	v.SetDefault("trading.target_symbol", "TQQQ")
	v.SetDefault("trading.sma_period", 200)
	v.SetDefault("trading.buy_multiplier", 1.05)
	v.SetDefault("trading.sell_multiplier", 0.97)

	v.SetDefault("data.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("data.user_agent", "smasignal/1.0")
	v.SetDefault("data.request_timeout", "10s")
	v.SetDefault("data.history_years", 3)
	v.SetDefault("data.retry_attempts", 3)
	v.SetDefault("data.retry_delay", "2s")
	v.SetDefault("data.cache_file", "data/market_data_cache.bin")
	v.SetDefault("data.state_file", "data/position_state.json")
	v.SetDefault("data.signal_log_csv", "data/signals_log.csv")

	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.email.enabled", false)
	v.SetDefault("alerting.email.port", 587)

	v.SetDefault("chart.enabled", false)
	v.SetDefault("chart.png_path", "data/sma_chart.png")
	v.SetDefault("chart.last_months", 6)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs the startup sanity checks. Threshold ordering and
// window errors are fatal before any state or cache is touched.
func (c *Config) Validate() error {
	t := c.Trading
	if t.BenchmarkSymbol == "" || t.TargetSymbol == "" {
		return fmt.Errorf("trading.benchmark_symbol and trading.target_symbol are required")
	}
	if t.SMAPeriod <= 0 {
		return fmt.Errorf("trading.sma_period must be greater than zero")
	}
	if t.BuyMultiplier <= 1 {
		return fmt.Errorf("trading.buy_multiplier must be greater than 1")
	}
	if t.SellMultiplier <= 0 || t.SellMultiplier >= 1 {
		return fmt.Errorf("trading.sell_multiplier must be between 0 and 1")
	}
	if t.ManualPosition != "" && t.ManualPosition != "CASH" && t.ManualPosition != "HELD" {
		return fmt.Errorf("trading.manual_position must be CASH or HELD, got %q", t.ManualPosition)
	}
	if c.Data.HistoryYears <= 0 {
		return fmt.Errorf("data.history_years must be greater than zero")
	}
	// ~252 trading days per year; the window must fit in the history.
	if c.Data.HistoryYears*252 < t.SMAPeriod {
		return fmt.Errorf("data.history_years (%d) too short for sma_period %d", c.Data.HistoryYears, t.SMAPeriod)
	}
	if c.Data.RetryAttempts <= 0 {
		return fmt.Errorf("data.retry_attempts must be greater than zero")
	}
	if c.Chart.LastMonths <= 0 {
		return fmt.Errorf("chart.last_months must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Alerting.Email.Enabled {
		if c.Alerting.Email.Host == "" || c.Alerting.Email.From == "" || len(c.Alerting.Email.To) == 0 {
			return fmt.Errorf("alerting.email requires host, from, and to when enabled")
		}
	}
	return nil
}

// Package config defines the alerter configuration and turns it into the
// typed settings of the indicator engine, classifier and trading window.
package config

import (
	"fmt"
	"strings"
	"time"

	"vwap-alerts/internal/indicator"
	"vwap-alerts/internal/logger"
	"vwap-alerts/internal/markethours"
	"vwap-alerts/internal/strategy"
	"vwap-alerts/pkg/alphavantage"
)

// Config is the root configuration. Fields are populated from defaults, an
// optional TOML file and then VWAPALERT_* environment variables.
type Config struct {
	Symbol    string `toml:"symbol"`
	EMAPeriod int    `toml:"ema_period"`

	// "single-value" (whole fetched series) or "session-cumulative".
	VWAPMode string `toml:"vwap_mode"`
	// "close" or "typical" ((H+L+C)/3).
	PriceBasis string `toml:"price_basis"`
	// "replay" recomputes EMA from the first bar each cycle; "running"
	// carries it forward between cycles.
	EMAMode string `toml:"ema_mode"`
	// SessionAnchor restricts VWAP to the current trading day.
	SessionAnchor bool `toml:"session_anchor"`

	// "threshold" or "crossover".
	ClassificationPolicy string `toml:"classification_policy"`
	// "strict" or "inclusive".
	Comparison           string `toml:"comparison"`
	CrossoverShortEvents bool   `toml:"crossover_short_events"`

	TradingWindow WindowConfig `toml:"trading_window"`

	PollInterval   duration `toml:"poll_interval"`
	RunOnce        bool     `toml:"run_once"`
	RestoreFromLog bool     `toml:"restore_from_log"`

	// "none" (last close), "global-quote" or "stream".
	QuoteSource string `toml:"quote_source"`

	AlphaVantage AlphaVantageConfig `toml:"alphavantage"`
	Stream       StreamConfig       `toml:"stream"`
	Notify       NotifyConfig       `toml:"notify"`
	AlertLog     AlertLogConfig     `toml:"alert_log"`
	Redis        RedisConfig        `toml:"redis"`

	MetricsAddr string `toml:"metrics_addr"`
	LogLevel    string `toml:"log_level"`
}

// WindowConfig is the optional intraday trading window. It is active when
// both Start and End are set.
type WindowConfig struct {
	Start           string `toml:"start"`
	End             string `toml:"end"`
	Timezone        string `toml:"timezone"`
	TradingDaysOnly bool   `toml:"trading_days_only"`
}

// Enabled reports whether a window is configured.
func (w WindowConfig) Enabled() bool {
	return w.Start != "" && w.End != ""
}

// AlphaVantageConfig holds market data API settings.
type AlphaVantageConfig struct {
	APIKey           string   `toml:"api_key"`
	BaseURL          string   `toml:"base_url"`
	Interval         string   `toml:"interval"`
	OutputSize       string   `toml:"output_size"`
	RegularHoursOnly bool     `toml:"regular_hours_only"`
	Timeout          duration `toml:"timeout"`
}

// StreamConfig holds the live trade websocket settings.
type StreamConfig struct {
	URL    string   `toml:"url"`
	Token  string   `toml:"token"`
	MaxAge duration `toml:"max_age"`
}

// NotifyConfig selects alert channels. Every configured channel receives
// every alert.
type NotifyConfig struct {
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	WebhookURL        string `toml:"webhook_url"`
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	Log               bool   `toml:"log"`
}

// AlertLogConfig selects alert log sinks. Empty paths disable a sink.
type AlertLogConfig struct {
	CSVPath    string `toml:"csv_path"`
	SQLitePath string `toml:"sqlite_path"`
	Redis      bool   `toml:"redis"`
}

// RedisConfig holds Redis connection settings for the stream alert log.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	MaxLen   int64  `toml:"max_len"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the single-shot alerter setup: SPY, 9 EMA over close
// prices, single-value VWAP, threshold signals and a CSV log.
func Defaults() Config {
	return Config{
		Symbol:               "SPY",
		EMAPeriod:            9,
		VWAPMode:             "single-value",
		PriceBasis:           "close",
		EMAMode:              "replay",
		ClassificationPolicy: "threshold",
		Comparison:           "strict",
		PollInterval:         duration{5 * time.Minute},
		QuoteSource:          "none",
		AlphaVantage: AlphaVantageConfig{
			BaseURL:    "https://www.alphavantage.co",
			Interval:   "5min",
			OutputSize: "compact",
			Timeout:    duration{10 * time.Second},
		},
		Stream: StreamConfig{
			URL:    "wss://ws.finnhub.io",
			MaxAge: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Log: true,
		},
		AlertLog: AlertLogConfig{
			CSVPath: "alerts_log.csv",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			MaxLen: 10000,
		},
		MetricsAddr: ":9090",
		LogLevel:    "info",
	}
}

// Validate checks every option and returns one error wrapping
// indicator.ErrInvalidParameter that lists all problems found.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Symbol) == "" {
		errs = append(errs, "symbol must not be empty")
	}
	if _, err := c.EngineConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := c.PolicyConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := c.Window(); err != nil {
		errs = append(errs, err.Error())
	}
	if !c.RunOnce && c.PollInterval.Duration <= 0 {
		errs = append(errs, "poll_interval must be positive")
	}

	switch c.QuoteSource {
	case "none", "global-quote":
	case "stream":
		if c.Stream.URL == "" {
			errs = append(errs, "stream: url is required for quote_source=stream")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown quote_source %q (valid: none, global-quote, stream)", c.QuoteSource))
	}

	if c.AlphaVantage.APIKey == "" {
		errs = append(errs, "alphavantage: api_key is required (ALPHAVANTAGE_KEY)")
	}
	if !alphavantage.ValidInterval(c.AlphaVantage.Interval) {
		errs = append(errs, fmt.Sprintf("alphavantage: unsupported interval %q", c.AlphaVantage.Interval))
	}
	if c.AlertLog.Redis && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr is required when alert_log.redis is enabled")
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: config: %s", indicator.ErrInvalidParameter, strings.Join(errs, "; "))
	}
	return nil
}

// EngineConfig builds the indicator engine settings.
func (c *Config) EngineConfig() (indicator.Config, error) {
	mode, err := indicator.ParseVWAPMode(c.VWAPMode)
	if err != nil {
		return indicator.Config{}, err
	}
	basis, err := indicator.ParsePriceBasis(c.PriceBasis)
	if err != nil {
		return indicator.Config{}, err
	}
	emaMode, err := indicator.ParseEMAMode(c.EMAMode)
	if err != nil {
		return indicator.Config{}, err
	}
	cfg := indicator.Config{
		EMAPeriod: c.EMAPeriod,
		VWAPMode:  mode,
		Basis:     basis,
		EMAMode:   emaMode,
	}
	if c.SessionAnchor {
		cfg.SessionLoc = markethours.ET
		if c.TradingWindow.Timezone != "" {
			if cfg.SessionLoc, err = time.LoadLocation(c.TradingWindow.Timezone); err != nil {
				return indicator.Config{}, fmt.Errorf("%w: session timezone %q", indicator.ErrInvalidParameter, c.TradingWindow.Timezone)
			}
		}
	}
	return cfg, cfg.Validate()
}

// PolicyConfig builds the classifier settings.
func (c *Config) PolicyConfig() (strategy.PolicyConfig, error) {
	cmp, err := strategy.ParseComparison(c.Comparison)
	if err != nil {
		return strategy.PolicyConfig{}, err
	}
	pc := strategy.PolicyConfig{
		Name:        c.ClassificationPolicy,
		Comparison:  cmp,
		EMAPeriod:   c.EMAPeriod,
		ShortEvents: c.CrossoverShortEvents,
	}
	if _, err := strategy.NewPolicy(pc); err != nil {
		return strategy.PolicyConfig{}, err
	}
	return pc, nil
}

// Window returns the configured trading window, or nil when none is set.
func (c *Config) Window() (*markethours.Window, error) {
	wc := c.TradingWindow
	if !wc.Enabled() {
		if wc.Start != "" || wc.End != "" {
			return nil, fmt.Errorf("%w: both start and end are required", markethours.ErrInvalidWindow)
		}
		return nil, nil
	}
	w, err := markethours.NewWindow(wc.Start, wc.End, wc.Timezone)
	if err != nil {
		return nil, err
	}
	w.TradingDaysOnly = wc.TradingDaysOnly
	return &w, nil
}

// DisplayLocation is the zone used for alert and log timestamps.
func (c *Config) DisplayLocation() *time.Location {
	if c.TradingWindow.Timezone != "" {
		if loc, err := time.LoadLocation(c.TradingWindow.Timezone); err == nil {
			return loc
		}
	}
	return markethours.ET
}

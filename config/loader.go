package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"vwap-alerts/internal/indicator"
)

// Load builds the configuration: built-in defaults, then the TOML file at
// path (skipped when path is empty), then a .env file if present, then
// environment overrides. The result has NOT been validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	if errs := applyEnvOverrides(&cfg); len(errs) > 0 {
		return nil, fmt.Errorf("%w: config: %s", indicator.ErrInvalidParameter, strings.Join(errs, "; "))
	}

	return &cfg, nil
}

// applyEnvOverrides reads VWAPALERT_* variables, plus the ALPHAVANTAGE_KEY and
// DISCORD_WEBHOOK_URL names used by existing deployments, and overwrites the
// corresponding fields when set. Values that fail to parse are returned.
func applyEnvOverrides(cfg *Config) []string {
	var errs []string

	// ── Secrets (legacy names first, prefixed names win) ──
	setStr(&cfg.AlphaVantage.APIKey, "ALPHAVANTAGE_KEY")
	setStr(&cfg.AlphaVantage.APIKey, "VWAPALERT_ALPHAVANTAGE_KEY")
	setStr(&cfg.Notify.DiscordWebhookURL, "DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.DiscordWebhookURL, "VWAPALERT_DISCORD_WEBHOOK_URL")

	// ── Signal ──
	setStr(&cfg.Symbol, "VWAPALERT_SYMBOL")
	setInt(&cfg.EMAPeriod, "VWAPALERT_EMA_PERIOD", &errs)
	setStr(&cfg.VWAPMode, "VWAPALERT_VWAP_MODE")
	setStr(&cfg.PriceBasis, "VWAPALERT_PRICE_BASIS")
	setStr(&cfg.EMAMode, "VWAPALERT_EMA_MODE")
	setBool(&cfg.SessionAnchor, "VWAPALERT_SESSION_ANCHOR", &errs)
	setStr(&cfg.ClassificationPolicy, "VWAPALERT_CLASSIFICATION_POLICY")
	setStr(&cfg.Comparison, "VWAPALERT_COMPARISON")
	setBool(&cfg.CrossoverShortEvents, "VWAPALERT_CROSSOVER_SHORT_EVENTS", &errs)

	// ── Window ──
	setStr(&cfg.TradingWindow.Start, "VWAPALERT_WINDOW_START")
	setStr(&cfg.TradingWindow.End, "VWAPALERT_WINDOW_END")
	setStr(&cfg.TradingWindow.Timezone, "VWAPALERT_WINDOW_TIMEZONE")
	setBool(&cfg.TradingWindow.TradingDaysOnly, "VWAPALERT_WINDOW_TRADING_DAYS_ONLY", &errs)

	// ── Loop ──
	setDuration(&cfg.PollInterval, "VWAPALERT_POLL_INTERVAL", &errs)
	setBool(&cfg.RunOnce, "VWAPALERT_RUN_ONCE", &errs)
	setBool(&cfg.RestoreFromLog, "VWAPALERT_RESTORE_FROM_LOG", &errs)
	setStr(&cfg.QuoteSource, "VWAPALERT_QUOTE_SOURCE")

	// ── Market data ──
	setStr(&cfg.AlphaVantage.BaseURL, "VWAPALERT_ALPHAVANTAGE_BASE_URL")
	setStr(&cfg.AlphaVantage.Interval, "VWAPALERT_ALPHAVANTAGE_INTERVAL")
	setStr(&cfg.AlphaVantage.OutputSize, "VWAPALERT_ALPHAVANTAGE_OUTPUT_SIZE")
	setBool(&cfg.AlphaVantage.RegularHoursOnly, "VWAPALERT_ALPHAVANTAGE_REGULAR_HOURS_ONLY", &errs)
	setStr(&cfg.Stream.URL, "VWAPALERT_STREAM_URL")
	setStr(&cfg.Stream.Token, "VWAPALERT_STREAM_TOKEN")
	setDuration(&cfg.Stream.MaxAge, "VWAPALERT_STREAM_MAX_AGE", &errs)

	// ── Notify ──
	setStr(&cfg.Notify.WebhookURL, "VWAPALERT_WEBHOOK_URL")
	setStr(&cfg.Notify.TelegramToken, "VWAPALERT_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VWAPALERT_TELEGRAM_CHAT_ID")
	setBool(&cfg.Notify.Log, "VWAPALERT_NOTIFY_LOG", &errs)

	// ── Alert log ──
	setStr(&cfg.AlertLog.CSVPath, "VWAPALERT_CSV_PATH")
	setStr(&cfg.AlertLog.SQLitePath, "VWAPALERT_SQLITE_PATH")
	setBool(&cfg.AlertLog.Redis, "VWAPALERT_REDIS_ALERT_LOG", &errs)
	setStr(&cfg.Redis.Addr, "VWAPALERT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VWAPALERT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VWAPALERT_REDIS_DB", &errs)

	// ── Top-level ──
	setStr(&cfg.MetricsAddr, "VWAPALERT_METRICS_ADDR")
	setStr(&cfg.LogLevel, "VWAPALERT_LOG_LEVEL")

	return errs
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present and non-empty; a value that does not parse is recorded in errs and
// the target is left unchanged.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string, errs *[]string) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("%s=%q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func setBool(dst *bool, key string, errs *[]string) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("%s=%q is not a boolean", key, v))
			return
		}
		*dst = b
	}
}

func setDuration(dst *duration, key string, errs *[]string) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("%s=%q is not a duration", key, v))
			return
		}
		dst.Duration = d
	}
}

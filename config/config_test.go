package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vwap-alerts/internal/indicator"
	"vwap-alerts/internal/strategy"
)

func validConfig() Config {
	c := Defaults()
	c.AlphaVantage.APIKey = "demo"
	return c
}

func TestDefaults_Valid(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	ec, err := c.EngineConfig()
	if err != nil {
		t.Fatal(err)
	}
	if ec.EMAPeriod != 9 || ec.VWAPMode != indicator.ModeSingleValue || ec.Basis != indicator.BasisClose || ec.EMAMode != indicator.EMAReplay {
		t.Errorf("engine config = %+v", ec)
	}
	if ec.SessionLoc != nil {
		t.Error("session anchor should be off by default")
	}
	pc, _ := c.PolicyConfig()
	if pc.Name != "threshold" || pc.Comparison != strategy.Strict {
		t.Errorf("policy config = %+v", pc)
	}
	w, err := c.Window()
	if err != nil || w != nil {
		t.Errorf("no window expected by default, got %v, %v", w, err)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	c := validConfig()
	c.EMAPeriod = 0
	c.ClassificationPolicy = "momentum"
	c.QuoteSource = "carrier-pigeon"
	c.TradingWindow = WindowConfig{Start: "11:30", End: "09:30"}

	err := c.Validate()
	if !errors.Is(err, indicator.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	for _, want := range []string{"ema period", "momentum", "carrier-pigeon", "trading window"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidate_RequiresAPIKey(t *testing.T) {
	c := Defaults()
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "ALPHAVANTAGE_KEY") {
		t.Errorf("expected missing api key error, got %v", err)
	}
}

func TestValidate_HalfWindow(t *testing.T) {
	c := validConfig()
	c.TradingWindow.Start = "09:30"
	if err := c.Validate(); err == nil {
		t.Error("expected error for window without end")
	}
}

func TestValidate_PollIntervalIgnoredForRunOnce(t *testing.T) {
	c := validConfig()
	c.PollInterval.Duration = 0
	if err := c.Validate(); err == nil {
		t.Error("expected error for zero poll interval")
	}
	c.RunOnce = true
	if err := c.Validate(); err != nil {
		t.Errorf("run_once should not need poll_interval: %v", err)
	}
}

func TestLoad_TOMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vwapalert.toml")
	data := `
symbol = "QQQ"
ema_period = 21
vwap_mode = "session-cumulative"
classification_policy = "crossover"
comparison = "inclusive"
session_anchor = true
poll_interval = "1m"

[trading_window]
start = "09:30"
end = "11:30"
timezone = "America/New_York"

[alert_log]
csv_path = ""
sqlite_path = "data/alerts.db"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	// keep godotenv away from any .env in the package dir
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	t.Setenv("ALPHAVANTAGE_KEY", "legacy-key")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.example/hook")
	t.Setenv("VWAPALERT_EMA_PERIOD", "12")
	t.Setenv("VWAPALERT_PRICE_BASIS", "typical")

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if c.Symbol != "QQQ" || c.EMAPeriod != 12 || c.PriceBasis != "typical" {
		t.Errorf("unexpected config: %+v", c)
	}
	if c.AlphaVantage.APIKey != "legacy-key" || c.Notify.DiscordWebhookURL != "https://discord.example/hook" {
		t.Error("legacy env names not applied")
	}
	if c.PollInterval.Duration != time.Minute {
		t.Errorf("poll interval = %v", c.PollInterval.Duration)
	}
	if c.AlertLog.CSVPath != "" || c.AlertLog.SQLitePath != "data/alerts.db" {
		t.Errorf("alert log = %+v", c.AlertLog)
	}
	if c.AlphaVantage.Interval != "5min" {
		t.Error("defaults lost for keys absent from the file")
	}

	ec, _ := c.EngineConfig()
	if ec.VWAPMode != indicator.ModeSessionCumulative || ec.Basis != indicator.BasisTypical || ec.SessionLoc == nil {
		t.Errorf("engine config = %+v", ec)
	}
	w, err := c.Window()
	if err != nil || w == nil {
		t.Fatalf("window: %v, %v", w, err)
	}
	if w.Start.String() != "09:30:00" || w.End.String() != "11:30:00" {
		t.Errorf("window = %s", w)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("VWAPALERT_SYMBOL", "IWM")
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.Symbol != "IWM" || c.EMAPeriod != 9 {
		t.Errorf("unexpected config: %+v", c)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_RejectsMalformedEnv(t *testing.T) {
	t.Setenv("VWAPALERT_EMA_PERIOD", "nine")
	t.Setenv("VWAPALERT_POLL_INTERVAL", "5 minutes")
	t.Setenv("VWAPALERT_RUN_ONCE", "sometimes")

	c, err := Load("")
	if !errors.Is(err, indicator.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got cfg=%+v err=%v", c, err)
	}
	for _, key := range []string{"VWAPALERT_EMA_PERIOD", "VWAPALERT_POLL_INTERVAL", "VWAPALERT_RUN_ONCE"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}

func TestLoad_RejectsNonNumericEMAPeriod(t *testing.T) {
	t.Setenv("VWAPALERT_EMA_PERIOD", "nine")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), `"nine"`) {
		t.Fatalf("expected parse error for ema period, got %v", err)
	}
}

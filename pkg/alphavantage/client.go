// Package alphavantage is a minimal client for the Alpha Vantage market data
// REST API: intraday OHLCV bars and the latest traded price.
//
// Usage example:
//
//	av := alphavantage.New(alphavantage.Config{APIKey: os.Getenv("ALPHAVANTAGE_KEY")})
//	series, err := av.IntradayBars(ctx, "SPY")
//	if errors.Is(err, alphavantage.ErrNoData) { /* rate limited or unknown symbol */ }
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange zones from "Meta Data" must resolve everywhere

	"vwap-alerts/internal/model"
)

var (
	// ErrNoData means the response carried no time series or quote. The
	// wrapped message includes the API's Note/Information/Error Message text
	// when present (rate limits, bad symbols, bad keys).
	ErrNoData = fmt.Errorf("alphavantage: %w", model.ErrNoData)

	// ErrUpstream covers transport failures, non-200 statuses and
	// undecodable bodies.
	ErrUpstream = errors.New("alphavantage: upstream failure")
)

// ---- Config & client ----

type Config struct {
	APIKey  string
	BaseURL string        // default: https://www.alphavantage.co
	Timeout time.Duration // default: 10s

	Interval   string // 1min, 5min, 15min, 30min, 60min; default 5min
	OutputSize string // compact (latest 100 bars) or full; default compact

	// RegularHoursOnly drops pre/post-market bars (extended_hours=false).
	RegularHoursOnly bool

	Debug bool
}

type Client struct {
	apiKey      string
	baseURL     string
	interval    string
	outputSize  string
	regularOnly bool
	debug       bool

	httpClient *http.Client
}

const (
	defaultBaseURL    = "https://www.alphavantage.co"
	defaultInterval   = "5min"
	defaultOutputSize = "compact"
)

var validIntervals = map[string]bool{
	"1min": true, "5min": true, "15min": true, "30min": true, "60min": true,
}

// New creates a client, filling unset fields with defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Interval == "" {
		cfg.Interval = defaultInterval
	}
	if cfg.OutputSize == "" {
		cfg.OutputSize = defaultOutputSize
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		interval:    cfg.Interval,
		outputSize:  cfg.OutputSize,
		regularOnly: cfg.RegularHoursOnly,
		debug:       cfg.Debug,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// ValidInterval reports whether s is an interval the intraday endpoint accepts.
func ValidInterval(s string) bool { return validIntervals[s] }

// Interval returns the configured bar interval.
func (c *Client) Interval() string { return c.interval }

// ---- Helpers ----

func (c *Client) query(ctx context.Context, params url.Values) (map[string]json.RawMessage, error) {
	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	if c.debug {
		log.Printf("[alphavantage] GET %s function=%s symbol=%s", c.baseURL, params.Get("function"), params.Get("symbol"))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(string(body), 200))
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return out, nil
}

// apiMessage extracts the explanatory text Alpha Vantage returns in place of
// data (throttling notes, invalid call messages).
func apiMessage(data map[string]json.RawMessage) string {
	for _, k := range []string{"Note", "Information", "Error Message"} {
		raw, ok := data[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func noData(what string, data map[string]json.RawMessage) error {
	if msg := apiMessage(data); msg != "" {
		return fmt.Errorf("%w: %s: %s", ErrNoData, what, msg)
	}
	return fmt.Errorf("%w: %s", ErrNoData, what)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ---- Intraday ----

type metaData struct {
	Symbol   string `json:"2. Symbol"`
	TimeZone string `json:"6. Time Zone"`
}

type ohlcv struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// IntradayBars fetches the latest intraday bars for symbol, oldest first.
// Bar timestamps are interpreted in the exchange timezone reported in the
// response metadata.
func (c *Client) IntradayBars(ctx context.Context, symbol string) (*model.BarSeries, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_INTRADAY")
	params.Set("symbol", symbol)
	params.Set("interval", c.interval)
	params.Set("outputsize", c.outputSize)
	if c.regularOnly {
		params.Set("extended_hours", "false")
	}

	data, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	key := "Time Series (" + c.interval + ")"
	raw, ok := data[key]
	if !ok {
		return nil, noData(fmt.Sprintf("%s missing for %s", key, symbol), data)
	}

	var series map[string]ohlcv
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUpstream, key, err)
	}
	if len(series) == 0 {
		return nil, noData("empty time series for "+symbol, data)
	}

	loc := exchangeLocation(data)
	bars := make([]model.Bar, 0, len(series))
	for stamp, v := range series {
		b, err := parseBar(stamp, v, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: bar %s: %v", ErrUpstream, stamp, err)
		}
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })

	bs, err := model.NewBarSeries(symbol, bars)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return bs, nil
}

func exchangeLocation(data map[string]json.RawMessage) *time.Location {
	var meta metaData
	if raw, ok := data["Meta Data"]; ok {
		_ = json.Unmarshal(raw, &meta)
	}
	tz := meta.TimeZone
	if tz == "" {
		tz = "US/Eastern"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("[alphavantage] unknown time zone %q, using America/New_York", tz)
		loc, _ = time.LoadLocation("America/New_York")
	}
	return loc
}

func parseBar(stamp string, v ohlcv, loc *time.Location) (model.Bar, error) {
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", stamp, loc)
	if err != nil {
		return model.Bar{}, err
	}
	var b model.Bar
	b.TS = ts
	fields := []struct {
		dst *float64
		src string
	}{
		{&b.Open, v.Open}, {&b.High, v.High}, {&b.Low, v.Low}, {&b.Close, v.Close}, {&b.Volume, v.Volume},
	}
	for _, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f.src), 64)
		if err != nil {
			return model.Bar{}, err
		}
		*f.dst = x
	}
	return b, nil
}

// ---- Quote ----

// GlobalQuote returns the latest traded price for symbol.
func (c *Client) GlobalQuote(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	data, err := c.query(ctx, params)
	if err != nil {
		return 0, err
	}

	var quote map[string]string
	if raw, ok := data["Global Quote"]; ok {
		if err := json.Unmarshal(raw, &quote); err != nil {
			return 0, fmt.Errorf("%w: decode quote: %v", ErrUpstream, err)
		}
	}
	price, ok := quote["05. price"]
	if !ok || price == "" {
		return 0, noData("no quote for "+symbol, data)
	}
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: price %q: %v", ErrUpstream, price, err)
	}
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return 0, fmt.Errorf("%w: unusable quote %q for %s", ErrNoData, price, symbol)
	}
	return p, nil
}

// LatestPrice implements model.QuoteSource using GLOBAL_QUOTE.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	return c.GlobalQuote(ctx, symbol)
}

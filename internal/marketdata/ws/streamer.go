// Package ws streams live trades for one symbol over a websocket and keeps
// the latest price for the polling cycle.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"vwap-alerts/internal/model"

	"github.com/gorilla/websocket"
)

// ErrNoQuote is returned when no trade has arrived yet or the last one is
// older than MaxAge.
var ErrNoQuote = errors.New("ws: no recent quote")

// Config holds configuration for the trade stream.
type Config struct {
	URL    string // e.g. wss://ws.finnhub.io
	Token  string // appended as ?token=
	Symbol string

	// MaxAge rejects quotes older than this; 0 disables the check.
	MaxAge time.Duration

	MinBackoff time.Duration // default 1s
	MaxBackoff time.Duration // default 30s
}

type subscribeMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type tradeFrame struct {
	Type string `json:"type"`
	Data []struct {
		S string  `json:"s"`
		P float64 `json:"p"`
		T int64   `json:"t"` // epoch milliseconds
		V float64 `json:"v"`
	} `json:"data"`
}

// Streamer maintains a websocket subscription and the most recent trade.
type Streamer struct {
	cfg    Config
	dialer *websocket.Dialer
	now    func() time.Time

	mu   sync.RWMutex
	last model.Trade
	has  bool

	// Optional hooks
	OnReconnect func()
	OnTrade     func(model.Trade)
}

// New creates a streamer. Call Run to start it.
func New(cfg Config) *Streamer {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	cfg.Symbol = strings.ToUpper(cfg.Symbol)
	return &Streamer{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		now:    time.Now,
	}
}

// Run connects and reads trades until ctx is cancelled, reconnecting with
// exponential backoff. It returns nil on cancellation.
func (s *Streamer) Run(ctx context.Context) error {
	endpoint, err := s.endpoint()
	if err != nil {
		return err
	}

	backoff := s.cfg.MinBackoff
	for {
		connected, err := s.session(ctx, endpoint)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = s.cfg.MinBackoff
		}
		log.Printf("[ws] stream error: %v (reconnect in %s)", err, backoff)
		if s.OnReconnect != nil {
			s.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

func (s *Streamer) endpoint() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("ws: bad url %q", s.cfg.URL)
	}
	if s.cfg.Token != "" {
		q := u.Query()
		q.Set("token", s.cfg.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// session runs one connection. connected reports whether the subscription
// was established, which resets the backoff.
func (s *Streamer) session(ctx context.Context, endpoint string) (connected bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeMsg{Type: "subscribe", Symbol: s.cfg.Symbol}); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("[ws] connected, subscribed %s", s.cfg.Symbol)

	// ReadMessage does not take a context; closing the conn unblocks it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		s.handle(msg)
	}
}

func (s *Streamer) handle(msg []byte) {
	var f tradeFrame
	if err := json.Unmarshal(msg, &f); err != nil {
		log.Printf("[ws] parse error: %v", err)
		return
	}
	if f.Type != "trade" {
		return
	}
	for _, d := range f.Data {
		if !strings.EqualFold(d.S, s.cfg.Symbol) || d.P <= 0 {
			continue
		}
		tr := model.Trade{
			Symbol: s.cfg.Symbol,
			Price:  d.P,
			Volume: d.V,
			TS:     time.UnixMilli(d.T).UTC(),
		}
		s.mu.Lock()
		if !s.has || !tr.TS.Before(s.last.TS) {
			s.last = tr
			s.has = true
		}
		s.mu.Unlock()
		if s.OnTrade != nil {
			s.OnTrade(tr)
		}
	}
}

// Latest returns the most recent trade.
func (s *Streamer) Latest() (model.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.has
}

// LatestPrice implements model.QuoteSource.
func (s *Streamer) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if !strings.EqualFold(symbol, s.cfg.Symbol) {
		return 0, fmt.Errorf("%w: not subscribed to %s", ErrNoQuote, symbol)
	}
	tr, ok := s.Latest()
	if !ok {
		return 0, ErrNoQuote
	}
	if s.cfg.MaxAge > 0 {
		if age := s.now().Sub(tr.TS); age > s.cfg.MaxAge {
			return 0, fmt.Errorf("%w: last trade %s old", ErrNoQuote, age.Truncate(time.Second))
		}
	}
	return tr.Price, nil
}

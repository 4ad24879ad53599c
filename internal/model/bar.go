package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidBar is wrapped by every bar/series validation failure.
var ErrInvalidBar = errors.New("invalid bar")

// Bar is one OHLCV observation for a fixed interval.
// Prices are float64 dollars; no rounding happens before presentation.
type Bar struct {
	TS     time.Time `json:"ts"` // interval start time
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate checks that prices are finite, volume is non-negative and high >= low.
func (b Bar) Validate() error {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite price at %s", ErrInvalidBar, b.TS.Format(time.RFC3339))
		}
	}
	if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
		return fmt.Errorf("%w: bad volume %v at %s", ErrInvalidBar, b.Volume, b.TS.Format(time.RFC3339))
	}
	if b.High < b.Low {
		return fmt.Errorf("%w: high %.4f < low %.4f at %s", ErrInvalidBar, b.High, b.Low, b.TS.Format(time.RFC3339))
	}
	return nil
}

// TypicalPrice returns (high + low + close) / 3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// JSON returns the JSON-encoded bar (ignoring errors, bars always encode).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// BarSeries is an append-only, strictly time-ordered sequence of bars for a
// single symbol. The zero value is not usable; build one with NewBarSeries.
type BarSeries struct {
	symbol string
	bars   []Bar
}

// NewBarSeries validates bars and returns a series that owns a copy of them.
// Timestamps must be strictly increasing; duplicates are rejected.
func NewBarSeries(symbol string, bars []Bar) (*BarSeries, error) {
	s := &BarSeries{
		symbol: symbol,
		bars:   make([]Bar, 0, len(bars)),
	}
	for _, b := range bars {
		if err := s.Append(b); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Append adds a bar to the end of the series.
func (s *BarSeries) Append(b Bar) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if n := len(s.bars); n > 0 && !b.TS.After(s.bars[n-1].TS) {
		return fmt.Errorf("%w: timestamp %s not after %s", ErrInvalidBar,
			b.TS.Format(time.RFC3339), s.bars[n-1].TS.Format(time.RFC3339))
	}
	s.bars = append(s.bars, b)
	return nil
}

func (s *BarSeries) Symbol() string { return s.symbol }
func (s *BarSeries) Len() int       { return len(s.bars) }
func (s *BarSeries) At(i int) Bar   { return s.bars[i] }

// Last returns the most recent bar. ok is false for an empty series.
func (s *BarSeries) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Bars returns a copy of the underlying bars.
func (s *BarSeries) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Session returns the bars that fall on the same local calendar day as the
// last bar. Intraday feeds usually return several sessions; VWAP is anchored
// at the session start.
func (s *BarSeries) Session(loc *time.Location) *BarSeries {
	last, ok := s.Last()
	if !ok {
		return &BarSeries{symbol: s.symbol}
	}
	if loc == nil {
		loc = time.UTC
	}
	ly, lm, ld := last.TS.In(loc).Date()
	start := len(s.bars) - 1
	for start > 0 {
		y, m, d := s.bars[start-1].TS.In(loc).Date()
		if y != ly || m != lm || d != ld {
			break
		}
		start--
	}
	out := make([]Bar, len(s.bars)-start)
	copy(out, s.bars[start:])
	return &BarSeries{symbol: s.symbol, bars: out}
}

// Since returns the bars strictly after ts, sharing no memory with s.
func (s *BarSeries) Since(ts time.Time) []Bar {
	i := 0
	for i < len(s.bars) && !s.bars[i].TS.After(ts) {
		i++
	}
	out := make([]Bar, len(s.bars)-i)
	copy(out, s.bars[i:])
	return out
}

package indicator

import (
	"fmt"
	"strings"
	"time"

	"vwap-alerts/internal/model"
)

// PriceBasis selects the per-bar price that VWAP weights by volume.
type PriceBasis int

const (
	BasisClose   PriceBasis = iota // close only
	BasisTypical                   // (high + low + close) / 3
)

func (b PriceBasis) String() string {
	switch b {
	case BasisClose:
		return "close"
	case BasisTypical:
		return "typical"
	default:
		return "unknown"
	}
}

// ParsePriceBasis parses "close" or "typical".
func ParsePriceBasis(s string) (PriceBasis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "close", "":
		return BasisClose, nil
	case "typical", "hlc3":
		return BasisTypical, nil
	}
	return 0, fmt.Errorf("%w: unknown price basis %q", ErrInvalidParameter, s)
}

func (b PriceBasis) price(bar model.Bar) float64 {
	if b == BasisTypical {
		return bar.TypicalPrice()
	}
	return bar.Close
}

// VWAP accumulates Σ(price·volume) and Σ(volume) over the bars fed so far.
type VWAP struct {
	basis  PriceBasis
	cumPV  float64
	cumVol float64
	count  int
}

// NewVWAP creates an empty accumulator for the given price basis.
func NewVWAP(basis PriceBasis) *VWAP {
	return &VWAP{basis: basis}
}

func (v *VWAP) Name() string { return "VWAP" }

func (v *VWAP) Update(bar model.Bar) {
	v.cumPV += v.basis.price(bar) * bar.Volume
	v.cumVol += bar.Volume
	v.count++
}

// Ready reports whether any volume has been seen.
func (v *VWAP) Ready() bool { return v.cumVol > 0 }

// Value returns the VWAP, or 0 while cumulative volume is zero.
// Use Result when the caller has to distinguish the undefined case.
func (v *VWAP) Value() float64 {
	if !v.Ready() {
		return 0
	}
	return v.cumPV / v.cumVol
}

// Result returns the VWAP or ErrDivisionUndefined.
func (v *VWAP) Result() (float64, error) {
	if v.count == 0 {
		return 0, ErrInsufficientData
	}
	if !v.Ready() {
		return 0, ErrDivisionUndefined
	}
	return v.cumPV / v.cumVol, nil
}

// VWAPPoint is one element of the session-cumulative VWAP sequence.
// Err is ErrDivisionUndefined when no volume has traded up to TS.
type VWAPPoint struct {
	TS    time.Time
	Value float64
	Err   error
}

// EachVWAP walks the series and calls fn with the cumulative VWAP at every
// bar, stopping early when fn returns false. Values are produced lazily.
func EachVWAP(series *model.BarSeries, basis PriceBasis, fn func(i int, p VWAPPoint) bool) error {
	if series == nil || series.Len() == 0 {
		return ErrInsufficientData
	}
	v := NewVWAP(basis)
	for i := 0; i < series.Len(); i++ {
		bar := series.At(i)
		v.Update(bar)
		val, err := v.Result()
		if !fn(i, VWAPPoint{TS: bar.TS, Value: val, Err: err}) {
			return nil
		}
	}
	return nil
}

// VWAPSeries returns the session-cumulative VWAP at every bar.
func VWAPSeries(series *model.BarSeries, basis PriceBasis) ([]VWAPPoint, error) {
	var out []VWAPPoint
	err := EachVWAP(series, basis, func(_ int, p VWAPPoint) bool {
		out = append(out, p)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VWAPValue returns a single VWAP over the whole series.
func VWAPValue(series *model.BarSeries, basis PriceBasis) (float64, error) {
	if series == nil || series.Len() == 0 {
		return 0, ErrInsufficientData
	}
	v := NewVWAP(basis)
	replay(v, series)
	return v.Result()
}

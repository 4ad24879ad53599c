package indicator

import (
	"fmt"
	"strconv"
	"time"

	"vwap-alerts/internal/model"
)

// EMA calculates an Exponential Moving Average of bar closes.
// O(1) per update. Seeded with the first close (no SMA warm-up):
//
//	EMA_0 = close_0
//	EMA_i = α·close_i + (1-α)·EMA_{i-1},  α = 2/(period+1)
type EMA struct {
	period  int
	alpha   float64
	current float64
	count   int
	lastTS  time.Time
}

// NewEMA creates an EMA with the given period.
func NewEMA(period int) (*EMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: ema period %d must be positive", ErrInvalidParameter, period)
	}
	return &EMA{
		period: period,
		alpha:  Alpha(period),
	}, nil
}

// Alpha returns the smoothing factor 2/(period+1).
func Alpha(period int) float64 {
	return 2.0 / float64(period+1)
}

func (e *EMA) Name() string { return "EMA_" + strconv.Itoa(e.period) }

func (e *EMA) Update(bar model.Bar) {
	if e.count == 0 {
		e.current = bar.Close
	} else {
		e.current = e.alpha*bar.Close + (1-e.alpha)*e.current
	}
	e.count++
	e.lastTS = bar.TS
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count > 0 }

// LastTS returns the timestamp of the last bar fed.
func (e *EMA) LastTS() time.Time { return e.lastTS }

// Reset clears the running value.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.lastTS = time.Time{}
}

// EMAValue replays the whole series from its first bar and returns the
// latest EMA.
func EMAValue(series *model.BarSeries, period int) (float64, error) {
	e, err := NewEMA(period)
	if err != nil {
		return 0, err
	}
	if series == nil || series.Len() == 0 {
		return 0, ErrInsufficientData
	}
	replay(e, series)
	return e.Value(), nil
}

// EMASeries returns the EMA value at every bar of the series.
func EMASeries(series *model.BarSeries, period int) ([]float64, error) {
	e, err := NewEMA(period)
	if err != nil {
		return nil, err
	}
	if series == nil || series.Len() == 0 {
		return nil, ErrInsufficientData
	}
	out := make([]float64, series.Len())
	for i := range out {
		e.Update(series.At(i))
		out[i] = e.Value()
	}
	return out, nil
}

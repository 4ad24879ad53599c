// Package indicator provides the VWAP and EMA calculations over bar series.
//
// Both indicators implement the Indicator interface and are fed bars in
// timestamp order. The Engine combines them into one IndicatorSnapshot per
// polling cycle.
package indicator

import (
	"errors"

	"vwap-alerts/internal/model"
)

var (
	// ErrInsufficientData is returned for an empty series.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDivisionUndefined is returned when cumulative volume is zero.
	ErrDivisionUndefined = errors.New("vwap undefined: zero cumulative volume")

	// ErrInvalidParameter marks a construction-time misconfiguration.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Indicator is the interface for running indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "VWAP", "EMA_9").
	Name() string

	// Update feeds the next bar. Bars must arrive in timestamp order.
	Update(bar model.Bar)

	// Value returns the current value. Returns 0 if not Ready.
	Value() float64

	// Ready returns true once Value is defined.
	Ready() bool
}

// replay feeds every bar of the series into ind, oldest first.
func replay(ind Indicator, series *model.BarSeries) {
	for i := 0; i < series.Len(); i++ {
		ind.Update(series.At(i))
	}
}

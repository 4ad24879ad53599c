package strategy

import "vwap-alerts/internal/model"

// ThresholdPolicy compares the latest price to VWAP and EMA independently.
//
// Long:  price above VWAP and above EMA
// Short: price below VWAP and below EMA
// Anything else (mixed, or a tie on either line) is Neutral.
type ThresholdPolicy struct {
	cmp      Comparison
	emaLabel string
}

// NewThreshold creates a threshold policy. period only affects wording.
func NewThreshold(cmp Comparison, period int) *ThresholdPolicy {
	return &ThresholdPolicy{cmp: cmp, emaLabel: emaLabel(period)}
}

func (p *ThresholdPolicy) Name() string { return "threshold" }

func (p *ThresholdPolicy) Classify(cur model.IndicatorSnapshot) Result {
	aboveVWAP := p.cmp.above(cur.Price, cur.VWAP)
	aboveEMA := p.cmp.above(cur.Price, cur.EMA)

	signals := make([]string, 0, 2)
	if aboveVWAP {
		signals = append(signals, "Price reclaimed VWAP (Long)")
	} else {
		signals = append(signals, "Price dropped below VWAP (Short)")
	}
	if aboveEMA {
		signals = append(signals, "Price crossed above "+p.emaLabel+" (Long)")
	} else {
		signals = append(signals, "Price crossed below "+p.emaLabel+" (Short)")
	}

	state := Neutral
	switch {
	case aboveVWAP && aboveEMA:
		state = Long
	case p.cmp.below(cur.Price, cur.VWAP) && p.cmp.below(cur.Price, cur.EMA):
		state = Short
	}
	return Result{State: state, Signals: signals}
}

// Package strategy turns indicator snapshots into discrete trading signals.
//
// A Policy classifies one IndicatorSnapshot. ThresholdPolicy compares levels
// and is stateless; CrossoverPolicy is edge-triggered and keeps the previous
// snapshot between polling cycles. Classifier wraps a Policy and absorbs the
// data-gap errors from the indicator engine.
package strategy

import (
	"fmt"
	"strings"

	"vwap-alerts/internal/indicator"
	"vwap-alerts/internal/model"
)

// State is the combined verdict of one classification.
type State int

const (
	Neutral State = iota
	Long
	Short
)

func (s State) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "NEUTRAL"
	}
}

// ParseState is the inverse of State.String. Unknown input maps to Neutral.
func ParseState(s string) State {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG":
		return Long
	case "SHORT":
		return Short
	default:
		return Neutral
	}
}

// Comparison controls how a price exactly on the line is treated.
type Comparison int

const (
	// Strict: a tie is neither above nor a cross (price > line required).
	Strict Comparison = iota
	// Inclusive: a tie counts as above, and a touch from below counts as the
	// "before" side of a cross.
	Inclusive
)

func (c Comparison) String() string {
	if c == Inclusive {
		return "inclusive"
	}
	return "strict"
}

// ParseComparison parses "strict" or "inclusive".
func ParseComparison(s string) (Comparison, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return Strict, nil
	case "inclusive":
		return Inclusive, nil
	}
	return 0, fmt.Errorf("%w: unknown comparison %q", indicator.ErrInvalidParameter, s)
}

// above reports whether price is above line under c.
func (c Comparison) above(price, line float64) bool {
	if c == Inclusive {
		return price >= line
	}
	return price > line
}

// below reports whether price is below line. Always strict: a tie is never
// treated as a short condition.
func (c Comparison) below(price, line float64) bool {
	return price < line
}

// Result is the outcome of one classification.
type Result struct {
	State   State
	Signals []string // independent human-readable descriptions

	// Skipped is set when the cycle had no usable indicator data.
	Skipped bool
	Reason  string
}

// HasSignals reports whether anything should be alerted.
func (r Result) HasSignals() bool { return !r.Skipped && len(r.Signals) > 0 }

// Policy classifies the current snapshot.
type Policy interface {
	// Name returns the policy identifier ("threshold", "crossover").
	Name() string

	// Classify maps a snapshot to a Result.
	Classify(cur model.IndicatorSnapshot) Result
}

// PolicyConfig selects and tunes a Policy.
type PolicyConfig struct {
	Name        string // "threshold" or "crossover"
	Comparison  Comparison
	EMAPeriod   int  // used in signal wording only
	ShortEvents bool // crossover: also fire on downward crosses
}

// NewPolicy builds the policy named in cfg.
func NewPolicy(cfg PolicyConfig) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "threshold", "":
		return NewThreshold(cfg.Comparison, cfg.EMAPeriod), nil
	case "crossover":
		return NewCrossover(cfg.Comparison, cfg.EMAPeriod, cfg.ShortEvents), nil
	}
	return nil, fmt.Errorf("%w: unknown classification policy %q", indicator.ErrInvalidParameter, cfg.Name)
}

func emaLabel(period int) string {
	if period <= 0 {
		return "EMA"
	}
	return fmt.Sprintf("%dEMA", period)
}

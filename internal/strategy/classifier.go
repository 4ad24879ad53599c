package strategy

import (
	"errors"

	"vwap-alerts/internal/indicator"
	"vwap-alerts/internal/model"
)

// Restorable is implemented by policies that carry state across cycles.
type Restorable interface {
	Restore(snap model.IndicatorSnapshot)
	Previous() (model.IndicatorSnapshot, bool)
}

// Classifier applies a Policy to the indicator engine's output.
// A data gap (empty series, zero volume) short-circuits to a skipped Result
// and leaves the policy state untouched.
type Classifier struct {
	policy Policy
}

// NewClassifier wraps policy.
func NewClassifier(policy Policy) *Classifier {
	return &Classifier{policy: policy}
}

// Policy returns the wrapped policy.
func (c *Classifier) Policy() Policy { return c.policy }

// Evaluate classifies snap, or skips when computeErr is a data gap.
// Any other computeErr is also reported as skipped; Evaluate never fails.
func (c *Classifier) Evaluate(snap model.IndicatorSnapshot, computeErr error) Result {
	switch {
	case computeErr == nil:
		return c.policy.Classify(snap)
	case errors.Is(computeErr, indicator.ErrDivisionUndefined):
		return Result{Skipped: true, Reason: "vwap undefined (zero cumulative volume)"}
	case errors.Is(computeErr, indicator.ErrInsufficientData):
		return Result{Skipped: true, Reason: "no bars"}
	default:
		return Result{Skipped: true, Reason: computeErr.Error()}
	}
}

// Restore seeds the policy's previous snapshot when it supports one.
// Returns false for stateless policies.
func (c *Classifier) Restore(snap model.IndicatorSnapshot) bool {
	r, ok := c.policy.(Restorable)
	if !ok {
		return false
	}
	r.Restore(snap)
	return true
}

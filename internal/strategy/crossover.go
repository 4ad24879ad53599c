package strategy

import (
	"log"
	"sync"

	"vwap-alerts/internal/model"
)

// CrossoverPolicy fires on transitions, not levels.
//
// VWAP reclaim: previous price below previous VWAP, current price above current VWAP
// EMA cross:    previous price below previous EMA,  current price above current EMA
//
// With short events enabled the mirrored downward crosses fire as well.
// The first classification never fires. Every classification, fired or not,
// stores the current snapshot as the previous one.
type CrossoverPolicy struct {
	cmp         Comparison
	emaLabel    string
	shortEvents bool

	// prev is read and replaced in one critical section per cycle.
	mu      sync.Mutex
	prev    model.IndicatorSnapshot
	hasPrev bool
}

// NewCrossover creates a crossover policy with no previous snapshot.
func NewCrossover(cmp Comparison, period int, shortEvents bool) *CrossoverPolicy {
	return &CrossoverPolicy{
		cmp:         cmp,
		emaLabel:    emaLabel(period),
		shortEvents: shortEvents,
	}
}

func (p *CrossoverPolicy) Name() string { return "crossover" }

func (p *CrossoverPolicy) Classify(cur model.IndicatorSnapshot) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev, hasPrev := p.prev, p.hasPrev
	p.prev, p.hasPrev = cur, true

	if !hasPrev {
		return Result{State: Neutral}
	}

	var longs, shorts []string
	if p.crossedUp(prev.Price, prev.VWAP, cur.Price, cur.VWAP) {
		longs = append(longs, "Price reclaimed VWAP (Long)")
	}
	if p.crossedUp(prev.Price, prev.EMA, cur.Price, cur.EMA) {
		longs = append(longs, "Price crossed above "+p.emaLabel+" (Long)")
	}
	if p.shortEvents {
		if p.crossedDown(prev.Price, prev.VWAP, cur.Price, cur.VWAP) {
			shorts = append(shorts, "Price dropped below VWAP (Short)")
		}
		if p.crossedDown(prev.Price, prev.EMA, cur.Price, cur.EMA) {
			shorts = append(shorts, "Price crossed below "+p.emaLabel+" (Short)")
		}
	}

	state := Neutral
	switch {
	case len(longs) > 0 && len(shorts) == 0:
		state = Long
	case len(shorts) > 0 && len(longs) == 0:
		state = Short
	case len(longs) > 0 && len(shorts) > 0:
		log.Printf("[strategy] crossover: conflicting events at %s (long=%d short=%d)",
			cur.TS.Format("15:04:05"), len(longs), len(shorts))
	}
	return Result{State: state, Signals: append(longs, shorts...)}
}

// crossedUp: strictly below (or touching, when inclusive) before, strictly above now.
func (p *CrossoverPolicy) crossedUp(prevPrice, prevLine, curPrice, curLine float64) bool {
	wasBelow := prevPrice < prevLine
	if p.cmp == Inclusive {
		wasBelow = prevPrice <= prevLine
	}
	return wasBelow && curPrice > curLine
}

func (p *CrossoverPolicy) crossedDown(prevPrice, prevLine, curPrice, curLine float64) bool {
	wasAbove := prevPrice > prevLine
	if p.cmp == Inclusive {
		wasAbove = prevPrice >= prevLine
	}
	return wasAbove && curPrice < curLine
}

// Previous returns the stored previous snapshot.
func (p *CrossoverPolicy) Previous() (model.IndicatorSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prev, p.hasPrev
}

// Restore seeds the previous snapshot, e.g. from the last logged alert.
func (p *CrossoverPolicy) Restore(snap model.IndicatorSnapshot) {
	p.mu.Lock()
	p.prev, p.hasPrev = snap, true
	p.mu.Unlock()
}

// Reset forgets the previous snapshot.
func (p *CrossoverPolicy) Reset() {
	p.mu.Lock()
	p.prev, p.hasPrev = model.IndicatorSnapshot{}, false
	p.mu.Unlock()
}

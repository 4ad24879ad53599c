package indicator

import (
	"fmt"
	"strings"
	"time"

	"vwap-alerts/internal/model"
)

// VWAPMode selects how the VWAP for the latest bar is obtained.
type VWAPMode int

const (
	// ModeSingleValue computes one VWAP over the whole series.
	ModeSingleValue VWAPMode = iota
	// ModeSessionCumulative walks the cumulative per-bar sequence and takes
	// the point at the last bar.
	ModeSessionCumulative
)

func (m VWAPMode) String() string {
	switch m {
	case ModeSingleValue:
		return "single-value"
	case ModeSessionCumulative:
		return "session-cumulative"
	default:
		return "unknown"
	}
}

// ParseVWAPMode parses "single-value" or "session-cumulative".
func ParseVWAPMode(s string) (VWAPMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single-value", "single", "":
		return ModeSingleValue, nil
	case "session-cumulative", "cumulative", "session":
		return ModeSessionCumulative, nil
	}
	return 0, fmt.Errorf("%w: unknown vwap mode %q", ErrInvalidParameter, s)
}

// EMAMode selects whether the EMA is recomputed from scratch every cycle or
// carried forward between cycles. The two agree only when the replayed
// history is identical every time.
type EMAMode int

const (
	EMAReplay  EMAMode = iota // recompute from the first bar each cycle
	EMARunning                // resume from the previous cycle's running value
)

func (m EMAMode) String() string {
	switch m {
	case EMAReplay:
		return "replay"
	case EMARunning:
		return "running"
	default:
		return "unknown"
	}
}

// ParseEMAMode parses "replay" or "running".
func ParseEMAMode(s string) (EMAMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replay", "":
		return EMAReplay, nil
	case "running", "resume":
		return EMARunning, nil
	}
	return 0, fmt.Errorf("%w: unknown ema mode %q", ErrInvalidParameter, s)
}

// Config specifies how the engine computes its indicators.
type Config struct {
	EMAPeriod int
	VWAPMode  VWAPMode
	Basis     PriceBasis
	EMAMode   EMAMode

	// SessionLoc, when set, anchors VWAP at the start of the last bar's
	// calendar day in this location. EMA always uses the full series.
	SessionLoc *time.Location
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.EMAPeriod < 1 {
		return fmt.Errorf("%w: ema period %d must be positive", ErrInvalidParameter, c.EMAPeriod)
	}
	if c.VWAPMode != ModeSingleValue && c.VWAPMode != ModeSessionCumulative {
		return fmt.Errorf("%w: vwap mode %d", ErrInvalidParameter, c.VWAPMode)
	}
	if c.Basis != BasisClose && c.Basis != BasisTypical {
		return fmt.Errorf("%w: price basis %d", ErrInvalidParameter, c.Basis)
	}
	if c.EMAMode != EMAReplay && c.EMAMode != EMARunning {
		return fmt.Errorf("%w: ema mode %d", ErrInvalidParameter, c.EMAMode)
	}
	return nil
}

// Engine turns a bar series into an IndicatorSnapshot.
// In EMARunning mode it exclusively owns the running EMA; callers only see it
// through EMAState. Designed for single-goroutine usage.
type Engine struct {
	cfg Config
	ema *EMA // running mode only
}

// NewEngine validates cfg and creates an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg}
	if cfg.EMAMode == EMARunning {
		e.ema, _ = NewEMA(cfg.EMAPeriod)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Compute derives the snapshot for the last bar of series. If quote is
// non-nil it is used as the snapshot price instead of the last close.
//
// Either the whole snapshot is returned or an error; in running mode the EMA
// state is only advanced when the cycle succeeds.
func (e *Engine) Compute(series *model.BarSeries, quote *float64) (model.IndicatorSnapshot, error) {
	last, ok := lastBar(series)
	if !ok {
		return model.IndicatorSnapshot{}, ErrInsufficientData
	}

	vwap, err := e.vwap(series)
	if err != nil {
		return model.IndicatorSnapshot{}, err
	}

	var ema float64
	if e.cfg.EMAMode == EMARunning {
		next := *e.ema
		for _, b := range series.Since(next.lastTS) {
			next.Update(b)
		}
		ema = next.Value()
		*e.ema = next
	} else {
		ema, err = EMAValue(series, e.cfg.EMAPeriod)
		if err != nil {
			return model.IndicatorSnapshot{}, err
		}
	}

	price := last.Close
	if quote != nil {
		price = *quote
	}
	return model.IndicatorSnapshot{
		TS:    last.TS,
		Price: price,
		VWAP:  vwap,
		EMA:   ema,
	}, nil
}

func (e *Engine) vwap(series *model.BarSeries) (float64, error) {
	if e.cfg.SessionLoc != nil {
		series = series.Session(e.cfg.SessionLoc)
	}
	if e.cfg.VWAPMode == ModeSingleValue {
		return VWAPValue(series, e.cfg.Basis)
	}

	var last VWAPPoint
	err := EachVWAP(series, e.cfg.Basis, func(_ int, p VWAPPoint) bool {
		last = p
		return true
	})
	if err != nil {
		return 0, err
	}
	return last.Value, last.Err
}

// EMAState returns the running EMA state. ok is false in replay mode.
func (e *Engine) EMAState() (EMAState, bool) {
	if e.ema == nil {
		return EMAState{}, false
	}
	return e.ema.Snapshot(), true
}

// ResumeEMA replaces the running EMA with a previously captured state.
// Only valid in running mode, and only for a state with the same period.
func (e *Engine) ResumeEMA(st EMAState) error {
	if e.cfg.EMAMode != EMARunning {
		return fmt.Errorf("%w: resume requires running ema mode", ErrInvalidParameter)
	}
	if st.Period != e.cfg.EMAPeriod {
		return fmt.Errorf("%w: snapshot period %d != configured %d", ErrInvalidParameter, st.Period, e.cfg.EMAPeriod)
	}
	ema, err := RestoreEMA(st)
	if err != nil {
		return err
	}
	e.ema = ema
	return nil
}

func lastBar(series *model.BarSeries) (model.Bar, bool) {
	if series == nil {
		return model.Bar{}, false
	}
	return series.Last()
}

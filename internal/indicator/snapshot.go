package indicator

import (
	"encoding/json"
	"fmt"
	"time"
)

// EMAState is the serialisable running state of an EMA. Carrying it forward
// lets a long-running process resume the recurrence instead of replaying the
// whole history every cycle.
type EMAState struct {
	Period  int       `json:"period"`
	Alpha   float64   `json:"alpha"`
	Current float64   `json:"current"`
	Count   int       `json:"count"`
	LastTS  time.Time `json:"last_ts"`
}

// JSON returns the JSON-encoded state.
func (s *EMAState) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// Snapshot captures the EMA state.
func (e *EMA) Snapshot() EMAState {
	return EMAState{
		Period:  e.period,
		Alpha:   e.alpha,
		Current: e.current,
		Count:   e.count,
		LastTS:  e.lastTS,
	}
}

// RestoreEMA rebuilds an EMA from a snapshot. The stored alpha must be the
// one derived from the stored period; anything else would silently change
// the recurrence.
func RestoreEMA(st EMAState) (*EMA, error) {
	e, err := NewEMA(st.Period)
	if err != nil {
		return nil, err
	}
	if st.Alpha != e.alpha {
		return nil, fmt.Errorf("%w: snapshot alpha %v does not match period %d (want %v)",
			ErrInvalidParameter, st.Alpha, st.Period, e.alpha)
	}
	if st.Count < 0 {
		return nil, fmt.Errorf("%w: negative snapshot count %d", ErrInvalidParameter, st.Count)
	}
	e.current = st.Current
	e.count = st.Count
	e.lastTS = st.LastTS
	return e, nil
}

// Package alert renders a classification into a human-readable alert.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vwap-alerts/internal/model"
	"vwap-alerts/internal/strategy"
)

const timeLayout = "2006-01-02 15:04:05"

// Alert is a composed, ready-to-send message.
type Alert struct {
	ID        string
	Symbol    string
	State     strategy.State
	Title     string
	Body      string
	Snapshot  model.IndicatorSnapshot
	Signals   []string
	CreatedAt time.Time
}

// NewID returns a fresh alert identifier.
func NewID() string { return uuid.NewString() }

// Compose builds the alert for one classification. Values are rounded to two
// decimals for display only; Snapshot keeps full precision. The title
// timestamp is the snapshot time rendered in loc (UTC when nil).
func Compose(symbol string, res strategy.Result, snap model.IndicatorSnapshot, emaPeriod int, loc *time.Location) Alert {
	if loc == nil {
		loc = time.UTC
	}
	signals := append([]string(nil), res.Signals...)

	title := fmt.Sprintf("📊 %s Alert (%s)", symbol, snap.TS.In(loc).Format(timeLayout))

	var b strings.Builder
	fmt.Fprintf(&b, "Price: %s\n", round2(snap.Price))
	fmt.Fprintf(&b, "VWAP: %s\n", round2(snap.VWAP))
	fmt.Fprintf(&b, "%d EMA: %s\n", emaPeriod, round2(snap.EMA))
	b.WriteString("\n🔔 Signals:")
	for _, s := range signals {
		b.WriteString("\n- ")
		b.WriteString(s)
	}

	return Alert{
		ID:        NewID(),
		Symbol:    symbol,
		State:     res.State,
		Title:     title,
		Body:      b.String(),
		Snapshot:  snap,
		Signals:   signals,
		CreatedAt: snap.TS,
	}
}

// Text returns the full message: title line followed by the body.
func (a Alert) Text() string {
	return a.Title + "\n" + a.Body
}

// Record converts the alert into an alert log entry stamped at ts.
func (a Alert) Record(ts time.Time) model.AlertRecord {
	snap := a.Snapshot
	return model.AlertRecord{
		ID:       a.ID,
		TS:       ts,
		Symbol:   a.Symbol,
		State:    a.State.String(),
		Message:  a.Text(),
		Snapshot: &snap,
	}
}

func round2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

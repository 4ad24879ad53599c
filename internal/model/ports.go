package model

import (
	"context"
	"errors"
)

// ErrNoData is wrapped by BarSource and QuoteSource implementations when the
// upstream answered but had nothing to return (rate limit notes, unknown
// symbol, empty series).
var ErrNoData = errors.New("no data available")

// ── Collaborator ports ──
// The signal engine reaches market data and the audit log only through these
// interfaces. Concrete implementations live in pkg/alphavantage,
// internal/marketdata/ws and internal/store/*.

// BarSource supplies the intraday bar series for one symbol.
type BarSource interface {
	// IntradayBars returns the ordered series, or an error wrapping
	// ErrNoData when nothing is available this cycle.
	IntradayBars(ctx context.Context, symbol string) (*BarSeries, error)
}

// QuoteSource supplies a latest traded price independent of the bar series.
type QuoteSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// AlertLog is the append-only audit log of emitted alerts.
type AlertLog interface {
	// Append persists one record.
	Append(ctx context.Context, rec AlertRecord) error

	// Close releases underlying resources.
	Close() error
}

// AlertLogReader is implemented by logs that can return their newest record.
// Used to seed the crossover policy's previous snapshot after a restart.
type AlertLogReader interface {
	// LastRecord returns nil, nil when the log is empty.
	LastRecord(ctx context.Context) (*AlertRecord, error)
}

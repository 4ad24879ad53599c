package model

import (
	"encoding/json"
	"time"
)

// IndicatorSnapshot holds the derived indicator values for one bar.
// Price is either the bar close or a live quote, depending on the quote source.
type IndicatorSnapshot struct {
	TS    time.Time `json:"ts"`
	Price float64   `json:"price"`
	VWAP  float64   `json:"vwap"`
	EMA   float64   `json:"ema"`
}

// JSON returns the JSON-encoded snapshot.
func (s *IndicatorSnapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// AlertRecord is one append-only audit log entry.
type AlertRecord struct {
	ID       string             `json:"id"`
	TS       time.Time          `json:"ts"`
	Symbol   string             `json:"symbol"`
	State    string             `json:"state"`
	Message  string             `json:"message"`
	Snapshot *IndicatorSnapshot `json:"snapshot,omitempty"`
}

// JSON returns the JSON-encoded record.
func (r *AlertRecord) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

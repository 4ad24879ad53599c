package model

import "time"

// Trade is a single last-trade print from a streaming quote feed.
type Trade struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
	TS     time.Time `json:"ts"` // exchange timestamp (UTC)
}

package model

import (
	"encoding/json"
	"errors"
	"time"
)

// Bar represents one OHLCV price bar for a single symbol.
// Bars are immutable once received; the bar source guarantees
// non-decreasing timestamps per symbol but not continuity.
type Bar struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bar start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Bar validation errors.
var (
	ErrBarNoSymbol    = errors.New("bar: missing symbol")
	ErrBarNoTimestamp = errors.New("bar: missing timestamp")
	ErrBarHighLow     = errors.New("bar: high below low")
)

// Validate checks that the bar carries the required fields and a
// coherent high/low range. Timestamp ordering against the previous
// bar is the engine's job, not the bar's.
func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return ErrBarNoSymbol
	}
	if b.TS.IsZero() {
		return ErrBarNoTimestamp
	}
	if b.High < b.Low {
		return ErrBarHighLow
	}
	return nil
}

// Key returns the subscription key for this bar's symbol.
func (b *Bar) Key() string {
	return b.Symbol
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

package model

import (
	"encoding/json"
	"time"
)

// Direction is the directional state of a brick or trend.
type Direction int8

const (
	// None is the direction before the first brick forms.
	None Direction = 0
	// Up marks a rising brick (close above open).
	Up Direction = 1
	// Down marks a falling brick (close below open).
	Down Direction = -1
)

// String returns the wire/log name of the direction.
func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	default:
		return "NONE"
	}
}

// MarshalJSON encodes the direction as its string name.
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a direction from its string name.
func (d *Direction) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	switch s {
	case "UP":
		*d = Up
	case "DOWN":
		*d = Down
	default:
		*d = None
	}
	return nil
}

// Brick is one fixed-price-increment bar of a Renko series.
// Open and Close differ by exactly one brick-size unit (the active
// size at formation time); High/Low bound the source-price excursion
// absorbed into the brick. Bricks are immutable once appended to
// history; Seq is the 0-based position in that history.
type Brick struct {
	Symbol    string    `json:"symbol"`
	Seq       int       `json:"seq"`
	TS        time.Time `json:"ts"` // timestamp of the bar that completed the brick
	Open      float64   `json:"open"`
	Close     float64   `json:"close"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Direction Direction `json:"direction"`
	Volume    float64   `json:"volume"`
}

// Key returns the subscription key for this brick's symbol.
func (b *Brick) Key() string {
	return b.Symbol
}

// StreamKey returns the Redis stream key: "brick:{symbol}".
func (b *Brick) StreamKey() string {
	return "brick:" + b.Symbol
}

// JSON returns the JSON-encoded brick.
func (b *Brick) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// TrendChange describes a direction reversal in the brick series.
type TrendChange struct {
	Symbol            string    `json:"symbol"`
	TS                time.Time `json:"ts"`
	Old               Direction `json:"old_direction"`
	New               Direction `json:"new_direction"`
	ConsecutiveBefore int       `json:"consecutive_before"` // run length before the reversal
}

// StreamKey returns the Redis stream key: "trend:{symbol}".
func (t *TrendChange) StreamKey() string {
	return "trend:" + t.Symbol
}

// JSON returns the JSON-encoded trend change.
func (t *TrendChange) JSON() []byte {
	out, _ := json.Marshal(t)
	return out
}

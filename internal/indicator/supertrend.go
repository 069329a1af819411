package indicator

import (
	"math"

	"renko-systemv1/internal/model"
)

// SuperTrendResult holds one SuperTrend reading: the active band
// value, the current direction, and its display name.
type SuperTrendResult struct {
	Value     float64         `json:"value"`
	Direction model.Direction `json:"direction"`
	Trend     string          `json:"trend"`
}

// SuperTrend computes a SuperTrend overlay over brick high/low/close
// with an ATR over bricks (Wilder smoothing). Band updates are
// tighten-only: the lower band only ratchets up in an uptrend and the
// upper band only ratchets down in a downtrend, until the close
// crosses the active band and the direction flips.
//
// Returns ok=false when fewer than period+1 bricks are available.
func SuperTrend(bricks []model.Brick, period int, multiplier float64) (SuperTrendResult, bool) {
	if period <= 0 || len(bricks) < period+1 {
		return SuperTrendResult{}, false
	}

	atr := brickATR(bricks, period)

	dir := model.Up
	upper := 0.0 // final upper band (active in a downtrend)
	lower := 0.0 // final lower band (active in an uptrend)

	for i := period; i < len(bricks); i++ {
		b := bricks[i]
		hl2 := (b.High + b.Low) / 2
		basicUpper := hl2 + multiplier*atr[i]
		basicLower := hl2 - multiplier*atr[i]

		prevClose := bricks[i-1].Close

		if i == period {
			upper = basicUpper
			lower = basicLower
		} else {
			// Tighten-only updates: bands move toward price, never away,
			// unless the prior close already breached them.
			if basicUpper < upper || prevClose > upper {
				upper = basicUpper
			}
			if basicLower > lower || prevClose < lower {
				lower = basicLower
			}
		}

		// Flip when the close crosses the active band.
		if dir == model.Up && b.Close < lower {
			dir = model.Down
		} else if dir == model.Down && b.Close > upper {
			dir = model.Up
		}
	}

	res := SuperTrendResult{Direction: dir, Trend: dir.String()}
	if dir == model.Up {
		res.Value = lower
	} else {
		res.Value = upper
	}
	return res, true
}

// brickATR computes a Wilder-smoothed ATR series over bricks.
// atr[i] is valid for i >= period; earlier entries are zero.
func brickATR(bricks []model.Brick, period int) []float64 {
	tr := make([]float64, len(bricks))
	tr[0] = bricks[0].High - bricks[0].Low
	for i := 1; i < len(bricks); i++ {
		prevClose := bricks[i-1].Close
		tr[i] = math.Max(bricks[i].High-bricks[i].Low, math.Max(
			math.Abs(bricks[i].High-prevClose),
			math.Abs(bricks[i].Low-prevClose),
		))
	}

	atr := make([]float64, len(bricks))
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr[period] = sum / float64(period)
	p := float64(period)
	for i := period + 1; i < len(bricks); i++ {
		atr[i] = (atr[i-1]*(p-1) + tr[i]) / p
	}
	return atr
}

// Package volatility provides the rolling true-range estimator that
// sizes bricks adaptively. It follows Wilder's smoothing: the first
// ATR value is a simple average of the first N true ranges, after
// which ATR = (prev*(N-1) + TR) / N. Update is O(1) per bar.
package volatility

import (
	"math"

	"renko-systemv1/internal/model"
)

// ATR is a streaming Average True Range over raw source bars.
type ATR struct {
	period    int
	count     int
	prevClose float64
	sum       float64
	current   float64
}

// NewATR creates a streaming ATR with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Update feeds one bar and recomputes the estimate.
func (a *ATR) Update(bar model.Bar) {
	a.count++

	tr := bar.High - bar.Low
	if a.count > 1 {
		// True range vs the previous close, per Wilder.
		tr = math.Max(tr, math.Max(
			math.Abs(bar.High-a.prevClose),
			math.Abs(bar.Low-a.prevClose),
		))
	}
	a.prevClose = bar.Close

	if a.count <= a.period {
		// Accumulation phase: build the initial SMA seed.
		a.sum += tr
		if a.count == a.period {
			a.current = a.sum / float64(a.period)
		}
		return
	}

	p := float64(a.period)
	a.current = (a.current*(p-1) + tr) / p
}

// Value returns the current ATR. Returns 0 until Ready.
func (a *ATR) Value() float64 { return a.current }

// Ready reports whether the estimator has seen a full period of bars.
func (a *ATR) Ready() bool { return a.count >= a.period }

// Period returns the configured lookback.
func (a *ATR) Period() int { return a.period }

// Reset clears the estimator for reuse.
func (a *ATR) Reset() {
	a.count = 0
	a.prevClose = 0
	a.sum = 0
	a.current = 0
}

package indicator

import "renko-systemv1/internal/model"

// StochasticResult holds one stochastic oscillator reading.
type StochasticResult struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// Stochastic computes %K and %D over brick high/low/close:
//
//	%K = (close − lowestLow) / (highestHigh − lowestLow) × 100
//
// over the kPeriod lookback, with %D the simple average of the last
// dPeriod %K values. A flat window (zero range) yields K=50 rather
// than a division by zero. Returns ok=false when fewer than kPeriod
// bricks are available; %D falls back to the available %K values when
// history is too short for a full dPeriod.
func Stochastic(bricks []model.Brick, kPeriod, dPeriod int) (StochasticResult, bool) {
	if kPeriod <= 0 || dPeriod <= 0 || len(bricks) < kPeriod {
		return StochasticResult{}, false
	}

	// %K series for the last dPeriod positions (or as many as exist).
	n := dPeriod
	if max := len(bricks) - kPeriod + 1; n > max {
		n = max
	}

	ks := make([]float64, 0, n)
	for end := len(bricks) - n; end < len(bricks); end++ {
		ks = append(ks, pctK(bricks[end-kPeriod+1:end+1]))
	}

	k := ks[len(ks)-1]
	d := 0.0
	for _, v := range ks {
		d += v
	}
	d /= float64(len(ks))

	return StochasticResult{K: k, D: d}, true
}

// pctK computes %K over one window of bricks.
func pctK(window []model.Brick) float64 {
	hi := window[0].High
	lo := window[0].Low
	for _, b := range window[1:] {
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}
	if hi == lo {
		return 50.0 // flat market
	}
	close := window[len(window)-1].Close
	return (close - lo) / (hi - lo) * 100.0
}

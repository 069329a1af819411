package indicator

import "math"

// BollingerResult holds one Bollinger Bands reading.
type BollingerResult struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Bollinger computes SMA ± k·stddev over the last period closes.
// Uses population standard deviation. Returns ok=false when fewer
// than period points are available.
func Bollinger(closes []float64, period int, k float64) (BollingerResult, bool) {
	mean, ok := SMA(closes, period)
	if !ok {
		return BollingerResult{}, false
	}

	window := closes[len(closes)-period:]
	variance := 0.0
	for _, c := range window {
		d := c - mean
		variance += d * d
	}
	variance /= float64(period)
	dev := math.Sqrt(variance)

	return BollingerResult{
		Upper:  mean + k*dev,
		Middle: mean,
		Lower:  mean - k*dev,
	}, true
}

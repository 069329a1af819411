package indicator

import "renko-systemv1/internal/model"

// MACDResult holds the latest MACD reading over a close series.
type MACDResult struct {
	MACD      float64         `json:"macd"`
	Signal    float64         `json:"signal"`
	Histogram float64         `json:"histogram"`
	Direction model.Direction `json:"direction"` // sign of the histogram
	Crossover Crossover       `json:"crossover"`
}

// MACD computes Moving Average Convergence Divergence over closes.
// The MACD line is fastEMA - slowEMA on overlapping indices, the
// signal line is an EMA of the MACD line over signalPeriod, and the
// histogram is MACD - signal. Crossover compares the sign of
// (prevMACD - prevSignal) against (MACD - signal).
//
// Returns ok=false when fewer than slow+signalPeriod-1 closes are
// available.
func MACD(closes []float64, fast, slow, signalPeriod int) (MACDResult, bool) {
	if fast <= 0 || slow <= fast || signalPeriod <= 0 {
		return MACDResult{}, false
	}
	if len(closes) < slow+signalPeriod-1 {
		return MACDResult{}, false
	}

	fastEMA := EMAArray(closes, fast)
	slowEMA := EMAArray(closes, slow)

	// Align the fast series onto the slow one: the slow EMA starts
	// slow-fast entries later.
	offset := slow - fast
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalEMA := EMAArray(line, signalPeriod)
	if len(signalEMA) == 0 {
		return MACDResult{}, false
	}

	macd := line[len(line)-1]
	signal := signalEMA[len(signalEMA)-1]
	hist := macd - signal

	res := MACDResult{
		MACD:      macd,
		Signal:    signal,
		Histogram: hist,
		Crossover: CrossNone,
	}
	switch {
	case hist > 0:
		res.Direction = model.Up
	case hist < 0:
		res.Direction = model.Down
	}

	if len(signalEMA) >= 2 {
		prevDiff := line[len(line)-2] - signalEMA[len(signalEMA)-2]
		switch {
		case prevDiff <= 0 && hist > 0:
			res.Crossover = CrossBullish
		case prevDiff >= 0 && hist < 0:
			res.Crossover = CrossBearish
		}
	}
	return res, true
}

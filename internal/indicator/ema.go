package indicator

// EMAArray computes an Exponential Moving Average series over closes.
// The seed is the simple average of the first period values; from
// there the series iterates forward with multiplier 2/(period+1).
//
// The result is aligned to the tail of the input: result[i]
// corresponds to closes[i+period-1], so len(result) ==
// len(closes)-period+1. Returns nil when fewer than period points are
// available.
func EMAArray(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}

	out := make([]float64, 0, len(closes)-period+1)

	seed := 0.0
	for _, c := range closes[:period] {
		seed += c
	}
	seed /= float64(period)
	out = append(out, seed)

	mult := 2.0 / float64(period+1)
	ema := seed
	for _, c := range closes[period:] {
		ema = c*mult + ema*(1-mult)
		out = append(out, ema)
	}
	return out
}

// SMA computes the simple average of the last period values.
// Returns (0, false) when fewer than period points are available.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

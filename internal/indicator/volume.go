package indicator

// VolumeSurgeResult reports whether the latest volume is unusually
// large relative to its recent rolling average.
type VolumeSurgeResult struct {
	Surge bool    `json:"surge"`
	Ratio float64 `json:"ratio"`
}

// VolumeSurge compares the last entry of volumes against the rolling
// average of the window entries preceding it. Surge is true when
// ratio >= threshold. Returns ok=false when fewer than window+1
// entries are available; a zero rolling average yields ratio 0 and no
// surge rather than a division by zero.
func VolumeSurge(volumes []float64, window int, threshold float64) (VolumeSurgeResult, bool) {
	if window <= 0 || len(volumes) < window+1 {
		return VolumeSurgeResult{}, false
	}

	current := volumes[len(volumes)-1]
	sum := 0.0
	for _, v := range volumes[len(volumes)-1-window : len(volumes)-1] {
		sum += v
	}
	avg := sum / float64(window)
	if avg == 0 {
		return VolumeSurgeResult{}, true
	}

	ratio := current / avg
	return VolumeSurgeResult{
		Surge: ratio >= threshold,
		Ratio: ratio,
	}, true
}

package indicator

import (
	"math"
	"testing"
)

func TestVolumeSurge_Detected(t *testing.T) {
	res, ok := VolumeSurge([]float64{10, 10, 10, 10, 30}, 4, 2.0)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if !res.Surge {
		t.Error("expected surge at 3x the rolling average")
	}
	if math.Abs(res.Ratio-3.0) > 1e-9 {
		t.Errorf("expected ratio 3.0, got %.4f", res.Ratio)
	}
}

func TestVolumeSurge_BelowThreshold(t *testing.T) {
	res, ok := VolumeSurge([]float64{10, 10, 10, 10, 15}, 4, 2.0)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if res.Surge {
		t.Errorf("1.5x should not surge at threshold 2.0: %+v", res)
	}
}

func TestVolumeSurge_ZeroAverage(t *testing.T) {
	res, ok := VolumeSurge([]float64{0, 0, 0, 0, 50}, 4, 2.0)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if res.Surge || res.Ratio != 0 {
		t.Errorf("zero average must yield ratio 0, no surge: %+v", res)
	}
}

func TestVolumeSurge_InsufficientData(t *testing.T) {
	if _, ok := VolumeSurge([]float64{10, 10}, 4, 2.0); ok {
		t.Fatal("expected ok=false below window+1 entries")
	}
}

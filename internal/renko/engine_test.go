package renko

import (
	"math"
	"reflect"
	"testing"
	"time"

	"renko-systemv1/internal/model"
)

var t0 = time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)

// barSeq builds bars at 1-minute spacing from close prices. High/low
// hug the close so excursion clipping stays predictable.
func barSeq(closes ...float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Symbol: "NIFTY",
			TS:     t0.Add(time.Duration(i) * time.Minute),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 100,
		}
	}
	return bars
}

func fixedEngine(t *testing.T, size float64) *Engine {
	t.Helper()
	e, err := New(Config{Symbol: "NIFTY", FixedBrickSize: size})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func feed(e *Engine, bars []model.Bar) {
	for _, b := range bars {
		e.UpdatePrice(b)
	}
}

func TestConfig_Validation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		err  error
	}{
		{"missing symbol", Config{FixedBrickSize: 10}, ErrConfigSymbol},
		{"neither sizing mode", Config{Symbol: "X"}, ErrConfigBrickSize},
		{"both sizing modes", Config{Symbol: "X", FixedBrickSize: 10, AutoBrickSize: true}, ErrConfigBrickSize},
		{"reversal below one", Config{Symbol: "X", FixedBrickSize: 10, ReversalWidths: 0.5}, ErrConfigReversal},
		{"valid fixed", Config{Symbol: "X", FixedBrickSize: 10}, nil},
		{"valid auto", Config{Symbol: "X", AutoBrickSize: true}, nil},
	}
	for _, tc := range cases {
		_, err := New(tc.cfg)
		if tc.err == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if tc.err != nil && err != tc.err {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}

// The reference scenario: seed 100, +12 forms one UP brick, a 1.5-
// width adverse move forms nothing, a 2.5-width adverse move forms
// exactly one DOWN brick with a trend change.
func TestScenario_SeedTrendAndReversal(t *testing.T) {
	e := fixedEngine(t, 10)

	var trends []model.TrendChange
	e.OnTrendChange(func(tc model.TrendChange) { trends = append(trends, tc) })

	bars := barSeq(100, 112, 95, 85)

	if e.UpdatePrice(bars[0]) {
		t.Fatal("seed bar must not form a brick")
	}
	if !e.UpdatePrice(bars[1]) {
		t.Fatal("close=112 should form one UP brick")
	}
	bricks := e.Bricks()
	if len(bricks) != 1 || bricks[0].Open != 100 || bricks[0].Close != 110 || bricks[0].Direction != model.Up {
		t.Fatalf("unexpected first brick: %+v", bricks)
	}

	if e.UpdatePrice(bars[2]) {
		t.Fatal("close=95 (1.5 widths adverse) must not form a brick")
	}
	if got := e.BrickCount(); got != 1 {
		t.Fatalf("history grew on sub-threshold move: %d", got)
	}

	if !e.UpdatePrice(bars[3]) {
		t.Fatal("close=85 (2.5 widths adverse) should form one DOWN brick")
	}
	bricks = e.Bricks()
	if len(bricks) != 2 {
		t.Fatalf("expected 2 bricks, got %d", len(bricks))
	}
	down := bricks[1]
	if down.Open != 110 || down.Close != 100 || down.Direction != model.Down {
		t.Fatalf("unexpected reversal brick: %+v", down)
	}

	if len(trends) != 1 {
		t.Fatalf("expected 1 trend change, got %d", len(trends))
	}
	if trends[0].Old != model.Up || trends[0].New != model.Down || trends[0].ConsecutiveBefore != 1 {
		t.Fatalf("unexpected trend change: %+v", trends[0])
	}
}

func TestReversal_ExactThreshold(t *testing.T) {
	e := fixedEngine(t, 10)
	feed(e, barSeq(100, 110)) // establish UP, anchor 110

	// Exactly 2 widths adverse: one DOWN brick.
	if !e.UpdatePrice(barSeq(100, 110, 90)[2]) {
		t.Fatal("move of exactly 2 widths must form one reversal brick")
	}
	if got := e.BrickCount(); got != 2 {
		t.Fatalf("expected 2 bricks, got %d", got)
	}
}

func TestGapBar_EmitsMultipleBricks(t *testing.T) {
	e := fixedEngine(t, 10)

	var emitted []model.Brick
	e.OnNewBrick(func(b model.Brick) { emitted = append(emitted, b) })

	gap := barSeq(100, 145)
	gap[1].High = 146
	gap[1].Low = 99
	feed(e, gap)

	if len(emitted) != 4 {
		t.Fatalf("expected 4 bricks from a 4.5-width gap, got %d", len(emitted))
	}
	wantOpens := []float64{100, 110, 120, 130}
	for i, b := range emitted {
		if b.Open != wantOpens[i] || b.Close != wantOpens[i]+10 {
			t.Errorf("brick %d: open=%.1f close=%.1f", i, b.Open, b.Close)
		}
		if b.Direction != model.Up {
			t.Errorf("brick %d: direction %v", i, b.Direction)
		}
	}

	// Excursion clipping: first brick absorbs the bar low, last the
	// bar high, interior bricks keep their open/close span.
	if emitted[0].Low != 99 {
		t.Errorf("first brick low: expected 99, got %.1f", emitted[0].Low)
	}
	if emitted[3].High != 146 {
		t.Errorf("last brick high: expected 146, got %.1f", emitted[3].High)
	}
	if emitted[1].Low != 110 || emitted[1].High != 120 {
		t.Errorf("interior brick bounds: %+v", emitted[1])
	}

	// Bar volume lands on the last brick of the run only.
	if emitted[0].Volume != 0 || emitted[3].Volume != 100 {
		t.Errorf("volume attribution: first=%.0f last=%.0f", emitted[0].Volume, emitted[3].Volume)
	}
}

func TestInvariants_ContinuityAndSeq(t *testing.T) {
	e := fixedEngine(t, 5)

	// Random-walk-ish path exercising continuations and reversals.
	feed(e, barSeq(100, 118, 131, 104, 97, 122, 88, 140, 139, 70))

	bricks := e.Bricks()
	if len(bricks) == 0 {
		t.Fatal("expected bricks from the walk")
	}
	for i, b := range bricks {
		if b.Seq != i {
			t.Errorf("brick %d: Seq=%d", i, b.Seq)
		}
		if math.Abs(math.Abs(b.Close-b.Open)-5) > 1e-9 {
			t.Errorf("brick %d: |close-open| != size: %+v", i, b)
		}
		if i > 0 && bricks[i].Open != bricks[i-1].Close {
			t.Errorf("brick %d: continuity broken: prev close=%.2f open=%.2f",
				i, bricks[i-1].Close, bricks[i].Open)
		}
	}
}

func TestDeterminism_IncrementalEqualsBatch(t *testing.T) {
	closes := []float64{100, 103, 111, 99, 92, 120, 121, 87, 130, 128, 64, 150}
	bars := barSeq(closes...)

	one := fixedEngine(t, 7)
	for _, b := range bars {
		one.UpdatePrice(b) // one-at-a-time, as a live feed would
	}

	batch := fixedEngine(t, 7)
	feed(batch, bars) // pre-loaded batch, as a backtest would

	if !reflect.DeepEqual(one.Bricks(), batch.Bricks()) {
		t.Fatalf("histories diverge:\none:   %+v\nbatch: %+v", one.Bricks(), batch.Bricks())
	}

	c1, d1 := one.ConsecutiveBricks()
	c2, d2 := batch.ConsecutiveBricks()
	if c1 != c2 || d1 != d2 {
		t.Fatalf("consecutive state diverges: (%d,%v) vs (%d,%v)", c1, d1, c2, d2)
	}
}

func TestMalformedBar_RejectedWithoutStateChange(t *testing.T) {
	e := fixedEngine(t, 10)

	var errs []error
	e.OnError(func(err error) { errs = append(errs, err) })

	feed(e, barSeq(100, 112))
	before := e.BrickCount()

	bad := model.Bar{
		Symbol: "NIFTY",
		TS:     t0.Add(10 * time.Minute),
		Open:   200, High: 190, Low: 210, Close: 200, // high < low
	}
	if e.UpdatePrice(bad) {
		t.Fatal("malformed bar must not form bricks")
	}
	if e.BrickCount() != before {
		t.Fatal("malformed bar mutated history")
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 error event, got %d", len(errs))
	}

	// A rejected bar must not advance the timestamp watermark either:
	// the next good bar at the same time as the last good one fails,
	// but one after it succeeds.
	stale := barSeq(100, 112)[1] // same TS as last accepted bar
	if e.UpdatePrice(stale) {
		t.Fatal("equal timestamp must be rejected")
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 error events, got %d", len(errs))
	}
}

func TestOutOfOrderBar_Rejected(t *testing.T) {
	e := fixedEngine(t, 10)

	var errCount int
	e.OnError(func(error) { errCount++ })

	bars := barSeq(100, 112, 125)
	feed(e, bars)
	before := e.Bricks()

	old := bars[1] // timestamp behind the watermark
	if e.UpdatePrice(old) {
		t.Fatal("out-of-order bar must not form bricks")
	}
	if errCount != 1 {
		t.Fatalf("expected 1 error event, got %d", errCount)
	}
	if !reflect.DeepEqual(before, e.Bricks()) {
		t.Fatal("out-of-order bar mutated history")
	}
}

func TestConsecutiveCount(t *testing.T) {
	e := fixedEngine(t, 10)

	feed(e, barSeq(100, 132)) // 3 UP bricks
	count, dir := e.ConsecutiveBricks()
	if count != 3 || dir != model.Up {
		t.Fatalf("expected (3, UP), got (%d, %v)", count, dir)
	}

	feed(e, barSeq(100, 132, 95)[2:]) // reversal: 130 → 95 is 3.5 widths → 2 DOWN bricks
	count, dir = e.ConsecutiveBricks()
	if count != 2 || dir != model.Down {
		t.Fatalf("expected (2, DOWN) after reversal, got (%d, %v)", count, dir)
	}
}

func TestTrendStrength_Bounded(t *testing.T) {
	e := fixedEngine(t, 10)
	if e.TrendStrength() != 0 {
		t.Fatalf("expected 0 strength before bricks, got %.2f", e.TrendStrength())
	}

	// 30 UP bricks: strength must saturate at 1.
	feed(e, barSeq(100, 400))
	if s := e.TrendStrength(); s != 1 {
		t.Fatalf("expected saturated strength 1, got %.2f", s)
	}
}

func TestAutoBrickSize_ResizesFutureBricksOnly(t *testing.T) {
	e, err := New(Config{
		Symbol:           "NIFTY",
		AutoBrickSize:    true,
		ATRPeriod:        3,
		ATRMultiplier:    1.0,
		DefaultBrickSize: 10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The default size 10 governs while the ATR warms up: the second
	// bar forms one brick of width 10.
	bars := barSeq(100, 111, 101)
	for i := range bars {
		bars[i].High = bars[i].Close + 4
		bars[i].Low = bars[i].Close - 4
	}
	feed(e, bars)

	if e.BrickCount() != 1 {
		t.Fatalf("expected 1 brick during warmup, got %d", e.BrickCount())
	}

	// True ranges: 8, max(8,|115-100|)=15, max(8,|97-111|)=14 → ATR 37/3.
	wantSize := 37.0 / 3.0
	if math.Abs(e.BrickSize()-wantSize) > 1e-9 {
		t.Fatalf("expected brick size %.4f after warmup, got %.4f", wantSize, e.BrickSize())
	}

	before := e.Bricks()
	next := barSeq(200)[0]
	next.TS = t0.Add(time.Hour)
	if !e.UpdatePrice(next) {
		t.Fatal("expected bricks from the post-resize move")
	}
	after := e.Bricks()
	for i := range before {
		if !reflect.DeepEqual(before[i], after[i]) {
			t.Fatalf("committed brick %d changed after resize", i)
		}
	}
	// New bricks use the resized width. The fourth bar's own true
	// range (|200-101| = 99) enters the ATR before bricks form, so
	// the active size is the ATR after that update, not 37/3.
	wantActive := (wantSize*2 + 99.0) / 3.0
	latest := after[len(after)-1]
	if math.Abs(math.Abs(latest.Close-latest.Open)-wantActive) > 1e-9 {
		t.Fatalf("post-resize brick width %.4f, want %.4f", math.Abs(latest.Close-latest.Open), wantActive)
	}
	if math.Abs(e.BrickSize()-wantActive) > 1e-9 {
		t.Fatalf("brick size %.4f after the fourth bar, want %.4f", e.BrickSize(), wantActive)
	}
}

func TestAutoBrickSize_WaitsWithoutDefault(t *testing.T) {
	e, err := New(Config{Symbol: "NIFTY", AutoBrickSize: true, ATRPeriod: 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Huge moves, but no valid size yet: nothing may form.
	feed(e, barSeq(100, 200, 50))
	if e.BrickCount() != 0 {
		t.Fatalf("bricks formed without a valid size: %d", e.BrickCount())
	}
}

func TestLastBricks(t *testing.T) {
	e := fixedEngine(t, 10)
	feed(e, barSeq(100, 152)) // 5 UP bricks

	last := e.LastBricks(3)
	if len(last) != 3 {
		t.Fatalf("expected 3 bricks, got %d", len(last))
	}
	if last[0].Seq != 2 || last[2].Seq != 4 {
		t.Fatalf("wrong window: seqs %d..%d", last[0].Seq, last[2].Seq)
	}

	if got := e.LastBricks(99); len(got) != 5 {
		t.Fatalf("oversized n should return full history, got %d", len(got))
	}
	if got := e.LastBricks(0); got != nil {
		t.Fatalf("n=0 should return nil, got %v", got)
	}
}

func TestIndicators_IdempotentAcrossCalls(t *testing.T) {
	e := fixedEngine(t, 5)
	feed(e, barSeq(100, 118, 131, 104, 97, 122, 88, 140, 139, 70, 160, 45, 180))

	m1, ok1 := e.MACD(3, 6, 3)
	m2, ok2 := e.MACD(3, 6, 3)
	if ok1 != ok2 || !reflect.DeepEqual(m1, m2) {
		t.Fatalf("MACD not idempotent: %+v vs %+v", m1, m2)
	}

	s1, _ := e.SuperTrend(3, 2)
	s2, _ := e.SuperTrend(3, 2)
	if !reflect.DeepEqual(s1, s2) {
		t.Fatalf("SuperTrend not idempotent: %+v vs %+v", s1, s2)
	}
}

func TestIndicators_InsufficientHistorySentinel(t *testing.T) {
	e := fixedEngine(t, 10)
	feed(e, barSeq(100, 112)) // a single brick

	if _, ok := e.MACD(12, 26, 9); ok {
		t.Error("MACD should report insufficient history")
	}
	if _, ok := e.SuperTrend(10, 3); ok {
		t.Error("SuperTrend should report insufficient history")
	}
	if _, ok := e.Bollinger(20, 2); ok {
		t.Error("Bollinger should report insufficient history")
	}
	if _, ok := e.Stochastic(14, 3); ok {
		t.Error("Stochastic should report insufficient history")
	}
	if _, ok := e.VolumeSurge(20, 2); ok {
		t.Error("VolumeSurge should report insufficient history")
	}
}

func TestReset(t *testing.T) {
	e := fixedEngine(t, 10)

	var brickEvents int
	e.OnNewBrick(func(model.Brick) { brickEvents++ })

	bars := barSeq(100, 132, 95)
	feed(e, bars)
	if e.BrickCount() == 0 {
		t.Fatal("expected bricks before reset")
	}

	e.Reset()
	if e.BrickCount() != 0 {
		t.Fatal("history survived reset")
	}
	count, dir := e.ConsecutiveBricks()
	if count != 0 || dir != model.None {
		t.Fatalf("direction state survived reset: (%d, %v)", count, dir)
	}

	// Same input after reset reproduces the same history, and the
	// listener registration survives.
	emitted := brickEvents
	feed(e, bars)
	if e.BrickCount() == 0 {
		t.Fatal("engine dead after reset")
	}
	if brickEvents != 2*emitted {
		t.Fatalf("listener lost across reset: %d events, expected %d", brickEvents, 2*emitted)
	}
}

func TestUpdatePrice_ReturnGatesRecomputation(t *testing.T) {
	e := fixedEngine(t, 10)

	recomputed := 0
	bars := barSeq(100, 101, 102, 115, 116, 89)
	for _, b := range bars {
		if e.UpdatePrice(b) {
			recomputed++
		}
	}
	// Only the 115 move and the 89 reversal form bricks.
	if recomputed != 2 {
		t.Fatalf("expected 2 brick-forming bars, got %d", recomputed)
	}
}

// Package renko converts a continuous price-bar stream into a
// quantized brick series and exposes technical indicators computed
// over that series.
//
// An Engine is single-writer: exactly one goroutine drives
// UpdatePrice for a given instance (whether that driver is a backtest
// loop or a live-feed callback), so no internal locking is needed.
// Separate symbol instances are fully independent and may be driven
// concurrently. Given the same bar sequence, the engine produces the
// same brick history whether bars arrive one at a time or from a
// pre-loaded batch.
package renko

import (
	"errors"
	"fmt"
	"math"
	"time"

	"renko-systemv1/internal/indicator"
	"renko-systemv1/internal/model"
	"renko-systemv1/internal/volatility"
)

// Configuration errors, fatal at construction.
var (
	ErrConfigSymbol    = errors.New("renko: config: missing symbol")
	ErrConfigBrickSize = errors.New("renko: config: exactly one of FixedBrickSize or AutoBrickSize must be set")
	ErrConfigATR       = errors.New("renko: config: auto sizing requires a positive ATRMultiplier")
	ErrConfigReversal  = errors.New("renko: config: ReversalWidths must be >= 1")
)

// Bar rejection errors, reported through the error event. The
// offending bar is dropped and engine state is unchanged.
var (
	ErrBarOutOfOrder = errors.New("renko: bar timestamp not after previous bar")
	ErrBarMalformed  = errors.New("renko: malformed bar")
)

// Default parameters applied by New when the config leaves them zero.
const (
	DefaultATRPeriod      = 14
	DefaultATRMultiplier  = 1.0
	DefaultReversalWidths = 2.0
	trendStrengthCap      = 10 // consecutive bricks at which strength saturates
)

// Config configures one engine instance.
type Config struct {
	Symbol string

	// Exactly one of FixedBrickSize (> 0) or AutoBrickSize must be
	// set. With AutoBrickSize the brick size is recomputed as
	// ATR*ATRMultiplier once the estimator has a full period;
	// DefaultBrickSize (optional) is used until then.
	FixedBrickSize   float64
	AutoBrickSize    bool
	DefaultBrickSize float64

	ATRPeriod     int     // default 14
	ATRMultiplier float64 // default 1.0

	// ReversalWidths is the adverse move, in brick widths, required
	// before the first brick in the opposite direction may form.
	// Default 2 (the traditional Renko reversal convention).
	ReversalWidths float64
}

func (c *Config) defaults() {
	if c.ATRPeriod == 0 {
		c.ATRPeriod = DefaultATRPeriod
	}
	if c.ATRMultiplier == 0 {
		c.ATRMultiplier = DefaultATRMultiplier
	}
	if c.ReversalWidths == 0 {
		c.ReversalWidths = DefaultReversalWidths
	}
}

func (c *Config) validate() error {
	if c.Symbol == "" {
		return ErrConfigSymbol
	}
	fixed := c.FixedBrickSize > 0
	if fixed == c.AutoBrickSize {
		return ErrConfigBrickSize
	}
	if c.AutoBrickSize && (c.ATRMultiplier <= 0 || c.ATRPeriod <= 0) {
		return ErrConfigATR
	}
	if c.ReversalWidths < 1 {
		return ErrConfigReversal
	}
	return nil
}

// Engine is the Renko brick constructor: the state machine that owns
// the authoritative brick history for one symbol.
type Engine struct {
	cfg Config
	atr *volatility.ATR

	bricks      []model.Brick // append-only history, Seq == index
	direction   model.Direction
	lastClose   float64 // anchor price for the next brick boundary
	seeded      bool
	brickSize   float64 // current active size; changes only between bars
	consecutive int     // bricks formed in direction without reversal
	lastBarTS   time.Time
	volumes     []float64 // raw source-bar volume history

	listeners listeners
}

// New constructs an engine. Configuration problems are fatal here and
// never reported through the error event.
func New(cfg Config) (*Engine, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg: cfg,
		atr: volatility.NewATR(cfg.ATRPeriod),
	}
	e.brickSize = cfg.FixedBrickSize
	if cfg.AutoBrickSize {
		e.brickSize = cfg.DefaultBrickSize
	}
	return e, nil
}

// Symbol returns the symbol this instance was configured for.
func (e *Engine) Symbol() string { return e.cfg.Symbol }

// UpdatePrice ingests one bar. It returns true iff at least one brick
// formed, letting callers gate indicator recomputation. Malformed
// bars (high < low, missing fields, non-monotonic timestamp) fire the
// error event, leave state untouched, and return false.
//
// UpdatePrice never blocks and never performs I/O; event listeners
// run synchronously in this call stack after state mutation for the
// corresponding brick has completed.
func (e *Engine) UpdatePrice(bar model.Bar) bool {
	if err := bar.Validate(); err != nil {
		e.listeners.fireError(fmt.Errorf("%w: %w", ErrBarMalformed, err))
		return false
	}
	if !e.lastBarTS.IsZero() && !bar.TS.After(e.lastBarTS) {
		e.listeners.fireError(fmt.Errorf("%w: %s <= %s",
			ErrBarOutOfOrder, bar.TS.Format(time.RFC3339Nano), e.lastBarTS.Format(time.RFC3339Nano)))
		return false
	}
	e.lastBarTS = bar.TS
	e.volumes = append(e.volumes, bar.Volume)

	// Volatility update runs before the constructor consumes the bar.
	// A resize applies from this bar onward, never to bricks already
	// committed.
	e.atr.Update(bar)
	if e.cfg.AutoBrickSize && e.atr.Ready() {
		if sz := e.atr.Value() * e.cfg.ATRMultiplier; sz > 0 {
			e.brickSize = sz
		}
	}

	// Snapshot the size for the whole call: one bar forms bricks of
	// one size, even across a multi-brick gap.
	s := e.brickSize

	if !e.seeded {
		// Seed the anchor from the first bar's close; no brick yet.
		e.lastClose = bar.Close
		e.seeded = true
		return false
	}
	if s <= 0 {
		// Auto sizing without a default: wait for the estimator.
		return false
	}

	return e.advance(bar, s)
}

// advance applies the transition algorithm for one bar at brick size s.
func (e *Engine) advance(bar model.Bar, s float64) bool {
	p := bar.Close

	upSteps := int(math.Floor((p - e.lastClose) / s))
	downSteps := int(math.Floor((e.lastClose - p) / s))

	switch e.direction {
	case model.Up:
		if upSteps >= 1 {
			e.emitRun(bar, s, model.Up, upSteps)
			return true
		}
		if n := reversalSteps(e.lastClose-p, s, e.cfg.ReversalWidths); n >= 1 {
			e.emitRun(bar, s, model.Down, n)
			return true
		}
	case model.Down:
		if downSteps >= 1 {
			e.emitRun(bar, s, model.Down, downSteps)
			return true
		}
		if n := reversalSteps(p-e.lastClose, s, e.cfg.ReversalWidths); n >= 1 {
			e.emitRun(bar, s, model.Up, n)
			return true
		}
	default: // no direction established: one full width either way
		if upSteps >= 1 {
			e.emitRun(bar, s, model.Up, upSteps)
			return true
		}
		if downSteps >= 1 {
			e.emitRun(bar, s, model.Down, downSteps)
			return true
		}
	}
	return false
}

// reversalSteps returns how many bricks an adverse move supports.
// The first reversal brick requires widths brick-widths of adverse
// travel; each subsequent brick one more. Zero below the threshold.
func reversalSteps(move, s, widths float64) int {
	if move < widths*s {
		return 0
	}
	return int(math.Floor((move-widths*s)/s)) + 1
}

// emitRun commits n consecutive bricks in direction dir, advancing
// the anchor one width per brick, and fires events per brick. All
// bricks formed by one bar share that bar's timestamp; the full bar
// volume is attributed to the last brick of the run (interior bricks
// represent instantaneous passage).
func (e *Engine) emitRun(bar model.Bar, s float64, dir model.Direction, n int) {
	reversal := e.direction != model.None && e.direction != dir
	prevConsecutive := e.consecutive

	step := s
	if dir == model.Down {
		step = -s
	}

	for i := 0; i < n; i++ {
		open := e.lastClose
		close := open + step

		b := model.Brick{
			Symbol:    e.cfg.Symbol,
			Seq:       len(e.bricks),
			TS:        bar.TS,
			Open:      open,
			Close:     close,
			Direction: dir,
			High:      math.Max(open, close),
			Low:       math.Min(open, close),
		}

		// First/last bricks of the run absorb the bar's true
		// excursion; interior bricks keep their open/close span.
		if i == 0 {
			if dir == model.Up {
				b.Low = math.Min(b.Low, bar.Low)
			} else {
				b.High = math.Max(b.High, bar.High)
			}
		}
		if i == n-1 {
			if dir == model.Up {
				b.High = math.Max(b.High, bar.High)
			} else {
				b.Low = math.Min(b.Low, bar.Low)
			}
			b.Volume = bar.Volume
		}

		// Commit state before any listener runs.
		e.bricks = append(e.bricks, b)
		e.lastClose = close
		if e.direction == dir {
			e.consecutive++
		} else {
			e.direction = dir
			e.consecutive = 1
		}

		e.listeners.fireBrick(b)
		if reversal && i == 0 {
			e.listeners.fireTrend(model.TrendChange{
				Symbol:            e.cfg.Symbol,
				TS:                bar.TS,
				Old:               invert(dir),
				New:               dir,
				ConsecutiveBefore: prevConsecutive,
			})
		}
	}
}

func invert(d model.Direction) model.Direction {
	switch d {
	case model.Up:
		return model.Down
	case model.Down:
		return model.Up
	default:
		return model.None
	}
}

// Bricks returns the full brick history, oldest first. The returned
// slice is a copy; history itself is append-only and never mutated.
func (e *Engine) Bricks() []model.Brick {
	out := make([]model.Brick, len(e.bricks))
	copy(out, e.bricks)
	return out
}

// LastBricks returns the last n completed bricks, oldest first
// (fewer if the history is shorter).
func (e *Engine) LastBricks(n int) []model.Brick {
	if n > len(e.bricks) {
		n = len(e.bricks)
	}
	if n <= 0 {
		return nil
	}
	out := make([]model.Brick, n)
	copy(out, e.bricks[len(e.bricks)-n:])
	return out
}

// BrickCount returns the current history length.
func (e *Engine) BrickCount() int { return len(e.bricks) }

// BrickSize returns the currently active brick size.
func (e *Engine) BrickSize() float64 { return e.brickSize }

// ATR returns the latest volatility estimate over raw source bars
// (0 until a full period has been seen).
func (e *Engine) ATR() float64 { return e.atr.Value() }

// ConsecutiveBricks returns the current same-direction run length and
// its direction.
func (e *Engine) ConsecutiveBricks() (int, model.Direction) {
	return e.consecutive, e.direction
}

// TrendStrength is a bounded heuristic in [0,1]: the consecutive-brick
// run length normalized against a fixed cap. It is not a statistical
// measure.
func (e *Engine) TrendStrength() float64 {
	strength := float64(e.consecutive) / trendStrengthCap
	if strength > 1 {
		return 1
	}
	return strength
}

// closes returns the close series over the full brick history.
func (e *Engine) closes() []float64 {
	out := make([]float64, len(e.bricks))
	for i, b := range e.bricks {
		out[i] = b.Close
	}
	return out
}

// MACD computes MACD over brick closes. ok=false on insufficient
// history.
func (e *Engine) MACD(fast, slow, signal int) (indicator.MACDResult, bool) {
	return indicator.MACD(e.closes(), fast, slow, signal)
}

// SuperTrend computes a SuperTrend overlay over the brick history.
func (e *Engine) SuperTrend(period int, multiplier float64) (indicator.SuperTrendResult, bool) {
	return indicator.SuperTrend(e.bricks, period, multiplier)
}

// Bollinger computes Bollinger Bands over the last period brick closes.
func (e *Engine) Bollinger(period int, k float64) (indicator.BollingerResult, bool) {
	return indicator.Bollinger(e.closes(), period, k)
}

// Stochastic computes the stochastic oscillator over brick history.
func (e *Engine) Stochastic(kPeriod, dPeriod int) (indicator.StochasticResult, bool) {
	return indicator.Stochastic(e.bricks, kPeriod, dPeriod)
}

// VolumeSurge compares the latest raw bar volume against the rolling
// average of the preceding window bars.
func (e *Engine) VolumeSurge(window int, threshold float64) (indicator.VolumeSurgeResult, bool) {
	return indicator.VolumeSurge(e.volumes, window, threshold)
}

// Reset clears all state back to the uninitialized machine: empty
// history, no direction, cold volatility estimator. Listener
// registrations survive a reset.
func (e *Engine) Reset() {
	e.bricks = nil
	e.direction = model.None
	e.lastClose = 0
	e.seeded = false
	e.consecutive = 0
	e.lastBarTS = time.Time{}
	e.volumes = nil
	e.atr.Reset()
	e.brickSize = e.cfg.FixedBrickSize
	if e.cfg.AutoBrickSize {
		e.brickSize = e.cfg.DefaultBrickSize
	}
}

package renko

import (
	"log/slog"

	"renko-systemv1/internal/model"
)

// listeners is the per-instance event dispatch: synchronous,
// single-threaded fan-out in registration order, in the same call
// stack as UpdatePrice. A panicking handler is recovered and logged
// so it can neither starve the remaining handlers nor corrupt engine
// state (which is already committed before any event fires).
type listeners struct {
	onBrick []func(model.Brick)
	onTrend []func(model.TrendChange)
	onError []func(error)
}

// OnNewBrick registers a handler invoked once per emitted brick.
func (e *Engine) OnNewBrick(fn func(model.Brick)) {
	e.listeners.onBrick = append(e.listeners.onBrick, fn)
}

// OnTrendChange registers a handler invoked once per direction
// reversal, after the OnNewBrick handlers for the reversal brick.
func (e *Engine) OnTrendChange(fn func(model.TrendChange)) {
	e.listeners.onTrend = append(e.listeners.onTrend, fn)
}

// OnError registers a handler for rejected bars.
func (e *Engine) OnError(fn func(error)) {
	e.listeners.onError = append(e.listeners.onError, fn)
}

func (l *listeners) fireBrick(b model.Brick) {
	for _, fn := range l.onBrick {
		call(func() { fn(b) }, "newBrick")
	}
}

func (l *listeners) fireTrend(tc model.TrendChange) {
	for _, fn := range l.onTrend {
		call(func() { fn(tc) }, "trendChange")
	}
}

func (l *listeners) fireError(err error) {
	for _, fn := range l.onError {
		call(func() { fn(err) }, "error")
	}
}

// call invokes one handler, absorbing panics.
func call(fn func(), event string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event listener panicked", "event", event, "panic", r)
		}
	}()
	fn()
}

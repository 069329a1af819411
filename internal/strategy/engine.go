// Package strategy provides the strategy engine for running trading
// strategies on renko bricks.
//
// A Strategy receives completed bricks and emits trading signals
// (BUY/SELL/EXIT). The Engine manages strategy lifecycle: registration,
// brick routing, and signal collection.
package strategy

import (
	"context"

	"renko-systemv1/internal/model"
)

// Signal represents a trading signal emitted by a strategy.
type Signal struct {
	StrategyName string  `json:"strategy_name"`
	Action       Action  `json:"action"` // BUY, SELL, EXIT
	Symbol       string  `json:"symbol"`
	Qty          int64   `json:"qty"`
	Price        float64 `json:"price"` // 0 = market order
	Reason       string  `json:"reason"`
}

// Action represents a trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionExit Action = "EXIT"
)

// Strategy is the interface that all brick strategies must implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// OnBrick is called for each completed brick.
	// Return a Signal if the strategy wants to act, or nil to skip.
	OnBrick(brick model.Brick) *Signal
}

// Engine manages registered strategies and routes bricks to them.
type Engine struct {
	strategies []Strategy
	signalCh   chan Signal
}

// NewEngine creates a new strategy engine.
func NewEngine(signalBufferSize int) *Engine {
	return &Engine{
		signalCh: make(chan Signal, signalBufferSize),
	}
}

// Register adds a strategy to the engine.
func (e *Engine) Register(s Strategy) {
	e.strategies = append(e.strategies, s)
}

// Signals returns the channel of signals emitted by strategies.
func (e *Engine) Signals() <-chan Signal {
	return e.signalCh
}

// Run consumes bricks and routes them to all registered strategies.
// Blocks until ctx is cancelled or brickCh is closed.
func (e *Engine) Run(ctx context.Context, brickCh <-chan model.Brick) {
	for {
		select {
		case <-ctx.Done():
			return
		case brick, ok := <-brickCh:
			if !ok {
				return
			}
			for _, s := range e.strategies {
				if sig := s.OnBrick(brick); sig != nil {
					select {
					case e.signalCh <- *sig:
					default:
						// signal channel full, drop
					}
				}
			}
		}
	}
}

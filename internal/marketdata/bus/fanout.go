// Package bus provides the fan-out stage between the engine and its
// downstream consumers (Redis publisher, strategy runners, recorders).
package bus

import (
	"context"
	"log/slog"
	"sync"

	"renko-systemv1/internal/model"
)

// FanOut broadcasts bricks from a single input channel to N output
// channels. If an output channel is full, the brick is dropped for
// that consumer to prevent a slow consumer from blocking the engine
// pipeline.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.Brick
	bufSize int

	// OnDrop is called when a brick is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new output channel.
func (f *FanOut) Subscribe() <-chan model.Brick {
	ch := make(chan model.Brick, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed.
func (f *FanOut) Run(ctx context.Context, input <-chan model.Brick) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case brick, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, ch := range f.outputs {
				select {
				case ch <- brick:
				default:
					if f.OnDrop != nil {
						f.OnDrop(i)
					} else {
						slog.Warn("fanout output full, dropping brick",
							"subscriber", i, "symbol", brick.Symbol, "seq", brick.Seq)
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat holds (length, capacity) for one subscriber channel.
// Used for reporting channel saturation percentage.
type ChannelStat struct {
	Len int
	Cap int
}

// ChannelStats returns the current fill state of every subscriber channel.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}

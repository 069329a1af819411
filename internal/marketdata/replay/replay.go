// Package replay provides a bar replayer that reads historical data
// from SQLite and emits it at configurable speed for backtesting.
package replay

import (
	"context"
	"log/slog"
	"time"

	"renko-systemv1/internal/model"
)

// BarReader supplies historical bars for one symbol, ordered by
// ascending timestamp. *sqlite.Reader satisfies it.
type BarReader interface {
	ReadBars(symbol string, afterTS int64) ([]model.Bar, error)
}

// Replayer reads historical bars and replays them at a configurable
// speed multiplier. Bars from multiple symbols are merged into a
// single timestamp-ordered stream, matching what a live feed would
// have delivered.
type Replayer struct {
	reader BarReader
}

// New creates a Replayer backed by a bar reader.
func New(reader BarReader) *Replayer {
	return &Replayer{reader: reader}
}

// Run replays all bars for the given symbols, emitting them into outCh.
// speed controls the playback rate: 1.0 = real-time, 10.0 = 10x, 0 = as
// fast as possible. fromTS filters bars to those after this Unix
// timestamp (0 = all).
func (r *Replayer) Run(ctx context.Context, symbols []string, fromTS int64, speed float64, outCh chan<- model.Bar) error {
	var allBars []model.Bar
	for _, symbol := range symbols {
		bars, err := r.reader.ReadBars(symbol, fromTS)
		if err != nil {
			return err
		}
		allBars = append(allBars, bars...)
	}

	if len(allBars) == 0 {
		slog.Info("replay: no bars found")
		return nil
	}

	// Per-symbol reads are already ordered but interleave across symbols.
	sortBars(allBars)

	slog.Info("replay: loaded bars", "bars", len(allBars), "symbols", len(symbols), "speed", speed)

	var prevTS time.Time
	emitted := 0

	for _, b := range allBars {
		select {
		case <-ctx.Done():
			slog.Info("replay: cancelled", "emitted", emitted)
			return ctx.Err()
		default:
		}

		// Simulate time gaps between bars.
		if speed > 0 && !prevTS.IsZero() {
			gap := b.TS.Sub(prevTS)
			if gap > 0 {
				scaledGap := time.Duration(float64(gap) / speed)
				// Cap max sleep to avoid very long waits
				if scaledGap > 5*time.Second {
					scaledGap = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(scaledGap):
				}
			}
		}
		prevTS = b.TS

		outCh <- b
		emitted++
	}

	slog.Info("replay: completed", "emitted", emitted)
	return nil
}

// sortBars sorts bars by timestamp (insertion sort, stable and fine
// for replay sizes).
func sortBars(bars []model.Bar) {
	for i := 1; i < len(bars); i++ {
		for j := i; j > 0 && bars[j].TS.Before(bars[j-1].TS); j-- {
			bars[j], bars[j-1] = bars[j-1], bars[j]
		}
	}
}

// Package indicator provides technical indicator calculations over
// Renko brick history (and, for volume, raw bar history).
//
// All functions are read-only and idempotent: they never mutate the
// slices they are given and return identical results for identical
// inputs. Insufficient history is signalled by a false ok / nil
// return, never by an error; callers decide whether to wait for more
// bricks.
package indicator

// Crossover classifies a MACD line / signal line crossing.
type Crossover string

const (
	CrossNone    Crossover = "NONE"
	CrossBullish Crossover = "BULLISH_CROSSOVER"
	CrossBearish Crossover = "BEARISH_CROSSOVER"
)

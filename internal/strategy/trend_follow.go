package strategy

import (
	"fmt"
	"log/slog"

	"renko-systemv1/internal/indicator"
	"renko-systemv1/internal/model"
)

// TrendFollow implements a consecutive-brick trend strategy.
//
// Buy signal: entryBricks consecutive UP bricks while flat.
// Sell signal: entryBricks consecutive DOWN bricks while flat.
// Exit signal: first brick against the open position.
//
// Optional MACD filter requires the MACD histogram to agree with the
// entry direction, computed over the strategy's own brick closes.
//
// State is kept per symbol so one instance can serve a multi-symbol
// brick stream without tallies or positions bleeding across symbols.
type TrendFollow struct {
	name        string
	entryBricks int
	qty         int64

	symbols map[string]*symbolState

	// MACD filter (optional)
	macdEnabled  bool
	macdFast     int
	macdSlow     int
	macdSignal   int
	maxCloseHist int
}

type symbolState struct {
	consecutive int
	lastDir     model.Direction
	position    model.Direction // None = flat
	closes      []float64
}

// NewTrendFollow creates a new trend-following brick strategy.
// entryBricks is the consecutive-brick count required to enter
// (e.g. 3). qty is the number of shares per trade.
func NewTrendFollow(entryBricks int, qty int64, enableMACD bool, fast, slow, signal int) *TrendFollow {
	return &TrendFollow{
		name:         "Trend_Follow",
		entryBricks:  entryBricks,
		qty:          qty,
		symbols:      make(map[string]*symbolState),
		macdEnabled:  enableMACD,
		macdFast:     fast,
		macdSlow:     slow,
		macdSignal:   signal,
		maxCloseHist: 4 * (slow + signal),
	}
}

func (s *TrendFollow) Name() string {
	return s.name
}

func (s *TrendFollow) OnBrick(brick model.Brick) *Signal {
	st := s.symbols[brick.Symbol]
	if st == nil {
		st = &symbolState{}
		s.symbols[brick.Symbol] = st
	}

	if brick.Direction == st.lastDir {
		st.consecutive++
	} else {
		st.consecutive = 1
		st.lastDir = brick.Direction
	}

	if s.macdEnabled {
		st.closes = append(st.closes, brick.Close)
		if len(st.closes) > s.maxCloseHist {
			st.closes = st.closes[len(st.closes)-s.maxCloseHist:]
		}
	}

	// Exit on the first brick against an open position.
	if st.position != model.None && brick.Direction != st.position {
		pos := st.position
		st.position = model.None
		return &Signal{
			StrategyName: s.name,
			Action:       ActionExit,
			Symbol:       brick.Symbol,
			Qty:          s.qty,
			Reason:       fmt.Sprintf("reversal brick against %s position", pos),
		}
	}

	if st.position != model.None || st.consecutive < s.entryBricks {
		return nil
	}

	if s.macdEnabled && !s.macdAgrees(st, brick.Direction) {
		slog.Debug("entry filtered by MACD", "strategy", s.name, "symbol", brick.Symbol)
		return nil
	}

	st.position = brick.Direction
	action := ActionBuy
	if brick.Direction == model.Down {
		action = ActionSell
	}
	return &Signal{
		StrategyName: s.name,
		Action:       action,
		Symbol:       brick.Symbol,
		Qty:          s.qty,
		Price:        0, // market order
		Reason:       fmt.Sprintf("%d consecutive %s bricks", st.consecutive, brick.Direction),
	}
}

// macdAgrees reports whether the MACD histogram confirms the entry
// direction. Insufficient history counts as agreement so the filter
// never blocks early trading.
func (s *TrendFollow) macdAgrees(st *symbolState, dir model.Direction) bool {
	res, ok := indicator.MACD(st.closes, s.macdFast, s.macdSlow, s.macdSignal)
	if !ok {
		return true
	}
	return res.Direction == dir
}

// cmd/backtest replays historical bars from SQLite through renko
// engines to validate brick construction and strategies without live
// market data.
//
// Usage:
//
//	go run ./cmd/backtest --symbols=NIFTY --speed=100 --size=10
//	go run ./cmd/backtest --symbols=NIFTY,BANKNIFTY --auto --atr=14
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"renko-systemv1/internal/marketdata/replay"
	"renko-systemv1/internal/model"
	"renko-systemv1/internal/renko"
	sqlitestore "renko-systemv1/internal/store/sqlite"
	"renko-systemv1/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	symbolStr := flag.String("symbols", "", "Comma-separated symbols (default: all in DB)")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay from (0=all)")
	dbPath := flag.String("db", "data/bars.db", "Path to SQLite database")
	fixedSize := flag.Float64("size", 0, "Fixed brick size (mutually exclusive with --auto)")
	auto := flag.Bool("auto", false, "ATR-driven brick sizing")
	atrPeriod := flag.Int("atr", 14, "ATR period for --auto")
	atrMult := flag.Float64("mult", 1.0, "ATR multiplier for --auto")
	defaultSize := flag.Float64("default-size", 10, "Brick size used until the ATR warms up")
	entryBricks := flag.Int("entry", 3, "Consecutive bricks required for a strategy entry")
	flag.Parse()

	if *fixedSize <= 0 && !*auto {
		log.Fatal("[backtest] one of --size or --auto is required")
	}

	// Open SQLite
	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	symbols := parseSymbols(*symbolStr)
	if len(symbols) == 0 {
		symbols, err = reader.Symbols()
		if err != nil || len(symbols) == 0 {
			log.Fatalf("[backtest] no symbols in %s (err=%v)", *dbPath, err)
		}
	}
	log.Printf("[backtest] replaying %v from %s", symbols, *dbPath)

	// Per-symbol engines and a shared trend-follow strategy
	trendFollow := strategy.NewTrendFollow(*entryBricks, 1, false, 0, 0, 0)
	signals := 0

	engines := make(map[string]*renko.Engine, len(symbols))
	reversals := 0
	for _, symbol := range symbols {
		eng, err := renko.New(renko.Config{
			Symbol:           symbol,
			FixedBrickSize:   *fixedSize,
			AutoBrickSize:    *auto,
			DefaultBrickSize: *defaultSize,
			ATRPeriod:        *atrPeriod,
			ATRMultiplier:    *atrMult,
		})
		if err != nil {
			log.Fatalf("[backtest] engine init failed for %s: %v", symbol, err)
		}
		eng.OnNewBrick(func(b model.Brick) {
			if sig := trendFollow.OnBrick(b); sig != nil {
				signals++
				fmt.Printf("  [%s] %s %s seq=%d close=%.2f (%s)\n",
					b.TS.Format("15:04:05"), sig.Action, sig.Symbol, b.Seq, b.Close, sig.Reason)
			}
		})
		eng.OnTrendChange(func(model.TrendChange) { reversals++ })
		engines[symbol] = eng
	}

	// Setup context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Replay in background
	replayer := replay.New(reader)
	barCh := make(chan model.Bar, 10000)
	go func() {
		if err := replayer.Run(ctx, symbols, *fromTS, *speed, barCh); err != nil {
			log.Printf("[backtest] replay error: %v", err)
		}
		close(barCh)
	}()

	// Drive bars through the engines
	processed := 0
	for bar := range barCh {
		if eng, ok := engines[bar.Symbol]; ok {
			eng.UpdatePrice(bar)
			processed++
		}
	}

	// Print summary
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Bars processed:    %-16d ║\n", processed)
	totalBricks := 0
	for _, eng := range engines {
		totalBricks += eng.BrickCount()
	}
	fmt.Printf("║  Bricks emitted:    %-16d ║\n", totalBricks)
	fmt.Printf("║  Reversals:         %-16d ║\n", reversals)
	fmt.Printf("║  Strategy signals:  %-16d ║\n", signals)
	fmt.Println("╚══════════════════════════════════════╝")

	for _, symbol := range symbols {
		eng := engines[symbol]
		count, dir := eng.ConsecutiveBricks()
		fmt.Printf("  %s: bricks=%d size=%.4f trend=%s x%d strength=%.2f\n",
			symbol, eng.BrickCount(), eng.BrickSize(), dir, count, eng.TrendStrength())
		if macd, ok := eng.MACD(12, 26, 9); ok {
			fmt.Printf("    MACD=%.4f signal=%.4f hist=%.4f crossover=%s\n",
				macd.MACD, macd.Signal, macd.Histogram, macd.Crossover)
		}
		if st, ok := eng.SuperTrend(10, 3.0); ok {
			fmt.Printf("    SuperTrend=%.4f dir=%s\n", st.Value, st.Direction)
		}
	}
}

func parseSymbols(s string) []string {
	var symbols []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			symbols = append(symbols, p)
		}
	}
	return symbols
}

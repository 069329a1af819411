// Command renkod runs the live renko pipeline: bars arrive over
// WebSocket, pass through a lock-free ring buffer into per-symbol
// renko engines, and completed bricks fan out to Redis, SQLite and
// the strategy engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pquerna/otp/totp"

	"renko-systemv1/config"
	"renko-systemv1/internal/logger"
	"renko-systemv1/internal/marketdata/bus"
	"renko-systemv1/internal/marketdata/feed"
	"renko-systemv1/internal/metrics"
	"renko-systemv1/internal/model"
	"renko-systemv1/internal/renko"
	"renko-systemv1/internal/ringbuf"
	"renko-systemv1/internal/session"
	redisstore "renko-systemv1/internal/store/redis"
	sqlitestore "renko-systemv1/internal/store/sqlite"
	"renko-systemv1/internal/strategy"
)

func main() {
	cfg := config.Load()
	log := logger.Init("renkod", logger.ParseLevel(cfg.LogLevel))

	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Error("no symbols configured")
		os.Exit(1)
	}
	log.Info("starting", "symbols", symbols, "auto_brick", cfg.AutoBrickSize)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetSymbols(symbols)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite bar recorder (off hot path) ----
	os.MkdirAll("data", 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Error("sqlite init failed", "err", err)
		os.Exit(1)
	}
	defer sqlWriter.Close()
	health.SetSQLiteOK(true)

	sqliteBarCh := make(chan model.Bar, 5000)
	go sqlWriter.RunWithHook(ctx, sqliteBarCh, func(d time.Duration) {
		prom.SQLiteCommitDur.Observe(d.Seconds())
	})

	// ---- Redis brick publisher ----
	publisher, err := redisstore.New(redisstore.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Warn("redis init failed, continuing without redis", "err", err)
		health.SetRedisConnected(false)
		publisher = nil
	} else {
		health.SetRedisConnected(true)
		publisher.OnPublish = func(d time.Duration) {
			prom.RedisPublishDur.Observe(d.Seconds())
		}
		defer publisher.Close()
	}

	if publisher != nil {
		health.StartLivenessChecker(ctx, publisher.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Brick fan-out (Redis + strategy) ----
	brickCh := make(chan model.Brick, 5000)
	trendCh := make(chan model.TrendChange, 1000)

	fanout := bus.New(5000)
	fanout.OnDrop = func(subscriberIdx int) {
		prom.FanoutDropsTotal.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
	}
	var redisBrickCh <-chan model.Brick
	if publisher != nil {
		redisBrickCh = fanout.Subscribe()
	}
	strategyBrickCh := fanout.Subscribe()
	go fanout.Run(ctx, brickCh)

	if publisher != nil {
		go publisher.Run(ctx, redisBrickCh)
		go publisher.RunTrendChanges(ctx, trendCh)
	}

	// ---- Strategy engine ----
	stratEngine := strategy.NewEngine(256)
	stratEngine.Register(strategy.NewTrendFollow(3, 1, true, 12, 26, 9))
	go stratEngine.Run(ctx, strategyBrickCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-stratEngine.Signals():
				log.Info("strategy signal",
					"strategy", sig.StrategyName, "action", string(sig.Action),
					"symbol", sig.Symbol, "reason", sig.Reason)
			}
		}
	}()

	// ---- Per-symbol renko engines ----
	engines := make(map[string]*renko.Engine, len(symbols))
	for _, symbol := range symbols {
		eng, err := renko.New(renko.Config{
			Symbol:           symbol,
			FixedBrickSize:   cfg.FixedBrickSize,
			AutoBrickSize:    cfg.AutoBrickSize,
			DefaultBrickSize: cfg.DefaultBrickSize,
			ATRPeriod:        cfg.ATRPeriod,
			ATRMultiplier:    cfg.ATRMultiplier,
			ReversalWidths:   cfg.ReversalWidths,
		})
		if err != nil {
			log.Error("engine init failed", "symbol", symbol, "err", err)
			os.Exit(1)
		}

		sym := symbol
		eng.OnNewBrick(func(b model.Brick) {
			prom.BricksTotal.WithLabelValues(sym, b.Direction.String()).Inc()
			select {
			case brickCh <- b:
			default:
				prom.FanoutDropsTotal.WithLabelValues("input").Inc()
			}
		})
		eng.OnTrendChange(func(tc model.TrendChange) {
			prom.ReversalsTotal.WithLabelValues(sym).Inc()
			select {
			case trendCh <- tc:
			default:
			}
		})
		eng.OnError(func(err error) {
			prom.MalformedBars.WithLabelValues(sym).Inc()
			log.Warn("bar rejected", "symbol", sym, "err", err)
		})
		engines[symbol] = eng
	}

	// ---- Ring buffer between feed and engines ----
	ring := ringbuf.New(16384)
	go func() {
		for {
			b, ok := ring.Pop()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Microsecond):
				}
				continue
			}

			eng, known := engines[b.Symbol]
			if !known {
				continue
			}

			prom.BarsTotal.WithLabelValues(b.Symbol).Inc()
			health.SetLastBarTime(b.TS)

			start := time.Now()
			eng.UpdatePrice(b)
			prom.UpdateDur.Observe(time.Since(start).Seconds())
			prom.BrickSize.WithLabelValues(b.Symbol).Set(eng.BrickSize())

			// Record the raw bar for replay, drop-on-full.
			select {
			case sqliteBarCh <- b:
			default:
				prom.DroppedBars.Inc()
			}
		}
	}()

	// ---- Live feed ----
	// Each connection carries a fresh TOTP-derived auth token. With
	// session gating the feed only runs during trading hours and gets
	// a new token at every session open.
	newFeed := func() (*feed.Feed, error) {
		totpCode, err := totp.GenerateCode(cfg.FeedTOTPSecret, time.Now())
		if err != nil {
			return nil, fmt.Errorf("totp generation failed: %w", err)
		}
		barFeed, err := feed.New(feed.Config{
			WSURL:             cfg.FeedWSURL,
			RESTURL:           cfg.FeedRESTURL,
			AuthToken:         fmt.Sprintf("%s:%s", cfg.FeedAPIKey, totpCode),
			Symbols:           symbols,
			ReconnectDelay:    2 * time.Second,
			MaxReconnectDelay: 30 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		barFeed.OnConnect = health.SetFeedConnected
		barFeed.OnReconnect = func() { prom.FeedReconnects.Inc() }
		barFeed.OnBackfill = func(bars int) { prom.BackfillBars.Add(float64(bars)) }
		barFeed.OnDrop = func() { prom.RingBufOverflow.Inc() }
		return barFeed, nil
	}

	if cfg.SessionGating {
		sess := session.NSE()
		go func() {
			for {
				now := time.Now()
				if !sess.IsOpen(now) {
					next := sess.NextOpen(now)
					log.Info("waiting for session open", "status", sess.Status(now))
					health.SetFeedConnected(false)
					select {
					case <-ctx.Done():
						return
					case <-time.After(next.Sub(now)):
					}
				}

				barFeed, err := newFeed()
				if err != nil {
					log.Error("feed init failed", "err", err)
					select {
					case <-ctx.Done():
						return
					case <-time.After(30 * time.Second):
					}
					continue
				}

				// Disconnect at session close, reconnect next open.
				feedCtx, feedCancel := context.WithDeadline(ctx, sess.CloseAfter(time.Now()))
				if err := barFeed.Start(feedCtx, ring.Push); err != nil {
					log.Error("feed session ended", "err", err)
				}
				feedCancel()
				health.SetFeedConnected(false)
				if ctx.Err() != nil {
					return
				}
			}
		}()
	} else {
		barFeed, err := newFeed()
		if err != nil {
			log.Error("feed init failed", "err", err)
			os.Exit(1)
		}
		go func() {
			if err := barFeed.Start(ctx, ring.Push); err != nil {
				log.Error("feed stopped", "err", err)
				health.SetFeedConnected(false)
			}
		}()
	}

	log.Info("pipeline ready",
		"feed", cfg.FeedWSURL, "metrics", cfg.MetricsAddr, "sqlite", cfg.SQLitePath)

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Info("shutdown signal received")
	cancel()

	// Give goroutines time to flush buffers.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	log.Info("shutdown complete")
}

// Package redis publishes engine output to Redis so downstream
// strategy processes and dashboards can consume bricks without being
// wired into the engine's address space.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"renko-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: a generous brick budget per symbol. Renko
	// series are far sparser than raw bars, so this covers weeks.
	brickStreamMaxLen = 50000
	latestBrickTTL    = 30 * time.Minute
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes bricks and trend changes to Redis Streams and
// keeps a "latest brick" key per symbol for cheap polling.
type Publisher struct {
	client *goredis.Client

	// OnPublish is an optional latency hook (metrics).
	OnPublish func(time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a new Publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis publisher connected", "addr", cfg.Addr)
	return &Publisher{client: client}, nil
}

// Run reads bricks from brickCh and publishes them. Blocks until ctx
// is cancelled or brickCh is closed.
func (p *Publisher) Run(ctx context.Context, brickCh <-chan model.Brick) {
	for {
		select {
		case <-ctx.Done():
			return
		case brick, ok := <-brickCh:
			if !ok {
				return
			}
			p.publishBrick(ctx, brick)
		}
	}
}

// RunTrendChanges reads trend changes and publishes them.
func (p *Publisher) RunTrendChanges(ctx context.Context, trendCh <-chan model.TrendChange) {
	for {
		select {
		case <-ctx.Done():
			return
		case tc, ok := <-trendCh:
			if !ok {
				return
			}
			p.publishTrendChange(ctx, tc)
		}
	}
}

func (p *Publisher) publishBrick(ctx context.Context, brick model.Brick) {
	start := time.Now()
	payload := string(brick.JSON())

	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: brick.StreamKey(),
		MaxLen: brickStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": payload},
	})
	pipe.Set(ctx, "latest:"+brick.StreamKey(), payload, latestBrickTTL)
	pipe.Publish(ctx, "pub:"+brick.StreamKey(), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("redis brick publish failed", "err", err, "symbol", brick.Symbol, "seq", brick.Seq)
		return
	}
	if p.OnPublish != nil {
		p.OnPublish(time.Since(start))
	}
}

func (p *Publisher) publishTrendChange(ctx context.Context, tc model.TrendChange) {
	start := time.Now()
	payload := string(tc.JSON())

	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: tc.StreamKey(),
		MaxLen: brickStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": payload},
	})
	pipe.Publish(ctx, "pub:"+tc.StreamKey(), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("redis trend publish failed", "err", err, "symbol", tc.Symbol)
		return
	}
	if p.OnPublish != nil {
		p.OnPublish(time.Since(start))
	}
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

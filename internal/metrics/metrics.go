// Package metrics exposes Prometheus instrumentation and the
// /metrics + /healthz HTTP endpoints for the brick pipeline. The
// engine core stays metric-free; binaries wire these collectors in
// through event listeners and component hooks.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the Renko pipeline.
type Metrics struct {
	BarsTotal      *prometheus.CounterVec // labels: symbol
	MalformedBars  *prometheus.CounterVec // labels: symbol
	BricksTotal    *prometheus.CounterVec // labels: symbol, direction
	ReversalsTotal *prometheus.CounterVec // labels: symbol
	BrickSize      *prometheus.GaugeVec   // labels: symbol
	UpdateDur      prometheus.Histogram   // UpdatePrice latency

	// Feed metrics
	FeedReconnects prometheus.Counter
	BackfillBars   prometheus.Counter
	DroppedBars    prometheus.Counter

	// Pipeline backpressure
	RingBufOverflow  prometheus.Counter
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber

	// Downstream publishing
	RedisPublishDur prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		BarsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renkod_bars_total",
			Help: "Total bars ingested per symbol",
		}, []string{"symbol"}),
		MalformedBars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renkod_malformed_bars_total",
			Help: "Bars rejected by the engine (bad range or ordering)",
		}, []string{"symbol"}),
		BricksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renkod_bricks_total",
			Help: "Total bricks emitted per symbol and direction",
		}, []string{"symbol", "direction"}),
		ReversalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renkod_reversals_total",
			Help: "Trend reversals per symbol",
		}, []string{"symbol"}),
		BrickSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "renkod_brick_size",
			Help: "Currently active brick size per symbol",
		}, []string{"symbol"}),
		UpdateDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "renkod_update_duration_seconds",
			Help:    "Engine UpdatePrice latency per bar",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),

		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "renkod_feed_reconnects_total",
			Help: "WebSocket feed reconnection attempts",
		}),
		BackfillBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "renkod_backfill_bars_total",
			Help: "Bars recovered over REST after a feed gap",
		}),
		DroppedBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "renkod_dropped_bars_total",
			Help: "Bars dropped before reaching the engine (channel full)",
		}),

		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "renkod_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (dropped bars)",
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renkod_fanout_drops_total",
			Help: "Bricks dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),

		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "renkod_redis_publish_duration_seconds",
			Help:    "Redis brick publish latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "renkod_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.BarsTotal,
		m.MalformedBars,
		m.BricksTotal,
		m.ReversalsTotal,
		m.BrickSize,
		m.UpdateDur,
		m.FeedReconnects,
		m.BackfillBars,
		m.DroppedBars,
		m.RingBufOverflow,
		m.FanoutDropsTotal,
		m.RedisPublishDur,
		m.SQLiteCommitDur,
	)

	return m
}

// HealthStatus represents the pipeline health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastBarTime    time.Time `json:"last_bar_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	Symbols        []string  `json:"symbols"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastBarTime(t time.Time) {
	h.mu.Lock()
	h.LastBarTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSymbols(symbols []string) {
	h.mu.Lock()
	h.Symbols = symbols
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial probe and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.FeedConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	barAge := ""
	if !h.LastBarTime.IsZero() {
		barAge = time.Since(h.LastBarTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		FeedConnected   bool     `json:"feed_connected"`
		LastBarTime     string   `json:"last_bar_time"`
		BarAge          string   `json:"bar_age"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		Symbols         []string `json:"symbols"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastBarTime:     h.LastBarTime.Format(time.RFC3339),
		BarAge:          barAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Symbols:         h.Symbols,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

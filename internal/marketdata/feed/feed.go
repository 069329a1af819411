// Package feed provides the live bar source: a WebSocket client with
// exponential-backoff reconnect and REST backfill of any interval
// missed while disconnected. Bars are delivered to the sink in
// non-decreasing timestamp order per symbol even across a reconnect:
// the backfill runs before push delivery resumes, and pushed bars at
// or behind the per-symbol watermark are discarded.
//
// The wire format is plain JSON matching model.Bar:
//
//	{"symbol":"NIFTY","ts":"2025-06-02T09:15:00Z","open":101.5,...}
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"renko-systemv1/internal/model"

	"github.com/gorilla/websocket"
)

// ErrRetriesExhausted is returned when the bounded reconnect ceiling
// is hit without a successful connection.
var ErrRetriesExhausted = errors.New("feed: reconnect attempts exhausted")

// Config holds configuration for the bar feed.
type Config struct {
	// WSURL is the bar stream endpoint, e.g. "wss://host/bars/stream".
	WSURL string

	// RESTURL is the historical bars endpoint used for gap backfill,
	// e.g. "https://host/bars". Empty disables backfill.
	RESTURL string

	// AuthToken is sent as a Bearer token on both transports.
	AuthToken string

	// Symbols to subscribe after connecting.
	Symbols []string

	// ReconnectDelay is the initial backoff delay. Defaults to 2s.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// MaxRetries bounds consecutive failed connection attempts.
	// 0 means retry forever.
	MaxRetries int

	// HTTPTimeout bounds each backfill request. Defaults to 10s.
	HTTPTimeout time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 10 * time.Second
	}
}

// Sink receives bars from the feed. It must not block; returning
// false signals the bar was not accepted (buffer full).
type Sink func(model.Bar) bool

// Feed streams bars from a WebSocket server into a Sink.
type Feed struct {
	cfg        Config
	httpClient *http.Client

	// watermark tracks the last delivered timestamp per symbol, used
	// for ordering across reconnects and backfill dedupe.
	watermark map[string]time.Time

	// Optional hooks, wired to metrics by the binary.
	OnConnect   func(connected bool)
	OnReconnect func()
	OnBackfill  func(bars int)
	OnDrop      func()
}

// New creates a new Feed. Returns an error on unparseable URLs.
func New(cfg Config) (*Feed, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.WSURL); err != nil {
		return nil, fmt.Errorf("feed: ws url: %w", err)
	}
	if cfg.RESTURL != "" {
		if _, err := url.Parse(cfg.RESTURL); err != nil {
			return nil, fmt.Errorf("feed: rest url: %w", err)
		}
	}
	return &Feed{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		watermark:  make(map[string]time.Time),
	}, nil
}

// Start connects and streams bars into sink. Blocks until ctx is
// cancelled or the bounded retry ceiling is exhausted. Reconnects
// automatically on disconnect, backfilling the missed interval over
// REST before resuming push delivery.
func (f *Feed) Start(ctx context.Context, sink Sink) error {
	delay := f.cfg.ReconnectDelay
	attempts := 0
	everConnected := false

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := f.runOnce(ctx, sink, everConnected)
		if err == nil {
			// Context cancelled cleanly.
			return nil
		}
		if errors.Is(err, errConnected) {
			// The connection was established and later broke: the
			// backoff and retry budget start over.
			everConnected = true
			attempts = 0
			delay = f.cfg.ReconnectDelay
		} else {
			attempts++
			if f.cfg.MaxRetries > 0 && attempts >= f.cfg.MaxRetries {
				return fmt.Errorf("%w: last error: %v", ErrRetriesExhausted, err)
			}
		}

		slog.Warn("feed disconnected, reconnecting", "err", err, "delay", delay.String())
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// errConnected tags a disconnect that happened after a successful
// connection, so the retry budget resets.
var errConnected = errors.New("feed: connection lost")

// runOnce makes a single connection attempt and reads until
// disconnect or ctx cancel. backfillFirst replays the missed interval
// over REST before any pushed bar is delivered.
func (f *Feed) runOnce(ctx context.Context, sink Sink, backfillFirst bool) error {
	header := http.Header{}
	if f.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+f.cfg.AuthToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.WSURL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	slog.Info("feed connected", "url", f.cfg.WSURL, "symbols", f.cfg.Symbols)
	if f.OnConnect != nil {
		f.OnConnect(true)
		defer f.OnConnect(false)
	}

	if err := f.subscribe(conn); err != nil {
		return fmt.Errorf("%w: subscribe: %v", errConnected, err)
	}

	// Re-derive the missed interval before resuming push delivery so
	// the engine never sees time run backwards.
	if backfillFirst && f.cfg.RESTURL != "" {
		if err := f.backfill(ctx, sink); err != nil {
			slog.Error("feed backfill failed", "err", err)
		}
	}

	// Async context watcher that closes the connection when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("%w: %v", errConnected, err)
		}

		var bar model.Bar
		if err := json.Unmarshal(raw, &bar); err != nil {
			slog.Warn("feed parse error", "err", err, "raw", string(raw))
			continue
		}
		f.deliver(bar, sink)
	}
}

// subscribe sends the symbol subscription message.
func (f *Feed) subscribe(conn *websocket.Conn) error {
	msg := struct {
		Action  string   `json:"action"`
		Symbols []string `json:"symbols"`
	}{Action: "subscribe", Symbols: f.cfg.Symbols}
	return conn.WriteJSON(msg)
}

// deliver pushes one bar into the sink, enforcing the per-symbol
// timestamp watermark.
func (f *Feed) deliver(bar model.Bar, sink Sink) {
	if err := bar.Validate(); err != nil {
		slog.Warn("feed skipping invalid bar", "err", err)
		return
	}
	if wm, ok := f.watermark[bar.Symbol]; ok && !bar.TS.After(wm) {
		// Duplicate or stale push (e.g. overlap with a backfill).
		return
	}

	if !sink(bar) {
		if f.OnDrop != nil {
			f.OnDrop()
		}
		return
	}
	f.watermark[bar.Symbol] = bar.TS
}

// backfill fetches bars missed during the disconnect for every
// subscribed symbol and delivers them through the same ordered path.
func (f *Feed) backfill(ctx context.Context, sink Sink) error {
	total := 0
	for _, symbol := range f.cfg.Symbols {
		wm := f.watermark[symbol]
		bars, err := f.fetchBars(ctx, symbol, wm)
		if err != nil {
			return fmt.Errorf("backfill %s: %w", symbol, err)
		}
		for _, b := range bars {
			f.deliver(b, sink)
		}
		total += len(bars)
	}
	slog.Info("feed backfill complete", "bars", total)
	if f.OnBackfill != nil {
		f.OnBackfill(total)
	}
	return nil
}

// fetchBars GETs RESTURL?symbol=S&from=unix and decodes a JSON array
// of bars, expected in ascending timestamp order.
func (f *Feed) fetchBars(ctx context.Context, symbol string, after time.Time) ([]model.Bar, error) {
	u, err := url.Parse(f.cfg.RESTURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("symbol", symbol)
	if !after.IsZero() {
		q.Set("from", strconv.FormatInt(after.Unix(), 10))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if f.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.AuthToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var bars []model.Bar
	if err := json.NewDecoder(resp.Body).Decode(&bars); err != nil {
		return nil, err
	}
	return bars, nil
}

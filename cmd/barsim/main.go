// cmd/barsim is a demo bar server.
// Broadcasts simulated OHLCV bars over WebSocket and serves the same
// history over REST for backfill testing, so renkod can run without a
// real market data vendor.
//
// Bar JSON shape is identical to model.Bar:
//
//	{"symbol":"NIFTY","ts":"...","open":101.2,"high":...,"volume":...}
//
// Config (env vars):
//
//	BARSIM_ADDR         listen address (default: ":9001")
//	BARSIM_SYMBOLS      comma-separated SYMBOL:STARTPRICE pairs (default: "NIFTY:25660")
//	BARSIM_INTERVAL_MS  bar interval milliseconds (default: "1000")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// barMsg mirrors model.Bar for JSON serialisation.
type barMsg struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// instrument holds per-symbol simulation state.
type instrument struct {
	Symbol string
	Price  float64 // current simulated close
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type client struct {
	ch      chan []byte
	symbols map[string]bool // empty = all
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]*client)}
}

func (h *hub) register(conn *websocket.Conn) *client {
	c := &client{ch: make(chan []byte, 256), symbols: make(map[string]bool)}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()
	return c
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if c, ok := h.clients[conn]; ok {
		close(c.ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) subscribe(conn *websocket.Conn, symbols []string) {
	h.mu.Lock()
	if c, ok := h.clients[conn]; ok {
		for _, s := range symbols {
			c.symbols[s] = true
		}
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(symbol string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if len(c.symbols) > 0 && !c.symbols[symbol] {
			continue
		}
		select {
		case c.ch <- msg:
		default: // slow client, drop bar
		}
	}
}

// ─── History store (backs the REST backfill endpoint) ────────────────────────

type history struct {
	mu   sync.RWMutex
	bars map[string][]barMsg
	max  int
}

func newHistory(max int) *history {
	return &history{bars: make(map[string][]barMsg), max: max}
}

func (s *history) add(b barMsg) {
	s.mu.Lock()
	list := append(s.bars[b.Symbol], b)
	if len(list) > s.max {
		list = list[len(list)-s.max:]
	}
	s.bars[b.Symbol] = list
	s.mu.Unlock()
}

func (s *history) after(symbol string, from int64) []barMsg {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []barMsg
	for _, b := range s.bars[symbol] {
		if b.TS.Unix() > from {
			out = append(out, b)
		}
	}
	return out
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[barsim] upgrade error: %v", err)
			return
		}
		log.Printf("[barsim] client connected: %s", r.RemoteAddr)

		c := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[barsim] client disconnected: %s", r.RemoteAddr)
		}()

		// Read pump: handles subscribe messages.
		go func() {
			for {
				var msg struct {
					Action  string   `json:"action"`
					Symbols []string `json:"symbols"`
				}
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				if msg.Action == "subscribe" {
					h.subscribe(conn, msg.Symbols)
					log.Printf("[barsim] %s subscribed to %v", r.RemoteAddr, msg.Symbols)
				}
			}
		}()

		// Write pump: sends bar JSON to this client.
		for msg := range c.ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Bar generator ────────────────────────────────────────────────────────────

// walkBar builds the next bar from a tiny random walk (±0.2% range).
func walkBar(symbol string, price float64, ts time.Time) barMsg {
	open := price
	drift := price * (rand.Float64()*0.4 - 0.2) / 100.0
	close := open + drift
	span := price * (rand.Float64() * 0.2) / 100.0

	high := open
	if close > high {
		high = close
	}
	high += span
	low := open
	if close < low {
		low = close
	}
	low -= span

	return barMsg{
		Symbol: symbol,
		TS:     ts,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: float64(rand.Intn(1000) + 100),
	}
}

func runGenerator(h *hub, store *history, instruments []instrument, intervalMs int) {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		ts := time.Now().UTC()
		for i := range instruments {
			bar := walkBar(instruments[i].Symbol, instruments[i].Price, ts)
			instruments[i].Price = bar.Close

			b, err := json.Marshal(bar)
			if err != nil {
				continue
			}
			store.add(bar)
			h.broadcast(bar.Symbol, b)
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[barsim] starting demo bar server...")

	addr := envOrDefault("BARSIM_ADDR", ":9001")
	symbolsEnv := envOrDefault("BARSIM_SYMBOLS", "NIFTY:25660")
	intervalMs := envIntOrDefault("BARSIM_INTERVAL_MS", 1000)

	instruments := parseInstruments(symbolsEnv)
	if len(instruments) == 0 {
		log.Fatalf("[barsim] no instruments configured via BARSIM_SYMBOLS")
	}
	log.Printf("[barsim] instruments: %+v", instruments)
	log.Printf("[barsim] bar interval: %dms", intervalMs)

	h := newHub()
	store := newHistory(100000)

	go runGenerator(h, store, instruments, intervalMs)

	http.HandleFunc("/bars/stream", wsHandler(h))
	http.HandleFunc("/bars", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
		w.Header().Set("Content-Type", "application/json")
		bars := store.after(symbol, from)
		if bars == nil {
			bars = []barMsg{}
		}
		json.NewEncoder(w).Encode(bars)
	})
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"barsim"}`)
	})

	log.Printf("[barsim] listening on %s (WebSocket: ws://localhost%s/bars/stream)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[barsim] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func parseInstruments(s string) []instrument {
	var result []instrument
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		seg := strings.SplitN(part, ":", 2)
		symbol := strings.TrimSpace(seg[0])
		if symbol == "" {
			continue
		}
		price := 1000.0
		if len(seg) == 2 {
			if p, err := strconv.ParseFloat(strings.TrimSpace(seg[1]), 64); err == nil && p > 0 {
				price = p
			}
		}
		result = append(result, instrument{Symbol: symbol, Price: price})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

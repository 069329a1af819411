package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"renko-systemv1/internal/model"

	"github.com/gorilla/websocket"
)

func bar(sym string, ts time.Time, close float64) model.Bar {
	return model.Bar{Symbol: sym, TS: ts, Open: close, High: close, Low: close, Close: close, Volume: 10}
}

func TestDeliver_WatermarkDedupe(t *testing.T) {
	f, err := New(Config{WSURL: "ws://localhost/bars", Symbols: []string{"NIFTY"}})
	if err != nil {
		t.Fatal(err)
	}

	var got []model.Bar
	sink := func(b model.Bar) bool {
		got = append(got, b)
		return true
	}

	t0 := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	f.deliver(bar("NIFTY", t0, 100), sink)
	f.deliver(bar("NIFTY", t0, 101), sink)                // duplicate ts, dropped
	f.deliver(bar("NIFTY", t0.Add(-time.Minute), 99), sink) // stale, dropped
	f.deliver(bar("NIFTY", t0.Add(time.Minute), 102), sink)
	f.deliver(bar("BANKNIFTY", t0, 500), sink) // independent watermark

	if len(got) != 3 {
		t.Fatalf("delivered %d bars, want 3: %+v", len(got), got)
	}
	if got[1].Close != 102 || got[2].Symbol != "BANKNIFTY" {
		t.Fatalf("unexpected delivery order: %+v", got)
	}
}

func TestDeliver_RejectedBarDoesNotAdvanceWatermark(t *testing.T) {
	f, err := New(Config{WSURL: "ws://localhost/bars"})
	if err != nil {
		t.Fatal(err)
	}

	t0 := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	drops := 0
	f.OnDrop = func() { drops++ }

	f.deliver(bar("NIFTY", t0, 100), func(model.Bar) bool { return false })
	if drops != 1 {
		t.Fatalf("drops = %d, want 1", drops)
	}

	// Same bar must be deliverable again once the buffer has room.
	accepted := false
	f.deliver(bar("NIFTY", t0, 100), func(model.Bar) bool { accepted = true; return true })
	if !accepted {
		t.Fatal("retried bar was not delivered")
	}
}

func TestFetchBars_QueryAndDecode(t *testing.T) {
	t0 := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	want := []model.Bar{bar("NIFTY", t0.Add(time.Minute), 101), bar("NIFTY", t0.Add(2*time.Minute), 102)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "NIFTY" {
			t.Errorf("symbol = %q", r.URL.Query().Get("symbol"))
		}
		if r.URL.Query().Get("from") == "" {
			t.Error("missing from param")
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("auth = %q", auth)
		}
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	f, err := New(Config{WSURL: "ws://localhost/bars", RESTURL: srv.URL, AuthToken: "tok"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := f.fetchBars(context.Background(), "NIFTY", t0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].TS.Equal(want[0].TS) || got[1].Close != 102 {
		t.Fatalf("fetchBars = %+v", got)
	}
}

func TestStart_StreamsUntilServerCloses(t *testing.T) {
	t0 := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Consume the subscribe message.
		var sub struct {
			Action  string   `json:"action"`
			Symbols []string `json:"symbols"`
		}
		if err := conn.ReadJSON(&sub); err != nil || sub.Action != "subscribe" {
			t.Errorf("subscribe: %+v err=%v", sub, err)
			return
		}

		for i := 0; i < 3; i++ {
			b := bar("NIFTY", t0.Add(time.Duration(i)*time.Minute), 100+float64(i))
			if err := conn.WriteJSON(b); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	f, err := New(Config{
		WSURL:          wsURL,
		Symbols:        []string{"NIFTY"},
		ReconnectDelay: 10 * time.Millisecond,
		MaxRetries:     1,
	})
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan model.Bar, 8)
	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// The sink only forwards; completion is signalled on a separate
	// channel so the consumer never races a cancelled context against
	// bars still sitting in the buffer.
	go f.Start(ctx, func(b model.Bar) bool {
		got <- b
		if b.Close == 102 {
			close(done)
		}
		return true
	})

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for the stream")
	}
	cancel()

	var closes []float64
	for len(closes) < 3 {
		closes = append(closes, (<-got).Close)
	}
	if closes[0] != 100 || closes[1] != 101 || closes[2] != 102 {
		t.Fatalf("closes = %v", closes)
	}
}

func TestStart_RetriesExhausted(t *testing.T) {
	f, err := New(Config{
		WSURL:          "ws://127.0.0.1:1/bars", // nothing listening
		ReconnectDelay: time.Millisecond,
		MaxRetries:     2,
	})
	if err != nil {
		t.Fatal(err)
	}

	reconnects := 0
	f.OnReconnect = func() { reconnects++ }

	err = f.Start(context.Background(), func(model.Bar) bool { return true })
	if err == nil {
		t.Fatal("expected retry exhaustion error")
	}
	if reconnects == 0 {
		t.Fatal("OnReconnect never fired")
	}
}

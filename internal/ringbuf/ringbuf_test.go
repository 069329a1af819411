package ringbuf

import (
	"sync"
	"testing"
	"time"

	"renko-systemv1/internal/model"
)

func makeBar(i int) model.Bar {
	return model.Bar{
		Symbol: "TEST",
		TS:     time.Unix(int64(1700000000+i), 0).UTC(),
		Close:  float64(100 + i),
	}
}

func TestPushPop_FIFO(t *testing.T) {
	r := New(8)
	for i := 0; i < 5; i++ {
		if !r.Push(makeBar(i)) {
			t.Fatalf("push %d failed on non-full buffer", i)
		}
	}
	if r.Len() != 5 {
		t.Fatalf("expected len 5, got %d", r.Len())
	}
	for i := 0; i < 5; i++ {
		b, ok := r.Pop()
		if !ok {
			t.Fatalf("pop %d failed on non-empty buffer", i)
		}
		if b.Close != float64(100+i) {
			t.Errorf("pop %d: expected close %d, got %.0f", i, 100+i, b.Close)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatal("pop succeeded on empty buffer")
	}
}

func TestPush_FullBufferCountsOverflow(t *testing.T) {
	r := New(4)
	for i := 0; i < 4; i++ {
		r.Push(makeBar(i))
	}
	if r.Push(makeBar(99)) {
		t.Fatal("push succeeded on full buffer")
	}
	if r.Overflow() != 1 {
		t.Fatalf("expected overflow 1, got %d", r.Overflow())
	}

	// Dropped bar must not have overwritten anything.
	b, _ := r.Pop()
	if b.Close != 100 {
		t.Fatalf("head corrupted by rejected push: %.0f", b.Close)
	}
}

func TestCapacity_RoundsToPow2(t *testing.T) {
	if got := New(100).Cap(); got != 128 {
		t.Errorf("expected cap 128 for 100, got %d", got)
	}
	if got := New(0).Cap(); got != 2 {
		t.Errorf("expected min cap 2, got %d", got)
	}
}

func TestWraparound(t *testing.T) {
	r := New(4)
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			if !r.Push(makeBar(round*3 + i)) {
				t.Fatalf("round %d: push %d failed", round, i)
			}
		}
		for i := 0; i < 3; i++ {
			b, ok := r.Pop()
			if !ok || b.Close != float64(100+round*3+i) {
				t.Fatalf("round %d: pop %d got (%.0f, %v)", round, i, b.Close, ok)
			}
		}
	}
}

func TestSPSC_Concurrent(t *testing.T) {
	const total = 10000
	r := New(64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if r.Push(makeBar(i)) {
				i++
			}
		}
	}()

	// Single consumer: values must arrive complete and in order.
	next := 0
	for next < total {
		b, ok := r.Pop()
		if !ok {
			continue
		}
		if b.Close != float64(100+next) {
			t.Fatalf("out of order: expected %d, got %.0f", 100+next, b.Close)
		}
		next++
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Fatalf("expected drained buffer, len=%d", r.Len())
	}
}

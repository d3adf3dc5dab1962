package ratelimit

import (
	"testing"
	"time"
)

func TestConnectionLimiterBurst(t *testing.T) {
	l := NewConnectionLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("call %d within burst was denied", i)
		}
	}
	if l.Allow() {
		t.Fatal("call beyond burst was allowed")
	}
}

func TestHandlerWindowSlides(t *testing.T) {
	h := NewHandlerWindow(100*time.Millisecond, 2)
	base := time.Unix(1000, 0)

	if !h.Allow(base) {
		t.Fatal("first call denied")
	}
	if !h.Allow(base.Add(10 * time.Millisecond)) {
		t.Fatal("second call within window denied")
	}
	if h.Allow(base.Add(20 * time.Millisecond)) {
		t.Fatal("third call within window should be denied")
	}
	if !h.Allow(base.Add(150 * time.Millisecond)) {
		t.Fatal("call after window expired should be allowed")
	}
}

func TestConcurrencyLimiter(t *testing.T) {
	c := NewConcurrency(2)

	if !c.TryAcquire() {
		t.Fatal("first acquire denied")
	}
	if !c.TryAcquire() {
		t.Fatal("second acquire denied")
	}
	if c.TryAcquire() {
		t.Fatal("third acquire should be denied at cap 2")
	}

	c.Release()
	if !c.TryAcquire() {
		t.Fatal("acquire after release should succeed")
	}
}

// Package ratelimit implements the three-tier limiting scheme from
// spec.md §4.6: a per-connection token bucket, a per-handler leaky
// window, and a process-wide concurrency cap. None of these have a
// direct teacher equivalent; they are built in the teacher's
// constructor-plus-methods idiom using golang.org/x/time/rate for the
// token bucket.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ConnectionLimiter is a per-connection token bucket guarding how many
// frames a single socket may submit per second.
type ConnectionLimiter struct {
	limiter *rate.Limiter
}

// NewConnectionLimiter builds a token bucket refilling at ratePerSecond
// with the given burst capacity.
func NewConnectionLimiter(ratePerSecond float64, burst int) *ConnectionLimiter {
	return &ConnectionLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Allow reports whether a frame may be admitted now.
func (c *ConnectionLimiter) Allow() bool {
	return c.limiter.Allow()
}

// HandlerWindow implements a leaky-window limiter scoped to one opcode
// handler: at most maxCalls within window, tracked with a mutex-guarded
// ring of timestamps rather than a true leaky bucket, since handler call
// volume is low enough that the simpler structure suffices.
type HandlerWindow struct {
	mu       sync.Mutex
	window   time.Duration
	maxCalls int
	calls    []time.Time
}

// NewHandlerWindow builds a limiter allowing at most maxCalls invocations
// within any sliding window of the given duration.
func NewHandlerWindow(window time.Duration, maxCalls int) *HandlerWindow {
	return &HandlerWindow{
		window:   window,
		maxCalls: maxCalls,
		calls:    make([]time.Time, 0, maxCalls),
	}
}

// Allow reports whether a call may proceed now, recording it if so.
func (h *HandlerWindow) Allow(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := now.Add(-h.window)
	kept := h.calls[:0]
	for _, t := range h.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	h.calls = kept

	if len(h.calls) >= h.maxCalls {
		return false
	}
	h.calls = append(h.calls, now)
	return true
}

// Concurrency is a process-wide cap on the number of handlers executing
// at once, implemented as a buffered-channel semaphore.
type Concurrency struct {
	slots chan struct{}
}

// NewConcurrency builds a limiter admitting at most max concurrent
// handler executions.
func NewConcurrency(max int) *Concurrency {
	return &Concurrency{slots: make(chan struct{}, max)}
}

// TryAcquire attempts to reserve a slot without blocking.
func (c *Concurrency) TryAcquire() bool {
	select {
	case c.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a previously acquired slot.
func (c *Concurrency) Release() {
	<-c.slots
}

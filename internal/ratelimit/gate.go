// Package ratelimit implements the consumer-side bandwidth ceiling.
//
// It is deliberately not a token bucket: the gate tracks cumulative bytes
// written since the run started and sleeps whenever that cumulative total
// has outpaced the configured ceiling. This yields average-rate
// enforcement with small bursts bounded by the caller's write size, and it
// lets the producer's read+hash work run unthrottled and overlapped with
// the consumer's paced writes.
package ratelimit

import (
	"sync"
	"time"
)

// Gate paces writes to a configured bytes/sec ceiling. It is safe only for
// the single consumer goroutine that owns it; it holds no shared state
// with the producer.
type Gate struct {
	limit     float64 // bytes/sec; zero means unlimited
	start     time.Time
	mu        sync.Mutex
	written   uint64
	sleepFunc func(time.Duration)
}

// New returns a Gate enforcing limit bytes/sec. A zero limit disables
// pacing entirely.
func New(limit uint64) *Gate {
	return &Gate{
		limit:     float64(limit),
		start:     time.Now(),
		sleepFunc: time.Sleep,
	}
}

// Advance records n bytes just written and sleeps long enough to keep the
// cumulative rate at or below the configured ceiling.
func (g *Gate) Advance(n int) {
	if g == nil || g.limit <= 0 {
		return
	}
	g.mu.Lock()
	g.written += uint64(n)
	expected := time.Duration(float64(g.written) / g.limit * float64(time.Second))
	elapsed := time.Since(g.start)
	var sleep time.Duration
	if expected > elapsed {
		sleep = expected - elapsed
	}
	g.mu.Unlock()

	if sleep > 0 {
		g.sleepFunc(sleep)
	}
}

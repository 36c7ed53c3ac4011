package infra

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff generates reconnect delays: exponential growth with bounded
// random jitter. Not safe for concurrent use; each connection loop owns
// its own instance.
type Backoff struct {
	base       time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64 // fraction in [0, 1]

	current  time.Duration
	attempts int

	// randFloat returns a value in [0, 1). Replaceable in tests.
	randFloat func() float64
}

// NewBackoff creates a backoff policy. jitter is the +/- fraction applied
// to each delay, e.g. 0.3 for +/-30%.
func NewBackoff(base, max time.Duration, multiplier, jitter float64) *Backoff {
	return &Backoff{
		base:       base,
		max:        max,
		multiplier: multiplier,
		jitter:     jitter,
		current:    base,
		randFloat:  rand.Float64,
	}
}

// NextDelay returns the delay to wait before the next attempt and advances
// the internal delay for the attempt after that. The returned value is
// min(current, max) scaled by a uniform factor in [1-jitter, 1+jitter];
// the cap applies on read so the growth sequence itself is unclamped,
// saturating at the largest representable Duration instead of overflowing.
func (b *Backoff) NextDelay() time.Duration {
	b.attempts++

	delay := b.current
	if delay > b.max {
		delay = b.max
	}

	u := 1 - b.jitter + 2*b.jitter*b.randFloat()
	jittered := time.Duration(float64(delay) * u)
	if jittered < 0 {
		jittered = 0
	}

	next := float64(b.current) * b.multiplier
	if next >= float64(math.MaxInt64) {
		b.current = time.Duration(math.MaxInt64)
	} else {
		b.current = time.Duration(next)
	}

	return jittered
}

// Reset returns the policy to its initial state, as after construction.
func (b *Backoff) Reset() {
	b.current = b.base
	b.attempts = 0
}

// CurrentDelay returns the unjittered delay the next call would use.
func (b *Backoff) CurrentDelay() time.Duration {
	if b.current > b.max {
		return b.max
	}
	return b.current
}

// Attempts returns the number of NextDelay calls since the last Reset.
func (b *Backoff) Attempts() int {
	return b.attempts
}

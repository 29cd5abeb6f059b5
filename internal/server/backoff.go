package server

import (
	"math"
	"time"
)

// Backoff implements capped exponential backoff for temporary accept errors
type Backoff struct {
	initialDelay time.Duration
	multiplier   float64
	maxDelay     time.Duration
	attempt      int
}

// NewBackoff creates an exponential backoff strategy
func NewBackoff(initialDelay, maxDelay time.Duration) *Backoff {
	return &Backoff{
		initialDelay: initialDelay,
		multiplier:   2.0,
		maxDelay:     maxDelay,
	}
}

// DefaultBackoff starts at 5ms and caps at 1s
func DefaultBackoff() *Backoff {
	return NewBackoff(5*time.Millisecond, time.Second)
}

// Next returns the delay before the next accept attempt
func (b *Backoff) Next() time.Duration {
	b.attempt++

	delay := time.Duration(float64(b.initialDelay) * math.Pow(b.multiplier, float64(b.attempt-1)))
	if delay > b.maxDelay || delay <= 0 {
		delay = b.maxDelay
	}
	return delay
}

// Reset resets the backoff state after a successful accept
func (b *Backoff) Reset() {
	b.attempt = 0
}

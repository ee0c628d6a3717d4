package infra

import "time"

// Backoff paces feed reconnect attempts: base * 2^attempt, capped.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff is the pacing used when the feed config does not override
// the cap.
var DefaultBackoff = Backoff{Base: 1 * time.Second, Cap: 60 * time.Second}

// Delay returns the wait before reconnect attempt n. Attempts below zero
// wait the base delay.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		return b.Base
	}
	// 1<<31 seconds already overflows any sane cap
	if attempt > 30 {
		return b.Cap
	}

	delay := b.Base * time.Duration(1<<attempt)
	if delay > b.Cap || delay < 0 {
		return b.Cap
	}
	return delay
}

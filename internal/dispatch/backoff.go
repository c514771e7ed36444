package dispatch

import (
	"math/rand"
	"time"
)

// Backoff computes exponential retry delays with uniform jitter:
// min(Base * 2^retry + uniform(0, Jitter), Max).
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

// Delay returns the delay before the given zero-based retry. The sequence is
// non-decreasing up to Max and always within [Base, Max] for Max >= Base.
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}

	delay := b.Base
	// Shift with overflow guard, doubling past Max is pointless anyway.
	for i := 0; i < retry; i++ {
		delay *= 2
		if delay <= 0 || delay >= b.Max {
			delay = b.Max
			break
		}
	}

	if b.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(b.Jitter)))
	}

	if delay > b.Max {
		delay = b.Max
	}
	return delay
}

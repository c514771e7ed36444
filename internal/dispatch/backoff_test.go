package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{
		Base: time.Second,
		Max:  30 * time.Second,
	}

	t.Run("doubles per retry without jitter", func(t *testing.T) {
		assert.Equal(t, 1*time.Second, b.Delay(0))
		assert.Equal(t, 2*time.Second, b.Delay(1))
		assert.Equal(t, 4*time.Second, b.Delay(2))
		assert.Equal(t, 8*time.Second, b.Delay(3))
	})

	t.Run("caps at max", func(t *testing.T) {
		assert.Equal(t, 30*time.Second, b.Delay(10))
		assert.Equal(t, 30*time.Second, b.Delay(60))
	})

	t.Run("negative retry treated as zero", func(t *testing.T) {
		assert.Equal(t, time.Second, b.Delay(-3))
	})

	t.Run("sequence is non-decreasing and within bounds", func(t *testing.T) {
		withJitter := Backoff{
			Base:   time.Second,
			Max:    30 * time.Second,
			Jitter: 500 * time.Millisecond,
		}

		prevMin := time.Duration(0)
		for retry := 0; retry < 20; retry++ {
			delay := withJitter.Delay(retry)
			assert.GreaterOrEqual(t, delay, withJitter.Base)
			assert.LessOrEqual(t, delay, withJitter.Max)

			// The deterministic part never decreases.
			base := b.Delay(retry)
			assert.GreaterOrEqual(t, base, prevMin)
			prevMin = base
		}
	})
}

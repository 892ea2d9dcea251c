package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHoldLive(t *testing.T) {
	now := time.Now()
	h := Hold{State: HoldActive, ExpiresAt: now.Add(time.Minute)}
	assert.True(t, h.Live(now))

	// Expiry is exclusive: a hold at its exact deadline is dead.
	h.ExpiresAt = now
	assert.False(t, h.Live(now))

	h.ExpiresAt = now.Add(-time.Second)
	assert.False(t, h.Live(now))

	h = Hold{State: HoldReleased, ExpiresAt: now.Add(time.Minute)}
	assert.False(t, h.Live(now))

	h = Hold{State: HoldConsumed, ExpiresAt: now.Add(time.Minute)}
	assert.False(t, h.Live(now))
}

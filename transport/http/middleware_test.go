package http

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestClientLimiterSweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newClientLimiter(rate.Limit(0.001), 1)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.allow("198.51.100.1"))
	assert.False(t, limiter.allow("198.51.100.1"))
	assert.True(t, limiter.allow("198.51.100.2"))
	assert.Equal(t, 2, limiter.size())

	// .2 stays active, .1 goes idle
	now = now.Add(limiterIdleTTL / 2)
	limiter.allow("198.51.100.2")
	now = now.Add(limiterIdleTTL / 2)
	limiter.allow("198.51.100.3")

	assert.Equal(t, 2, limiter.size())
	limiter.mu.Lock()
	_, idleKept := limiter.clients["198.51.100.1"]
	_, activeKept := limiter.clients["198.51.100.2"]
	limiter.mu.Unlock()
	assert.False(t, idleKept)
	assert.True(t, activeKept)
}

func TestClientLimiterIsBounded(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newClientLimiter(rate.Inf, 1)
	limiter.now = func() time.Time { return now }
	limiter.lastSweep = now

	for i := 0; i < limiterMaxClients+100; i++ {
		now = now.Add(time.Millisecond)
		limiter.allow(fmt.Sprintf("client-%d", i))
	}
	assert.Equal(t, limiterMaxClients, limiter.size())

	limiter.mu.Lock()
	_, oldestKept := limiter.clients["client-0"]
	_, newestKept := limiter.clients[fmt.Sprintf("client-%d", limiterMaxClients+99)]
	limiter.mu.Unlock()
	assert.False(t, oldestKept)
	assert.True(t, newestKept)
}

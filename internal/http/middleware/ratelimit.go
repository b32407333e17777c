package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type clientInfo struct {
	last  time.Time
	count int
}

// memoryLimiter counts requests per key in fixed windows. Keys idle for a
// full window are swept at most once per window.
type memoryLimiter struct {
	max    int
	window time.Duration

	mu        sync.Mutex
	clients   map[string]*clientInfo
	lastSweep time.Time
}

func newMemoryLimiter(maxRequests int, window time.Duration) *memoryLimiter {
	return &memoryLimiter{
		max:     maxRequests,
		window:  window,
		clients: make(map[string]*clientInfo),
	}
}

func (l *memoryLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ci, ok := l.clients[key]
	if !ok || now.Sub(ci.last) > l.window {
		l.sweepLocked(now)
		ci = &clientInfo{last: now}
		l.clients[key] = ci
	}
	ci.count++
	return ci.count <= l.max
}

func (l *memoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for k, ci := range l.clients {
		if now.Sub(ci.last) > l.window {
			delete(l.clients, k)
		}
	}
}

func (l *memoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// SimpleRateLimit blocks clients that send more than maxRequests per window.
// State is kept in process; use RedisRateLimit when instances share load.
func SimpleRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	l := newMemoryLimiter(maxRequests, window)

	return func(c *gin.Context) {
		if !l.allow(c.ClientIP(), time.Now()) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		RLRequests.WithLabelValues(c.FullPath()).Inc()

		c.Next()
	}
}

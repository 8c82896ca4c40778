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

// memoryLimiter is the per-process fixed window used when Redis is not configured
type memoryLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
	max     int
	window  time.Duration
	now     func() time.Time
}

func newMemoryLimiter(maxRequests int, window time.Duration) *memoryLimiter {
	return &memoryLimiter{
		clients: make(map[string]*clientInfo),
		max:     maxRequests,
		window:  window,
		now:     time.Now,
	}
}

// allow counts a hit for key and returns the hits so far in the current window
func (l *memoryLimiter) allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ci, ok := l.clients[key]
	if !ok || now.Sub(ci.last) > l.window {
		l.clients[key] = &clientInfo{last: now, count: 1}
		l.sweep(now)
		return true, 1
	}

	ci.count++
	return ci.count <= l.max, ci.count
}

// sweep drops windows that ended, keeping the map bounded by active clients
func (l *memoryLimiter) sweep(now time.Time) {
	if len(l.clients) < 1024 {
		return
	}
	for k, ci := range l.clients {
		if now.Sub(ci.last) > l.window {
			delete(l.clients, k)
		}
	}
}

// SimpleRateLimit blocks clients that send more than maxRequests per window
func SimpleRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	l := newMemoryLimiter(maxRequests, window)
	return func(c *gin.Context) {
		if ok, _ := l.allow(c.ClientIP()); !ok {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// RateLimit picks the Redis limiter when InitRedisRateLimiter found a server, the in-memory one otherwise.
// Each scope ("api", "connect") counts on its own.
func RateLimit(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	if RedisEnabled() {
		return RedisRateLimit(scope, maxRequests, window)
	}
	return SimpleRateLimit(maxRequests, window)
}

package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"guessing_game/internal/logger"

	"github.com/gin-gonic/gin"
)

// PlayLimiter counts plays per session (not per IP), in Redis when configured.
// The HTTP play route and the websocket stream share one limiter.
type PlayLimiter struct {
	max    int
	window time.Duration
	local  *memoryLimiter
}

func NewPlayLimiter(maxPlays int, window time.Duration) *PlayLimiter {
	return &PlayLimiter{
		max:    maxPlays,
		window: window,
		local:  newMemoryLimiter(maxPlays, window),
	}
}

// Take counts one play for sessionID and returns how many remain in the window.
// A Redis error is returned with ok=true: the limiter fails open.
func (l *PlayLimiter) Take(ctx context.Context, sessionID string) (ok bool, remaining int64, err error) {
	var count int64
	if RedisEnabled() {
		key := "play_rl:" + sessionID + ":" + strconv.FormatInt(int64(l.window.Seconds()), 10)
		val, err := incrWindow(ctx, key, l.window)
		if err != nil {
			return true, int64(l.max), err
		}
		count = val
	} else {
		_, n := l.local.allow(sessionID)
		count = int64(n)
	}
	return count <= int64(l.max), max(0, int64(l.max)-count), nil
}

// AllowPlay reports whether one more play fits for sessionID (websocket path).
func (l *PlayLimiter) AllowPlay(ctx context.Context, sessionID string) bool {
	ok, _, err := l.Take(ctx, sessionID)
	if err != nil {
		logger.Warn("play rate limiter error", "session", sessionID, "error", err)
	}
	if !ok {
		RLBlocked.WithLabelValues("play:ws").Inc()
		return false
	}
	RLRequests.WithLabelValues("play:ws").Inc()
	return true
}

// PlayRateLimit applies l to the HTTP play route.
// Requires JWT middleware to run before this.
func PlayRateLimit(l *PlayLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetString(SessionIDKey)
		if sessionID == "" {
			// No session id means JWT middleware didn't run or failed
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ok, remaining, err := l.Take(c.Request.Context(), sessionID)
		if err != nil {
			// On Redis error, fail-open but flag it
			c.Header("X-PlayRateLimit-Error", "redis-error")
			c.Next()
			return
		}

		// Set headers for client info
		c.Header("X-PlayRateLimit-Limit", strconv.Itoa(l.max))
		c.Header("X-PlayRateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !ok {
			RLBlocked.WithLabelValues("play:" + c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "play rate limit exceeded",
				"retry_after": int(l.window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues("play:" + c.FullPath()).Inc()
		c.Next()
	}
}

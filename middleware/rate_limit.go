package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. A client may burst up to
// rate requests and then refills at rate per window.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests < 1 {
		requests = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     requests,
		window:   window,
		now:      time.Now,
	}
}

// Allow reports whether the client may make another request now
func (l *RateLimiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictIdle(now)

	v, ok := l.visitors[clientIP]
	if !ok {
		every := rate.Every(l.window / time.Duration(l.rate))
		v = &visitor{limiter: rate.NewLimiter(every, l.rate)}
		l.visitors[clientIP] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// evictIdle drops clients whose bucket has been full for a whole window.
// Must be called with lock held
func (l *RateLimiter) evictIdle(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.window {
			delete(l.visitors, ip)
		}
	}
}

// RateLimit middleware limits requests per IP
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(requests, window)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !limiter.Allow(clientIP) {
			slog.Warn("rate limit exceeded",
				"client_ip", clientIP,
				"request_id", GetRequestID(c),
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}

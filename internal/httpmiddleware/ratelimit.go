package httpmiddleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles requests per client IP. With a redis client the
// per-minute window counters are shared across instances; without one it
// degrades to an in-process token bucket.
type RateLimiter struct {
	rdb  *redis.Client
	rate int

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per IP.
func NewRateLimiter(rdb *redis.Client, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		rdb:   rdb,
		rate:  perMinute,
		state: make(map[string]*bucket),
	}
}

// GinMiddleware returns a gin handler enforcing per-IP limits.
func (l *RateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		var allowed bool
		if l.rdb != nil {
			allowed = l.allowShared(c, ip)
		} else {
			allowed = l.allowLocal(ip, time.Now())
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

// allowShared counts the request in a fixed one-minute window keyed by IP.
// Redis trouble fails open: throttling is protection, not a correctness gate.
func (l *RateLimiter) allowShared(c *gin.Context, ip string) bool {
	ctx := c.Request.Context()
	key := fmt.Sprintf("musicstudio:ratelimit:%s:%d", ip, time.Now().Unix()/60)
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if n == 1 {
		// Window keys expire shortly after the window they count.
		l.rdb.Expire(ctx, key, 2*time.Minute)
	}
	return n <= int64(l.rate)
}

// allowLocal is the single-process fallback bucket.
func (l *RateLimiter) allowLocal(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.rate - 1, last: now}
		return true
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.rate {
			b.tokens = l.rate
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

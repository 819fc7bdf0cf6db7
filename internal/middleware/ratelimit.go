package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"taskboard/internal/config"
	appmetrics "taskboard/internal/metrics"

	"github.com/gin-gonic/gin"
)

// tokenBucket refills continuously at ratePerSec up to burst.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	ratePerSec float64
	burst      float64
}

func newBucket(rpm, burst int) *tokenBucket {
	if rpm <= 0 {
		rpm = 60
	}
	if burst <= 0 {
		burst = rpm
	}
	return &tokenBucket{
		tokens:     float64(burst),
		lastRefill: time.Now(),
		ratePerSec: float64(rpm) / 60.0,
		burst:      float64(burst),
	}
}

func (b *tokenBucket) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.ratePerSec
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
		b.lastRefill = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// limiter holds one bucket per caller key for a single prefix.
type limiter struct {
	prefix string
	rpm    int
	burst  int

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

func newLimiter(prefix string, rpm, burst int) *limiter {
	return &limiter{prefix: prefix, rpm: rpm, burst: burst, buckets: make(map[string]*tokenBucket)}
}

func (l *limiter) bucket(key string) *tokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(l.rpm, l.burst)
		l.buckets[key] = b
	}
	return b
}

func rateLimitKey(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// RateLimitMiddleware applies per-prefix limits from
// cfg.Security.RateLimiting.Endpoints, then the global limit. The first
// matching prefix wins.
func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	rl := cfg.Security.RateLimiting
	if !rl.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	var endpoints []*limiter
	for _, e := range rl.Endpoints {
		if e.Prefix == "" || e.RequestsPerMinute <= 0 {
			continue
		}
		endpoints = append(endpoints, newLimiter(e.Prefix, e.RequestsPerMinute, e.Burst))
	}
	var global *limiter
	if rl.RequestsPerMinute > 0 {
		global = newLimiter("global", rl.RequestsPerMinute, rl.Burst)
	}

	return func(c *gin.Context) {
		key := rateLimitKey(c)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		l := global
		for _, e := range endpoints {
			if strings.HasPrefix(path, e.prefix) {
				l = e
				break
			}
		}
		if l != nil && !l.bucket(key).allow(time.Now()) {
			appmetrics.IncRateLimitDrop(l.prefix)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too Many Requests",
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

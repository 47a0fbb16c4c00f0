package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/metrics"
	"golang.org/x/time/rate"
)

const (
	bucketIdleTTL    = 10 * time.Minute
	bucketSweepEvery = 5 * time.Minute
)

// KeyFunc names the bucket a request is charged to, as "<scope>:<id>". An
// empty key lets the request through unlimited.
type KeyFunc func(c *gin.Context) string

// ByClientIP charges every request to its client address.
func ByClientIP(c *gin.Context) string { return "ip:" + c.ClientIP() }

// ByProfile charges authenticated requests to their profile, so one player
// behind a shared address cannot starve the others. Anonymous requests fall
// back to the client address.
func ByProfile(c *gin.Context) string {
	if id := GetProfileID(c); id != "" {
		return "profile:" + id
	}
	return ByClientIP(c)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit provides token-bucket rate limiting per key.
// r = requests per second, b = burst size. r <= 0 disables limiting.
func RateLimit(r rate.Limit, b int, key KeyFunc) gin.HandlerFunc {
	if r <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	var (
		mu        sync.Mutex
		buckets   = make(map[string]*bucket)
		lastSweep = time.Now()
	)
	allow := func(k string, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(lastSweep) >= bucketSweepEvery {
			for id, bk := range buckets {
				if now.Sub(bk.lastSeen) > bucketIdleTTL {
					delete(buckets, id)
				}
			}
			lastSweep = now
		}
		bk, ok := buckets[k]
		if !ok {
			bk = &bucket{limiter: rate.NewLimiter(r, b)}
			buckets[k] = bk
		}
		bk.lastSeen = now
		return bk.limiter.AllowN(now, 1)
	}

	return func(c *gin.Context) {
		k := key(c)
		if k == "" {
			c.Next()
			return
		}
		if !allow(k, time.Now()) {
			scope, _, _ := strings.Cut(k, ":")
			metrics.RateLimited.WithLabelValues(scope).Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

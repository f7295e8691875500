package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mcqprep-backend/internal/config"
	"github.com/stemsi/mcqprep-backend/internal/response"
)

// RateLimiter limits requests per client IP. With a Redis client it counts in
// a fixed window shared by every server instance; without one it falls back
// to a local token bucket.
type RateLimiter struct {
	rdb      *redis.Client
	log      zerolog.Logger
	rate     int           // Requests per interval
	interval time.Duration // Window length

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter (e.g., 30 requests per minute).
func NewRateLimiter(rdb *redis.Client, rate int, interval time.Duration, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		rdb:      rdb,
		log:      log.With().Str("component", "rate_limiter").Logger(),
		rate:     rate,
		interval: interval,
		visitors: make(map[string]*visitor),
	}
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		remaining, ok := rl.allow(c, ip)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(c *gin.Context, ip string) (int, bool) {
	if rl.rdb != nil {
		remaining, ok, err := rl.allowShared(c, ip)
		if err == nil {
			return remaining, ok
		}
		rl.log.Warn().Err(err).Msg("Shared rate limit unavailable, using local bucket")
	}
	return rl.allowLocal(ip)
}

func (rl *RateLimiter) allowShared(c *gin.Context, ip string) (int, bool, error) {
	ctx := c.Request.Context()
	key := config.CacheKey.StartRateKey(ip)

	pipe := rl.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, rl.interval)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, err
	}

	count := int(incr.Val())
	if count > rl.rate {
		return 0, false, nil
	}
	return rl.rate - count, true, nil
}

func (rl *RateLimiter) allowLocal(ip string) (int, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.cleanupLocked(now)

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{tokens: rl.rate, lastSeen: now}
		rl.visitors[ip] = v
	}

	// Refill tokens based on elapsed time.
	elapsed := now.Sub(v.lastSeen)
	refill := int(elapsed/rl.interval) * rl.rate
	if refill > 0 {
		v.tokens += refill
		if v.tokens > rl.rate {
			v.tokens = rl.rate
		}
		v.lastSeen = now
	}

	if v.tokens <= 0 {
		return 0, false
	}
	v.tokens--
	return v.tokens, true
}

// cleanupLocked drops visitors idle for more than three windows.
func (rl *RateLimiter) cleanupLocked(now time.Time) {
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > 3*rl.interval {
			delete(rl.visitors, ip)
		}
	}
}

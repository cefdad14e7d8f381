package middleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const clientIdleTimeout = 10 * time.Minute

// RateLimiter is a per client IP token bucket. Frame endpoints see a
// steady ~30 requests per second from a single browser, so tokens refill
// fractionally rather than in whole seconds.
type RateLimiter struct {
	clients map[string]*clientBucket
	mutex   sync.RWMutex
	cleanup *time.Ticker
	stop    chan struct{}
	once    sync.Once
	logger  *zap.Logger
	rps     float64
	burst   float64
	now     func() time.Time
}

type clientBucket struct {
	tokens     float64
	lastUpdate time.Time
	mutex      sync.Mutex
}

type RateLimiterStats struct {
	ActiveClients int     `json:"active_clients"`
	RPS           float64 `json:"rps"`
	Burst         float64 `json:"burst"`
}

func NewRateLimiter(rps, burst int, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientBucket),
		rps:     float64(rps),
		burst:   float64(burst),
		logger:  logger,
		stop:    make(chan struct{}),
		now:     time.Now,
	}

	rl.cleanup = time.NewTicker(5 * time.Minute)
	go rl.cleanupExpiredClients()

	return rl
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !rl.allow(clientIP) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("path", c.Request.URL.Path))

			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 1,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(clientIP string) bool {
	now := rl.now()

	rl.mutex.Lock()
	bucket, exists := rl.clients[clientIP]
	if !exists {
		bucket = &clientBucket{
			tokens:     rl.burst,
			lastUpdate: now,
		}
		rl.clients[clientIP] = bucket
	}
	rl.mutex.Unlock()

	return bucket.take(now, rl.rps, rl.burst)
}

func (cb *clientBucket) take(now time.Time, rps, burst float64) bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if elapsed := now.Sub(cb.lastUpdate); elapsed > 0 {
		cb.tokens = math.Min(burst, cb.tokens+elapsed.Seconds()*rps)
		cb.lastUpdate = now
	}

	if cb.tokens >= 1 {
		cb.tokens--
		return true
	}

	return false
}

func (rl *RateLimiter) cleanupExpiredClients() {
	for {
		select {
		case <-rl.cleanup.C:
			rl.removeIdle(rl.now())
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) removeIdle(now time.Time) int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	removed := 0
	for ip, bucket := range rl.clients {
		bucket.mutex.Lock()
		if now.Sub(bucket.lastUpdate) > clientIdleTimeout {
			delete(rl.clients, ip)
			removed++
		}
		bucket.mutex.Unlock()
	}
	return removed
}

func (rl *RateLimiter) Stats() RateLimiterStats {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()

	return RateLimiterStats{
		ActiveClients: len(rl.clients),
		RPS:           rl.rps,
		Burst:         rl.burst,
	}
}

func (rl *RateLimiter) Shutdown() {
	rl.once.Do(func() {
		rl.cleanup.Stop()
		close(rl.stop)
	})
}

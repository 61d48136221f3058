// Package middleware holds the gin middleware stack: bearer-token
// identity resolution and per-client rate limiting, adapted from the
// teacher's internal/middleware/ratelimit.go (net/http) to gin.HandlerFunc.
package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for rate limiting.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	CleanupInterval   time.Duration
}

// DefaultRateLimiterConfig are sensible defaults for the public API.
var DefaultRateLimiterConfig = RateLimiterConfig{
	RequestsPerSecond: 10.0,
	BurstSize:         20,
	CleanupInterval:   5 * time.Minute,
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-client token-bucket limiters.
type RateLimiter struct {
	limiters    map[string]*clientLimiter
	mu          sync.RWMutex
	config      RateLimiterConfig
	stopCleanup chan struct{}
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		limiters:    make(map[string]*clientLimiter),
		config:      config,
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request from clientID should proceed.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, exists := rl.limiters[clientID]
	if !exists {
		cl = &clientLimiter{
			limiter:  rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize),
			lastSeen: time.Now(),
		}
		rl.limiters[clientID] = cl
	} else {
		cl.lastSeen = time.Now()
	}
	return cl.limiter.Allow()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.config.CleanupInterval)
	removed := 0
	for clientID, cl := range rl.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limiters, clientID)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[RATELIMIT] cleaned up %d inactive rate limiters", removed)
	}
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCleanup)
}

// GetLimiterCount reports how many per-client limiters are currently
// tracked. Used by tests to observe cleanup behavior.
func (rl *RateLimiter) GetLimiterCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

// Gin returns a gin.HandlerFunc enforcing this limiter keyed by client IP.
func (rl *RateLimiter) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.ClientIP()
		if !rl.Allow(clientID) {
			log.Printf("[RATELIMIT] rate limit exceeded for %s", clientID)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

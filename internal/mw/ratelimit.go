package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// OfficerRateLimiter stores a rate limiter per officer id, so one noisy
// client cannot exhaust another officer's budget.
type OfficerRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       *sync.RWMutex
	r        rate.Limit
	b        int
}

// NewOfficerRateLimiter creates a new OfficerRateLimiter.
func NewOfficerRateLimiter(r rate.Limit, b int) *OfficerRateLimiter {
	return &OfficerRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		mu:       &sync.RWMutex{},
		r:        r,
		b:        b,
	}
}

func (l *OfficerRateLimiter) add(cpoID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter := rate.NewLimiter(l.r, l.b)
	l.limiters[cpoID] = limiter
	return limiter
}

// Limiter returns the rate limiter for an officer.
func (l *OfficerRateLimiter) Limiter(cpoID string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[cpoID]
	l.mu.RUnlock()

	if !exists {
		return l.add(cpoID)
	}
	return limiter
}

// RateLimiter is a middleware for officer-scoped rate limiting. Requests
// without an officer id share one bucket keyed by client IP.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewOfficerRateLimiter(r, b)
	return func(c *gin.Context) {
		key := OfficerID(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.Limiter(key).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}

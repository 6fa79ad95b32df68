package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// rateLimiter keeps one token bucket per client and action.
type rateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*limiterEntry
	lastPrune time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	return &rateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*limiterEntry),
	}
}

func (l *rateLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastPrune) > limiterIdleTTL {
		for k, entry := range l.clients {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastPrune = now
	}
	entry := l.clients[key]
	if entry == nil {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (s *Server) enforceRateLimit(c *gin.Context, action string) bool {
	if s.limiter.Allow(action+"|"+c.ClientIP(), time.Now()) {
		return true
	}
	writeError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests, slow down")
	return false
}

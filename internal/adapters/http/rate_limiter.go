package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user. Polling clients hit the
// server every second, so the default burst leaves room for trickle ICE.
type RateLimiter struct {
	mu      sync.Mutex
	users   map[domain.UserID]*userLimiter
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		users:   make(map[domain.UserID]*userLimiter),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
	}
}

func (rl *RateLimiter) Allow(uid domain.UserID) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.users[uid]
	if !ok {
		u = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.users[uid] = u
	}
	u.lastSeen = time.Now()
	return u.limiter.Allow()
}

// Prune forgets users idle for longer than the idle TTL.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-rl.idleTTL)
	n := 0
	for uid, u := range rl.users {
		if u.lastSeen.Before(cutoff) {
			delete(rl.users, uid)
			n++
		}
	}
	return n
}

func RateLimitMiddleware(rl *RateLimiter, m metrics.Collector) gin.HandlerFunc {
	retryAfter := "1"
	if rl.limit > 0 && rl.limit < 1 {
		retryAfter = strconv.Itoa(int(1/float64(rl.limit)) + 1)
	}
	return func(c *gin.Context) {
		if !rl.Allow(currentUser(c)) {
			m.RateLimited(c.FullPath())
			c.Header("Retry-After", retryAfter)
			abortError(c, http.StatusTooManyRequests, errRateLimited)
			return
		}
		c.Next()
	}
}

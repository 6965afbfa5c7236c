package middlewares

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// MemberLimiter hand out one token bucket per member
type MemberLimiter struct {
	mu       sync.Mutex
	limiters map[string]*memberBucket
	rps      rate.Limit
	burst    int
	idle     time.Duration
}

type memberBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemberLimiter create per member limiter, rps <= 0 disables limiting
func NewMemberLimiter(rps float64, burst int) *MemberLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &MemberLimiter{
		limiters: make(map[string]*memberBucket),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

// Allow report whether member may act now
func (l *MemberLimiter) Allow(memberID string) bool {
	if l == nil || l.rps <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.limiters[memberID]
	if !ok {
		l.evict(now)
		b = &memberBucket{limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: now}
		l.limiters[memberID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// evict drop buckets idle longer than l.idle, caller holds l.mu
func (l *MemberLimiter) evict(now time.Time) {
	for id, b := range l.limiters {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.limiters, id)
		}
	}
}

// RateLimit reject with 429 when the authenticated member exceeds its limit
func RateLimit(l *MemberLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(MemberID(c)) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
			})
		}
		return c.Next()
	}
}

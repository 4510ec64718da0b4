package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/radiocms/utils"
)

const limiterIdle = 5 * time.Minute

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// limiterSet holds one token bucket per caller for a single route group.
type limiterSet struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rateLimiter
}

// RateLimit applies a token bucket of perMinute requests per caller. Callers
// are keyed by user id once authenticated, by client IP otherwise. Each call
// returns an independent set of buckets.
func RateLimit(perMinute int) gin.HandlerFunc {
	perMinute = maxInt(perMinute, 1)
	set := &limiterSet{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    maxInt(perMinute/2, 1),
		limiters: map[string]*rateLimiter{},
	}

	return func(ctx *gin.Context) {
		if !set.get(callerKey(ctx)).Allow() {
			utils.Error(ctx, 429, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func callerKey(ctx *gin.Context) string {
	if v, ok := ctx.Get(ContextUserIDKey); ok {
		if id, ok := v.(uint); ok && id != 0 {
			return "u:" + strconv.FormatUint(uint64(id), 10)
		}
	}
	return "ip:" + ctx.ClientIP()
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, l := range s.limiters {
		if now.After(l.expires) {
			delete(s.limiters, k)
		}
	}

	if l, ok := s.limiters[key]; ok {
		l.expires = now.Add(limiterIdle)
		return l.limiter
	}
	l := &rateLimiter{limiter: rate.NewLimiter(s.limit, s.burst), expires: now.Add(limiterIdle)}
	s.limiters[key] = l
	return l.limiter
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

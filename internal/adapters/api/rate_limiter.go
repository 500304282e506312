package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterRegistry hands out one token bucket per player token.
// The remote API enforces its limit per agent, so buckets must not be shared.
type limiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLimiterRegistry(limit rate.Limit, burst int) *limiterRegistry {
	return &limiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (r *limiterRegistry) get(token string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[token]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[token] = l
	}
	return l
}

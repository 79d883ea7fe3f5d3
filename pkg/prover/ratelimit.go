package prover

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// callerQuota meters the fallback strategy per caller identity with a token
// bucket sized to the configured quota per rolling window. A nil quota means
// the fallback is unmetered.
type callerQuota struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newCallerQuota(quota int, window time.Duration) *callerQuota {
	if quota <= 0 || window <= 0 {
		return nil
	}
	return &callerQuota{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(window / time.Duration(quota)),
		burst:    quota,
	}
}

// reserve consumes one fallback slot for the caller, or fails fast with a
// RateLimitError carrying the retry-after hint.
func (q *callerQuota) reserve(caller string) error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	lim, ok := q.limiters[caller]
	if !ok {
		lim = rate.NewLimiter(q.limit, q.burst)
		q.limiters[caller] = lim
	}
	q.mu.Unlock()

	res := lim.Reserve()
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return &RateLimitError{Caller: caller, RetryAfter: delay}
	}
	return nil
}

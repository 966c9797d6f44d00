package bot

import (
	"sync"

	"golang.org/x/time/rate"
)

// userLimiter keeps one token bucket per Telegram user.
type userLimiter struct {
	limiters sync.Map // map[int64]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newUserLimiter(rps float64, burst int) *userLimiter {
	if burst <= 0 {
		burst = 5
	}
	return &userLimiter{rps: rate.Limit(rps), burst: burst}
}

// Allow reports whether the user may be served now. A non-positive rate disables limiting.
func (l *userLimiter) Allow(userID int64) bool {
	if l == nil || l.rps <= 0 {
		return true
	}
	return l.getLimiter(userID).Allow()
}

func (l *userLimiter) getLimiter(userID int64) *rate.Limiter {
	if v, ok := l.limiters.Load(userID); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	lim := rate.NewLimiter(l.rps, l.burst)
	actual, loaded := l.limiters.LoadOrStore(userID, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}

func (l *userLimiter) Forget(userID int64) {
	l.limiters.Delete(userID)
}

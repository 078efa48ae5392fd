package server

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Decentr-net/agora/internal/api"
)

const (
	limiterIdleTTL  = 10 * time.Minute
	limiterMaxUsers = 10000
)

// limiter limits mutations rate per user.
type limiter struct {
	r rate.Limit
	b int

	mu    sync.Mutex
	users map[string]*userLimiter
}

type userLimiter struct {
	l        *rate.Limiter
	lastSeen time.Time
}

func newLimiter(r rate.Limit, b int) *limiter {
	if b <= 0 {
		b = 1
	}

	return &limiter{
		r:     r,
		b:     b,
		users: make(map[string]*userLimiter),
	}
}

func (l *limiter) allow(userID string, now time.Time) bool {
	// zero rate disables limiting
	if l.r == 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.users) >= limiterMaxUsers {
		l.prune(now)
	}

	u, ok := l.users[userID]
	if !ok {
		u = &userLimiter{l: rate.NewLimiter(l.r, l.b)}
		l.users[userID] = u
	}
	u.lastSeen = now

	return u.l.AllowN(now, 1)
}

func (l *limiter) prune(now time.Time) {
	for k, v := range l.users {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(l.users, k)
		}
	}
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := getUser(r.Context()); u != nil && !l.allow(u.ID, time.Now()) {
			w.Header().Set("Retry-After", "1")
			api.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

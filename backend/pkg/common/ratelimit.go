package common

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/openaudit/budgetledger/backend/pkg/common/api"
)

// RateLimiter throttles a group of endpoints per client address. Used to
// keep the authentication and registration endpoints from being hammered.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
	perSec  rate.Limit
	burst   int
}

// NewRateLimiter allows roughly perSec requests per second with the given
// burst, tracked separately per client IP.
func NewRateLimiter(perSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: map[string]*rate.Limiter{},
		perSec:  rate.Limit(perSec),
		burst:   burst,
	}
}

func (rl *RateLimiter) limiterFor(addr string) *rate.Limiter {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.clients[host]
	if !ok {
		l = rate.NewLimiter(rl.perSec, rl.burst)
		rl.clients[host] = l
	}
	return l
}

// Wrap guards a handler with the limiter.
func (rl *RateLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiterFor(r.RemoteAddr).Allow() {
			api.WriteError(w, http.StatusTooManyRequests, "rate_limited",
				"too many attempts, please try again later", TraceIDFrom(r.Context()))
			return
		}
		next(w, r)
	}
}

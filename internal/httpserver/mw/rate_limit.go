package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/aimarket/internal/utils"
)

// RateLimitConfig describes a per-IP token bucket: Burst tokens, refilled at
// Refill tokens every Per.
type RateLimitConfig struct {
	Burst         int
	Refill        int
	Per           time.Duration
	MaxEntries    int           // sweep early once this many clients are tracked
	SweepInterval time.Duration // how often idle clients are forgotten
	IdleTTL       time.Duration // idle time after which a client is forgotten
	TrustProxy    bool          // resolve IP from proxy headers when true
	// OnLimited is called for every refused request (metrics).
	OnLimited func()
	// Now overrides the clock (tests).
	Now func() time.Time
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	c.Burst = max(c.Burst, 1)
	c.Refill = max(c.Refill, 1)
	if c.Per <= 0 {
		c.Per = time.Minute
	}
	if c.IdleTTL <= 0 {
		// an idle bucket is full again after this long
		c.IdleTTL = c.Per * time.Duration(c.Burst) / time.Duration(c.Refill)
	}
	return c
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipLimiter struct {
	cfg   RateLimitConfig
	every rate.Limit

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

func newIPLimiter(cfg RateLimitConfig) *ipLimiter {
	cfg = cfg.withDefaults()
	return &ipLimiter{
		cfg:       cfg,
		every:     rate.Every(cfg.Per / time.Duration(cfg.Refill)),
		clients:   make(map[string]*client, 1024),
		lastSweep: cfg.Now(),
	}
}

func (l *ipLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval ||
		(l.cfg.MaxEntries > 0 && len(l.clients) >= l.cfg.MaxEntries) {
		l.sweepLocked(now)
	}

	c := l.clients[key]
	if c == nil {
		c = &client{limiter: rate.NewLimiter(l.every, l.cfg.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (l *ipLimiter) sweepLocked(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > l.cfg.IdleTTL {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

// take consumes one token for key. When none is left it returns the whole
// seconds until one is.
func (l *ipLimiter) take(key string, now time.Time) (ok bool, remaining, retryAfter int) {
	lim := l.get(key, now)

	res := lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, 0, max(int(math.Ceil(delay.Seconds())), 1)
	}
	return true, int(lim.TokensAt(now)), 0
}

// RateLimit refuses requests with 429 once the client's bucket is empty.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newIPLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, retry := l.take(utils.ClientIP(r, l.cfg.TrustProxy), l.cfg.Now())

			w.Header().Set("X-RateLimit-Limit", limit)
			if !ok {
				if l.cfg.OnLimited != nil {
					l.cfg.OnLimited()
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("X-RateLimit-Remaining", "0")
				deny(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded, please try again later")
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			next.ServeHTTP(w, r)
		})
	}
}

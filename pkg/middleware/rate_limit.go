package middleware

import (
	"net"
	"net/http"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/logger"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CallerExtractor names the party a request is counted against.
type CallerExtractor func(r *http.Request) string

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// CallerRateLimiter gives every caller its own token bucket refilling at
// limit per window, with a burst of limit.
type CallerRateLimiter struct {
	mu              sync.Mutex
	buckets         map[string]*callerBucket
	limit           int
	window          time.Duration
	callerExtractor CallerExtractor
	log             *logger.Logger
	stopCh          chan struct{}
	stopOnce        sync.Once
	now             func() time.Time
}

func NewCallerRateLimiter(limit int, window time.Duration, extractor CallerExtractor, log *logger.Logger) *CallerRateLimiter {
	if extractor == nil {
		extractor = DefaultCallerExtractor
	}
	limiter := &CallerRateLimiter{
		buckets:         make(map[string]*callerBucket),
		limit:           limit,
		window:          window,
		callerExtractor: extractor,
		log:             log,
		stopCh:          make(chan struct{}),
		now:             time.Now,
	}

	go limiter.evictIdle()

	return limiter
}

// evictIdle drops callers quiet for a whole window; their bucket would be
// full again anyway.
func (rl *CallerRateLimiter) evictIdle() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for caller, b := range rl.buckets {
				if now.Sub(b.lastSeen) > rl.window {
					delete(rl.buckets, caller)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *CallerRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *CallerRateLimiter) bucket(caller string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[caller]
	if !ok {
		b = &callerBucket{limiter: rate.NewLimiter(rate.Every(rl.window/time.Duration(rl.limit)), rl.limit)}
		rl.buckets[caller] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Allow takes a token for caller. When none is left it reports how long
// until the next one.
func (rl *CallerRateLimiter) Allow(caller string) (bool, time.Duration) {
	if caller == "" {
		return true, 0
	}

	rl.mu.Lock()
	now := rl.now()
	rl.mu.Unlock()

	res := rl.bucket(caller, now).ReserveN(now, 1)
	if !res.OK() {
		return false, rl.window
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

func CallerRateLimit(limiter *CallerRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := limiter.callerExtractor(r)

			allowed, retryAfter := limiter.Allow(caller)
			if !allowed {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", RequestIDFromContext(r.Context()),
					"caller", caller,
					"path", r.URL.Path,
				)
				seconds := int(retryAfter.Round(time.Second) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
				apperrors.WriteError(w, apperrors.New("RATE_LIMITED", "Rate limit exceeded", http.StatusTooManyRequests))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// DefaultCallerExtractor prefers the gateway identities and falls back to the
// client address.
func DefaultCallerExtractor(r *http.Request) string {
	if id := r.Header.Get(CallerIDHeader); id != "" {
		return "caller:" + id
	}
	if id := r.Header.Get(ProviderIDHeader); id != "" {
		return "provider:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}

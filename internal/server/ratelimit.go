package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"golang.org/x/time/rate"
)

// LimiterStore holds one token bucket per client with TTL eviction.
type LimiterStore struct {
	mu       sync.Mutex
	limiters *cache.Cache[string, *rate.Limiter]
	ttl      time.Duration
	perSec   rate.Limit
	burst    int
}

// NewLimiterStore builds a store allowing requestsPerMinute with burst per
// client. Idle clients are forgotten after ttl.
func NewLimiterStore(requestsPerMinute float64, burst int, ttl time.Duration) *LimiterStore {
	perSecond := requestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LimiterStore{
		limiters: cache.New[string, *rate.Limiter](),
		ttl:      ttl,
		perSec:   rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow consumes a token for id and refreshes its expiry
func (s *LimiterStore) Allow(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters.Get(id)
	if !ok {
		limiter = rate.NewLimiter(s.perSec, s.burst)
	}
	s.limiters.Set(id, limiter, cache.WithExpiration(s.ttl))
	return limiter.Allow()
}

// Clients returns how many clients are tracked
func (s *LimiterStore) Clients() int {
	return len(s.limiters.Keys())
}

// RateLimiter throttles requests per client IP
type RateLimiter struct {
	store    *LimiterStore
	recorder RequestRecorder
}

func NewRateLimiter(store *LimiterStore, recorder RequestRecorder) *RateLimiter {
	return &RateLimiter{store: store, recorder: recorder}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed := l.store.Allow(clientID(r))
		if l.recorder != nil {
			l.recorder.SetLimiterClients(l.store.Clients())
		}
		if !allowed {
			writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientID(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if parsed := net.ParseIP(first); parsed != nil {
			return parsed.String()
		}
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

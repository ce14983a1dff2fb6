package api

import (
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/semihalev/zlog/v2"
	"golang.org/x/time/rate"
)

// recoverer turns a handler panic into a 500 instead of killing the
// connection.
func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				zlog.Error("HTTP handler panicked", "path", r.URL.Path, "recover", rec,
					"stack", string(debug.Stack()))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// cors answers preflight requests and stamps allowed origins from the
// config onto every response.
func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && a.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-CSRF-Token")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *API) originAllowed(origin string) bool {
	for _, allowed := range a.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ratelimit rejects clients above the configured per-minute budget.
// Loopback clients are never limited.
func (a *API) ratelimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		ip := net.ParseIP(host)
		if ip != nil && ip.IsLoopback() {
			next.ServeHTTP(w, r)
			return
		}

		if !a.limits.allow(host) {
			a.writeJSON(w, r, http.StatusTooManyRequests, Json{"error": "rate limit exceeded", "code": http.StatusTooManyRequests})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// limiterStore keeps one token bucket per client, keyed by the xxhash
// of the address. Stale limiters are pruned on access.
type limiterStore struct {
	perMinute int

	mu       sync.Mutex
	limiters map[uint64]*clientLimiter
	lastScan time.Time
}

type clientLimiter struct {
	rl   *rate.Limiter
	seen time.Time
}

const limiterIdle = 10 * time.Minute

func newLimiterStore(perMinute int) *limiterStore {
	return &limiterStore{
		perMinute: perMinute,
		limiters:  make(map[uint64]*clientLimiter),
		lastScan:  time.Now(),
	}
}

// allow reports whether one more request from addr fits its budget.
// Zero perMinute disables limiting.
func (s *limiterStore) allow(addr string) bool {
	if s.perMinute == 0 {
		return true
	}

	key := xxhash.Sum64String(addr)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastScan) > limiterIdle {
		for k, l := range s.limiters {
			if now.Sub(l.seen) > limiterIdle {
				delete(s.limiters, k)
			}
		}
		s.lastScan = now
	}

	l, ok := s.limiters[key]
	if !ok {
		l = &clientLimiter{
			rl: rate.NewLimiter(rate.Limit(float64(s.perMinute)/60.0), s.perMinute),
		}
		s.limiters[key] = l
	}
	l.seen = now

	return l.rl.Allow()
}

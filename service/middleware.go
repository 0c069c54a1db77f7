package service

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"rampart/observability/metrics"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags every request with a UUID so log lines and traces can be
// correlated. An inbound header wins over a freshly minted identifier.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Instrument records request counts and latency against the chi route
// pattern, so path parameters do not explode metric cardinality.
func Instrument(registry *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			registry.Observe(route, r.Method, recorder.status, time.Since(start))
		})
	}
}

// RateLimitConfig bounds request throughput per client address.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
}

// RateLimiter tracks a token bucket per caller. Entries idle for longer than
// the eviction window are dropped to keep the map bounded.
type RateLimiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	lastScan time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterEvictionWindow = 10 * time.Minute

// NewRateLimiter builds the middleware state from the config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 600
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute / 10
		if cfg.Burst == 0 {
			cfg.Burst = 1
		}
	}
	return &RateLimiter{cfg: cfg, clients: make(map[string]*clientLimiter), lastScan: time.Now()}
}

// Middleware rejects callers exceeding their per-minute budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl == nil || !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		if !rl.allow(clientID(r)) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(client string) bool {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if now.Sub(rl.lastScan) > limiterEvictionWindow {
		for key, entry := range rl.clients {
			if now.Sub(entry.lastSeen) > limiterEvictionWindow {
				delete(rl.clients, key)
			}
		}
		rl.lastScan = now
	}
	entry, ok := rl.clients[client]
	if !ok {
		perSecond := rate.Limit(float64(rl.cfg.RequestsPerMinute) / 60.0)
		entry = &clientLimiter{limiter: rate.NewLimiter(perSecond, rl.cfg.Burst)}
		rl.clients[client] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

func clientID(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if first := strings.TrimSpace(parts[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Package service exposes the wall engine over HTTP: authenticated REST
// operations, a websocket event stream, health and Prometheus endpoints.
package service

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rampart/core/events"
	"rampart/native/bidwall"
	"rampart/observability/metrics"
)

// Server assembles the HTTP surface around a wired wall engine.
type Server struct {
	engine  *bidwall.Engine
	bus     *events.Bus
	auth    *Authenticator
	limiter *RateLimiter
	log     *slog.Logger
	router  chi.Router
}

// Options carries the collaborators the server needs beyond the engine.
type Options struct {
	Bus       *events.Bus
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       *slog.Logger
}

// NewServer wires routes, middleware and handlers. The returned server
// implements http.Handler and can be mounted directly on an http.Server.
func NewServer(engine *bidwall.Engine, opts Options) *Server {
	logger := opts.Log
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  engine,
		bus:     opts.Bus,
		auth:    NewAuthenticator(opts.Auth, logger),
		limiter: NewRateLimiter(opts.RateLimit),
		log:     logger,
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Instrument(metrics.HTTP()))
	r.Use(s.limiter.Middleware)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(read chi.Router) {
			read.Use(s.auth.Middleware(ScopeRead))
			read.Get("/pools/{pool}/wall", s.handleWall)
			read.Get("/pools/{pool}/position", s.handlePosition)
			read.Get("/params", s.handleParams)
			read.Get("/events/ws", s.handleEventStream)
		})
		v1.Group(func(write chi.Router) {
			write.Use(s.auth.Middleware(ScopeWrite))
			write.Post("/pools/{pool}/deposit", s.handleDeposit)
			write.Post("/pools/{pool}/staleness", s.handleStaleness)
			write.Post("/pools/{pool}/close", s.handleClose)
			write.Post("/pools/{pool}/disabled", s.handleDisabled)
		})
		v1.Group(func(admin chi.Router) {
			admin.Use(s.auth.Middleware(ScopeAdmin))
			admin.Put("/params/threshold", s.handleSetThreshold)
			admin.Put("/params/stale-window", s.handleSetStaleWindow)
		})
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

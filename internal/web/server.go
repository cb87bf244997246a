// Package web provides the HTTP API for the rent-roll import service.
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rentfolio/rentroll/internal/config"
	"github.com/rentfolio/rentroll/internal/rentroll"
	"github.com/rentfolio/rentroll/internal/store"
	"github.com/rentfolio/rentroll/internal/web/middleware"
)

// RunStore is the run-history surface the API exposes. *store.Postgres
// implements it; a nil RunStore disables the /api/runs routes.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, runID string) (*store.Run, error)
	RollbackRun(ctx context.Context, runID string) (store.RollbackResult, error)
}

// Server is the HTTP server for the import API.
type Server struct {
	service *rentroll.Service
	runs    RunStore
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *rentroll.Service, runs RunStore, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		runs:    runs,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Uploads get a tighter per-IP budget than the general limiter.
	uploadLimit := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled && s.cfg.Rate.UploadLimit > 0 {
		uploadLimit = newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware
	}

	s.router.Route("/api", func(r chi.Router) {
		// Long-lived endpoints stay outside the request timeout: progress
		// is an SSE stream and result blocks until the import finishes.
		r.Get("/imports/{sessionID}/progress", s.handleProgress)
		r.Get("/imports/{sessionID}/result", s.handleResult)

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			}

			// Import sessions
			r.With(uploadLimit).Post("/imports", s.handleCreateImport)
			r.Route("/imports/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetImport)
				r.Put("/mapping", s.handleSetMapping)
				r.Post("/preview", s.handlePreview)
				r.Post("/back", s.handleBack)
				r.Post("/execute", s.handleExecute)
				r.Post("/cancel", s.handleCancel)
			})

			// Run history and rollback
			if s.runs != nil {
				r.Get("/runs", s.handleListRuns)
				r.Get("/runs/{runID}", s.handleGetRun)
				r.Post("/runs/{runID}/rollback", s.handleRollbackRun)
			}
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // zero for SSE
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    rl.rate - 1, // consume one token
			lastReset: time.Now(),
		}
		return true
	}

	// Reset tokens if window has passed
	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}

	if v.tokens <= 0 {
		return false
	}

	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by IP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		// Use X-Real-IP if set (by RealIP middleware)
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			ip = realIP
		}

		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

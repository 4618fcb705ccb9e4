// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package mockbackend is an in-memory implementation of the storefront REST
// surface. It backs the CLI's mock-backend command and end-to-end tests.
package mockbackend

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sigil-dev/storefront/internal/backend"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

// Config holds mock backend configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Products seeds the catalog. DefaultCatalog is used when empty.
	Products []backend.Product
	// Responder produces assistant replies. DefaultResponder when nil.
	Responder Responder
	// AuthToken, when set, is required as "Authorization: Bearer <token>".
	AuthToken string
	// RateLimit is the sustained per-client request rate. Zero disables it.
	RateLimit float64
	RateBurst int
	// DeclineAbove rejects checkouts whose total exceeds it with a 2xx
	// failure body. Zero disables it.
	DeclineAbove float64
	// MetricsHandler, when set, is served at GET /metrics.
	MetricsHandler http.Handler

	Logger zerolog.Logger
	Clock  func() time.Time
}

// Server wraps a chi router with the huma API and in-memory state.
type Server struct {
	router    chi.Router
	api       huma.API
	cfg       Config
	state     *state
	faults    *faults
	log       zerolog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server with routes, CORS and the test hooks installed.
func New(cfg Config) (*Server, error) {
	if cfg.RateLimit < 0 {
		return nil, sferr.Errorf(sferr.CodeMockBackendConfigInvalid,
			"rate limit must not be negative (got %g)", cfg.RateLimit)
	}
	if cfg.RateLimit > 0 && cfg.RateBurst <= 0 {
		return nil, sferr.Errorf(sferr.CodeMockBackendConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			cfg.RateBurst, cfg.RateLimit)
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.Responder == nil {
		cfg.Responder = DefaultResponder
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	products := cfg.Products
	if len(products) == 0 {
		products = DefaultCatalog()
	}

	s := &Server{
		cfg:    cfg,
		state:  newState(products, cfg.Clock),
		faults: newFaults(),
		log:    cfg.Logger,
		done:   make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(s.faults.middleware)
	r.Use(s.authMiddleware)
	r.Use(ownerMiddleware)
	r.Use(rateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))

	humaConfig := huma.DefaultConfig("Storefront Mock Backend", "0.1.0")
	humaConfig.Info.Description = "In-memory storefront catalog, cart and chat API"
	s.api = humachi.New(r, humaConfig)
	s.router = r

	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*healthOutput, error) {
		out := &healthOutput{}
		out.Body.Status = "ok"
		return out, nil
	})
	s.registerRoutes()
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	return s, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully. ready, when non-nil, receives the bound address.
func (s *Server) Start(ctx context.Context, ready func(addr string)) error {
	if s.cfg.ListenAddr == "" {
		return sferr.New(sferr.CodeMockBackendConfigInvalid, "listen address is required")
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return sferr.Wrapf(err, sferr.CodeMockBackendStartFailure, "listening on %s", s.cfg.ListenAddr)
	}
	if ready != nil {
		ready(ln.Addr().String())
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case <-s.done:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return sferr.Wrap(err, sferr.CodeMockBackendStartFailure, "shutting down")
	}
	return <-errCh
}

// Close stops a running Start. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok" doc:"Health status"`
	}
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	want := "Bearer " + s.cfg.AuthToken
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || r.Header.Get("Authorization") == want {
			next.ServeHTTP(w, r)
			return
		}
		writeProblem(w, http.StatusUnauthorized, "Authentication required")
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("mock backend request")
	})
}

// writeProblem writes an RFC 9457 problem body like the ones huma emits.
func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

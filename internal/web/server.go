// Package web exposes the import pipeline over HTTP.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/JonMunkholm/clientimport/internal/config"
	"github.com/JonMunkholm/clientimport/internal/pipeline"
	"github.com/JonMunkholm/clientimport/internal/store"
	"github.com/JonMunkholm/clientimport/internal/upsert"
	"github.com/JonMunkholm/clientimport/internal/web/middleware"
)

// Records is the read side of the medecin store.
type Records interface {
	Stats(ctx context.Context) (store.Stats, error)
	FindPotentialDuplicates(ctx context.Context) ([]store.DuplicateGroup, error)
}

// UpsertConfigFunc resolves the engine settings for a requested strategy.
// An empty strategy selects the configured default.
type UpsertConfigFunc func(strategy string) (upsert.Config, error)

// Server is the HTTP server.
type Server struct {
	service      *pipeline.Service
	records      Records
	upsertConfig UpsertConfigFunc
	cfg          *config.Config
	router       *chi.Mux
	server       *http.Server
	now          func() time.Time
}

// NewServer builds the router. records may be nil, in which case the
// stats and duplicates endpoints answer 503.
func NewServer(service *pipeline.Service, records Records, upsertConfig UpsertConfigFunc, cfg *config.Config) *Server {
	s := &Server{
		service:      service,
		records:      records,
		upsertConfig: upsertConfig,
		cfg:          cfg,
		router:       chi.NewRouter(),
		now:          time.Now,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)

	if origins := s.cfg.Server.AllowedOrigins; len(origins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Owner-ID", "X-Request-Id", "HX-Request"},
			ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	timeout := s.cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	s.router.Use(chimw.Timeout(timeout))
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/import", s.handleImport)
		r.Get("/report", s.handleReport)
		r.Get("/stats", s.handleStats)
		r.Get("/duplicates", s.handleDuplicates)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	srv := s.cfg.Server
	s.server = &http.Server{
		Addr:         srv.Addr(),
		Handler:      s.router,
		ReadTimeout:  srv.ReadTimeout,
		WriteTimeout: srv.WriteTimeout,
		IdleTimeout:  srv.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for running pipelines to
// release their slots.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)

	if active := s.service.Limiter().Active(); active > 0 {
		slog.Info("waiting for running pipelines", "active", active)
		if derr := s.service.Limiter().WaitForDrain(ctx); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

// Router returns the chi router, for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status. Encoding errors are logged
// since the header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "path", r.URL.Path, "error", err)
	}
}

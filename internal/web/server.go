// Package web provides the HTTP API for the royalty reconciliation service.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/royalties/internal/config"
	"github.com/JonMunkholm/royalties/internal/core"
	mw "github.com/JonMunkholm/royalties/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Service is the part of core.Service the API uses.
type Service interface {
	Stats(ctx context.Context) (core.Stats, error)

	CreateImport(ctx context.Context, req core.CreateImportRequest, body io.Reader) (core.Import, error)
	ListImports(ctx context.Context) ([]core.Import, error)
	GetImport(ctx context.Context, id uuid.UUID) (core.Import, error)
	RollbackImport(ctx context.Context, id uuid.UUID) (core.RollbackResult, error)

	CreateStatement(ctx context.Context, req core.NewStatement) (core.Statement, error)
	ListStatements(ctx context.Context) ([]core.Statement, error)
	GetStatement(ctx context.Context, id uuid.UUID) (core.Statement, error)
	DeleteStatement(ctx context.Context, id uuid.UUID) error
	MarkInvoiced(ctx context.Context, id uuid.UUID) (core.Statement, error)
	OpenExport(ctx context.Context, id uuid.UUID, format string) (io.ReadCloser, string, string, error)
	ListConflicts(ctx context.Context, statementID uuid.UUID) ([]core.Conflict, error)
	ResolveConflict(ctx context.Context, statementID uuid.UUID, conflictID int64) error
}

var _ Service = (*core.Service)(nil)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Server is the HTTP server for the royalty API.
type Server struct {
	service  Service
	cfg      *config.Config
	health   HealthFunc
	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
}

// NewServer creates a Server. health may be nil.
func NewServer(service Service, cfg *config.Config, health HealthFunc) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		health:  health,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security))

		r.Get("/stats", s.handleStats)

		r.Route("/imports", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(s.newLimiter(s.cfg.Rate.UploadLimit).middleware)
				}
				r.Post("/", s.handleCreateImport)
				r.Post("/preview", s.handlePreviewImport)
			})
			r.Get("/", s.handleListImports)
			r.Get("/{id}", s.handleGetImport)
			r.Delete("/{id}", s.handleRollbackImport)
		})

		r.Route("/statements", func(r chi.Router) {
			r.Post("/", s.handleCreateStatement)
			r.Get("/", s.handleListStatements)
			r.Get("/{id}", s.handleGetStatement)
			r.Delete("/{id}", s.handleDeleteStatement)
			r.Post("/{id}/invoice", s.handleInvoiceStatement)
			r.Get("/{id}/export", s.handleExportStatement)
			r.Get("/{id}/conflicts", s.handleListConflicts)
			r.Post("/{id}/conflicts/{conflictID}/resolve", s.handleResolveConflict)
		})
	})
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its rate limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) newLimiter(perMinute int) *rateLimiter {
	l := newRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, l)
	return l
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// Package server exposes the verification engine over HTTP.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/veritas/internal/metrics"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
	"github.com/ppiankov/veritas/internal/sink"
	"github.com/ppiankov/veritas/internal/worker"
)

// RunIDHeader carries the sink record id of a recorded run
const RunIDHeader = "X-Veritas-Run-ID"

const maxBodyBytes = 1 << 20

// Server serves the verification API
type Server struct {
	cfg        model.ServerConfig
	engine     *pipeline.Engine
	records    *sink.Store       // Optional
	recorder   *metrics.Recorder // Optional
	logger     *slog.Logger
	limiter    *worker.Limiter // Per client; nil when disabled
	router     chi.Router
	httpServer *http.Server
}

// New creates a server. records and recorder may be nil.
func New(cfg model.ServerConfig, engine *pipeline.Engine, records *sink.Store, recorder *metrics.Recorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		records:  records,
		recorder: recorder,
		logger:   logger,
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.WriteTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.WriteTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.recorder != nil {
		r.Method(http.MethodGet, "/metrics", s.recorder.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimit)
		}
		r.Post("/verify", s.handleVerify)
		r.Post("/verify/enhanced", s.handleVerifyEnhanced)
		r.Post("/enforce", s.handleEnforce)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Get("/{id}", s.handleGetSession)
			r.Post("/{id}/feedback", s.handleCompleteSession)
		})

		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.handleListRecords)
			r.Get("/{id}", s.handleGetRecord)
		})
	})

	return r
}

// requestLogger logs one structured line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// rateLimit rejects clients that exceed the configured request rate
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the client IP; RealIP has already applied forwarding headers
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address until Shutdown
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("veritas server listening", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

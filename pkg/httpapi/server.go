// Package httpapi exposes a tsa.Facade over HTTP with JSON bodies.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/atomic"
)

// RouteRegistrar registers routes with the server's router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Config contains the HTTP server parameters.
type Config struct {
	// ListenAddr is the address and port the server listens on.
	ListenAddr string

	// CORSOrigins lists the origins allowed to call the API from a browser.
	// Empty disables CORS handling.
	CORSOrigins []string

	// Log is the structured logger for requests and server events.
	Log *slog.Logger

	// DrainDuration is the time to wait after marking the server not ready.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds in-flight requests during shutdown.
	GracefulShutdownDuration time.Duration

	// RequestTimeout bounds a single API request. Benchmarks of large
	// iteration counts are the slowest calls.
	RequestTimeout time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns timeouts suitable for the demo server.
func DefaultConfig(listenAddr string, log *slog.Logger) *Config {
	return &Config{
		ListenAddr:               listenAddr,
		Log:                      log,
		DrainDuration:            time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		RequestTimeout:           2 * time.Minute,
		ReadTimeout:              30 * time.Second,
		WriteTimeout:             3 * time.Minute,
	}
}

// Server is the HTTP server with liveness, readiness and drain endpoints.
type Server struct {
	cfg     *Config
	isReady atomic.Bool
	log     *slog.Logger
	handler http.Handler
	srv     *http.Server
}

// New creates a Server whose router carries the routes of every registrar.
// The server starts out ready.
func New(cfg *Config, registrars ...RouteRegistrar) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	srv := &Server{cfg: cfg, log: log}
	srv.handler = srv.createRouter(registrars)
	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	srv.isReady.Store(true)
	return srv
}

// Handler returns the router, for tests and embedding.
func (srv *Server) Handler() http.Handler { return srv.handler }

func (srv *Server) createRouter(registrars []RouteRegistrar) http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	if len(srv.cfg.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: srv.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	mux.Group(func(r chi.Router) {
		r.Use(srv.httpLogger)
		if srv.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(srv.cfg.RequestTimeout))
		}
		for _, registrar := range registrars {
			registrar.RegisterRoutes(r)
		}
	})

	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, "alive")
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		writeStatus(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		writeStatus(w, http.StatusOK, "already draining")
		return
	}
	srv.log.Info("Server marked as not ready")
	go func() {
		time.Sleep(srv.cfg.DrainDuration)
		srv.log.Info("Drain period completed")
	}()
	writeStatus(w, http.StatusOK, "draining")
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		writeStatus(w, http.StatusOK, "already ready")
		return
	}
	srv.log.Info("Server marked as ready")
	writeStatus(w, http.StatusOK, "ready")
}

// ListenAndServe serves until Shutdown is called. It returns nil after a
// graceful shutdown.
func (srv *Server) ListenAndServe() error {
	srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
	if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown marks the server not ready, waits for the drain period and then
// stops accepting requests, waiting at most GracefulShutdownDuration for
// in-flight ones.
func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.isReady.Swap(false) && srv.cfg.DrainDuration > 0 {
		select {
		case <-time.After(srv.cfg.DrainDuration):
		case <-ctx.Done():
		}
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
		return err
	}
	srv.log.Info("HTTP server gracefully stopped")
	return nil
}

func writeStatus(w http.ResponseWriter, status int, s string) {
	writeJSON(w, status, map[string]string{"status": s})
}

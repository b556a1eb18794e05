// Package server exposes the agent over HTTP: a websocket chat endpoint that
// streams conversation events, and read-only catalog, health and metrics
// endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/mcpagent/internal/catalog"
	"github.com/dotcommander/mcpagent/internal/event"
	"github.com/dotcommander/mcpagent/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Runner runs one conversation. *agent.Loop implements it.
type Runner interface {
	Run(ctx context.Context, input string, sink event.Sink) error
}

// Catalog is the read-only view of the tool catalog.
type Catalog interface {
	Report() catalog.Report
	Summary() (tools, servers int)
}

// Config holds server configuration.
type Config struct {
	Listen string
	// AllowedOrigins restricts websocket origins. Empty allows any.
	AllowedOrigins []string
	Runner         Runner
	Catalog        Catalog
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// Server is the HTTP surface of the agent.
type Server struct {
	cfg      Config
	log      zerolog.Logger
	upgrader websocket.Upgrader
	handler  http.Handler

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	s := &Server{
		cfg:   cfg,
		log:   cfg.Logger,
		conns: map[string]*websocket.Conn{},
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/api/tools", s.handleTools)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.cfg.Metrics.Handler().ServeHTTP)
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe listens on the configured address and serves until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully and
// closes every open websocket.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("serving")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.closeConns()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.log.Info().Msg("server stopped")
		return nil
	})
	return g.Wait()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Catalog.Report())
}

type health struct {
	Status  string `json:"status"`
	Tools   int    `json:"tools"`
	Servers int    `json:"servers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	tools, servers := s.cfg.Catalog.Summary()
	writeJSON(w, http.StatusOK, health{Status: "ok", Tools: tools, Servers: servers})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// observe records request metrics by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.cfg.Metrics.HTTPRequest(route, status, time.Since(start).Seconds())
	})
}

// Package network serves the playback status and metrics over HTTP.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cadence-media/cadence/log"
	"github.com/cadence-media/cadence/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes GET /status and GET /metrics.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	listener   net.Listener
	status     func() Status
	metrics    *metrics.Engine
	log        *logrus.Entry
	done       chan struct{}
}

// NewServer returns a server for addr. status is called for every /status request. m may be nil,
// in which case /metrics answers 404.
func NewServer(addr string, status func() Status, m *metrics.Engine) *Server {
	s := &Server{
		status:  status,
		metrics: m,
		log:     log.For("network"),
		done:    make(chan struct{}),
	}

	s.router = chi.NewRouter()
	s.router.Use(middleware.Recoverer)
	s.router.Use(LoggingMiddleware(s.log))
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/metrics", s.metrics.Handler(nil).ServeHTTP)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = l
	s.log.WithField("addr", l.Addr().String()).Info("starting server")

	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("server stopped")
		}
	}()
	return nil
}

// Addr returns the address the server listens on once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if s.listener != nil {
		<-s.done
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status()); err != nil {
		s.log.WithError(err).Warn("encoding status")
	}
}

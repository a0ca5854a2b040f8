package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/FastTravelAS/chippy/internal/session"
	"github.com/FastTravelAS/chippy/internal/status"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Sessions lists the devices connected to this instance.
type Sessions interface {
	Snapshot() []session.Record
}

// Connections reports the number of open device sockets.
type Connections interface {
	GetActiveConnections() int
}

// Server is the read-only operator HTTP endpoint.
type Server struct {
	logger   *zap.Logger
	sessions Sessions
	store    status.Store
	conns    Connections
	hub      *Hub
	router   chi.Router
	server   *http.Server
	listener net.Listener
}

// NewServer builds the router. conns and hub may be nil.
func NewServer(logger *zap.Logger, sessions Sessions, store status.Store, conns Connections, hub *Hub) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:   logger,
		sessions: sessions,
		store:    store,
		conns:    conns,
		hub:      hub,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/sessions", s.handleSessions)
	s.router.Get("/status", s.handleStatus)
	if s.hub != nil {
		s.router.Handle("/events", s.hub)
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Listen binds addr. Serve must follow.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve blocks until Shutdown.
func (s *Server) Serve() error {
	s.logger.Info("Admin endpoint listening", zap.String("addr", s.listener.Addr().String()))
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Connections int    `json:"connections"`
	Subscribers int    `json:"subscribers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: "ok"}
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Store = err.Error()
		code = http.StatusServiceUnavailable
	}
	if s.conns != nil {
		resp.Connections = s.conns.GetActiveConnections()
	}
	if s.hub != nil {
		resp.Subscribers = s.hub.Subscribers()
	}
	s.respondJSON(w, code, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.sessions.Snapshot())
}

type statusResponse struct {
	Server  string            `json:"server"`
	Clients map[string]string `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	server, err := s.store.ServerStatus(r.Context())
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	clients, err := s.store.ClientStatuses(r.Context())
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	resp := statusResponse{Server: server, Clients: make(map[string]string, len(clients))}
	for id, st := range clients {
		resp.Clients[strconv.Itoa(id)] = st
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to encode admin response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, code int, msg string) {
	s.respondJSON(w, code, map[string]string{"error": msg})
}

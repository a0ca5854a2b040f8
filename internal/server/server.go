package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/FastTravelAS/chippy/internal/device"
	"github.com/FastTravelAS/chippy/internal/dispatch"
	"github.com/FastTravelAS/chippy/internal/handshake"
	"github.com/FastTravelAS/chippy/internal/logging"
	"github.com/FastTravelAS/chippy/internal/report"
	"github.com/FastTravelAS/chippy/internal/session"
	"github.com/FastTravelAS/chippy/internal/sink"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPort            = 44999
	DefaultConcurrency     = 10
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Host            string
	Port            int
	Concurrency     int           // number of accept workers
	ReadTimeout     time.Duration // per frame, zero disables
	ShutdownTimeout time.Duration
	Handshake       handshake.Options
}

// Deps are the collaborators shared by every connection.
type Deps struct {
	Logger   *zap.Logger
	Reporter report.Reporter
	Registry *session.Registry
	Sink     sink.Sink
}

// Server accepts transceiver connections on a fixed pool of workers.
type Server struct {
	config   *Config
	logger   *zap.Logger
	reporter report.Reporter
	registry *session.Registry
	sink     sink.Sink

	listener net.Listener
	wg       sync.WaitGroup
	closing  atomic.Bool

	mu          sync.Mutex
	activeConns map[string]*device.Conn
}

// New creates a new Server instance
func New(config *Config, deps Deps) *Server {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Reporter == nil {
		deps.Reporter = report.Nop{}
	}
	return &Server{
		config:      config,
		logger:      deps.Logger,
		reporter:    deps.Reporter,
		registry:    deps.Registry,
		sink:        deps.Sink,
		activeConns: make(map[string]*device.Conn),
	}
}

// Listen binds the listening socket. It fails if the port is already in use.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.logger.Info("Server listening for connections",
		zap.String("addr", listener.Addr().String()),
		zap.Int("concurrency", s.config.Concurrency),
	)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds, serves and blocks until SIGINT or SIGTERM, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Serve(ctx)
}

// Serve runs the accept workers on a bound listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < s.config.Concurrency; i++ {
		s.wg.Add(1)
		go func(worker int) {
			defer s.wg.Done()
			s.acceptConnections(workerCtx, worker)
		}(i)
	}

	<-ctx.Done()
	s.logger.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancelShutdown()
	return s.Shutdown(shutdownCtx)
}

// acceptConnections is one worker: accept, serve the connection to the end,
// accept again.
func (s *Server) acceptConnections(ctx context.Context, worker int) {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.closing.Load() {
				return
			}
			s.logger.Error("Failed to accept connection", zap.Int("worker", worker), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		s.handleConnection(ctx, nc)
	}
}

// handleConnection runs the handshake and then the steady state loop.
func (s *Server) handleConnection(ctx context.Context, nc net.Conn) {
	connID := uuid.NewString()
	remoteAddr := nc.RemoteAddr().String()
	logger := s.logger.With(zap.String("conn_id", connID))

	conn := device.New(nc, logger,
		device.WithReadTimeout(s.config.ReadTimeout),
		device.WithRemoteAddr(remoteAddr),
		device.WithID(connID),
	)

	s.mu.Lock()
	s.activeConns[connID] = conn
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic serving connection: %v", r)
			logger.Error("Recovered from panic", zap.Error(err))
			s.reporter.Report(err, s.reportContext(conn, connID, nil))
		}
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, connID)
		s.mu.Unlock()
		if id, ok := conn.ClientID(); ok {
			if !s.registry.Disconnect(id, connID) {
				logger.Debug("Session already taken over by a newer connection", zap.Int("client_id", id))
			}
		}
		logging.LogConnection(logger, remoteAddr, "connection_closed")
	}()

	logging.LogConnection(logger, remoteAddr, "connection_accepted")

	dispatcher := dispatch.New(conn, s.sink, logger)
	hs := handshake.New(conn, dispatcher, s.registry, logger, s.config.Handshake)
	if err := hs.Perform(ctx); err != nil {
		s.handleError(err, conn, connID)
		return
	}

	for {
		msg, err := conn.Read()
		if err != nil {
			if s.handleError(err, conn, connID) == Close {
				return
			}
			continue
		}
		if msg == nil {
			logger.Info("Device closed connection")
			return
		}

		if err := dispatcher.Handle(ctx, msg); err != nil {
			if s.handleError(err, conn, connID) == Close {
				return
			}
		}
		if id, ok := conn.ClientID(); ok {
			s.registry.Touch(id)
		}
	}
}

// handleError logs and reports err, resynchronizes after malformed frames,
// and returns what the caller should do with the connection.
func (s *Server) handleError(err error, conn *device.Conn, connID string) Disposition {
	d := Classify(err)

	var malformed *device.MalformedMessageError
	if d == Resync && errors.As(err, &malformed) {
		if derr := conn.DiscardRemainingData(malformed.Remaining); derr != nil {
			err = fmt.Errorf("%w (resync failed: %v)", err, derr)
			d = Close
		} else {
			d = Continue
		}
	}

	fields := []zap.Field{
		zap.String("conn_id", connID),
		zap.String("remote_addr", conn.RemoteAddr()),
		zap.Stringer("disposition", d),
		zap.Error(err),
	}
	if id, ok := conn.ClientID(); ok {
		fields = append(fields, zap.Int("client_id", id))
	}

	shuttingDown := s.closing.Load()
	switch {
	case d != Close:
		s.logger.Warn("Connection error", fields...)
	case IsExpectedCloseError(err) || shuttingDown:
		s.logger.Info("Connection ended", fields...)
	default:
		s.logger.Error("Connection error", fields...)
	}

	if !shuttingDown {
		s.reporter.Report(err, s.reportContext(conn, connID, malformed))
	}
	return d
}

func (s *Server) reportContext(conn *device.Conn, connID string, malformed *device.MalformedMessageError) report.Context {
	c := report.Context{ConnID: connID, RemoteAddr: conn.RemoteAddr()}
	c.ClientID, c.HasClientID = conn.ClientID()
	if malformed != nil {
		c.Raw = map[string][]byte{"header": malformed.Header, "body": malformed.Body}
	}
	return c
}

// Shutdown stops accepting, closes every active connection, waits for the
// workers and marks the server offline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.closing.Store(true)

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("Error closing listener", zap.Error(err))
		}
	}

	s.mu.Lock()
	for connID, conn := range s.activeConns {
		fields := []zap.Field{zap.String("conn_id", connID), zap.String("remote_addr", conn.RemoteAddr())}
		if id, ok := conn.ClientID(); ok {
			fields = append(fields, zap.Int("client_id", id))
		}
		s.logger.Info("Closing active connection", fields...)
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All connections closed gracefully")
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout, forcing close")
	}

	var err error
	if s.registry != nil {
		if err = s.registry.MarkOffline(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("Failed to mark server offline", zap.Error(err))
		}
	}
	s.reporter.Flush(2 * time.Second)
	_ = s.logger.Sync()
	return err
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// Package sockserver provides the socket-facing session server.
package sockserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/sockmesh-go/internal/core/engine"
	"github.com/yndnr/sockmesh-go/internal/storage"
	"github.com/yndnr/sockmesh-go/internal/telemetry/logger"
	"github.com/yndnr/sockmesh-go/internal/telemetry/metric"
)

// Config holds the socket server configuration.
type Config struct {
	// Addr is the TCP listen address. Empty disables the TCP listener.
	Addr string
	// SocketPath is the unix domain socket path. Empty disables it.
	SocketPath string

	// RateLimit is the per-client frame budget in frames per second.
	// Zero disables rate limiting.
	RateLimit float64
	// RateBurst is the per-client burst allowance.
	RateBurst int

	// MaxLineBytes caps the size of a single wire frame.
	MaxLineBytes int

	// ReadTimeout is the timeout for reading a started frame.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing a reply.
	WriteTimeout time.Duration
	// IdleTimeout disconnects peers with no traffic for this long.
	IdleTimeout time.Duration

	// Engine is the per-connection session engine configuration.
	// Logger and Metrics are filled in per connection by the server.
	Engine engine.Config
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:5260",
		RateLimit:    10,
		RateBurst:    20,
		MaxLineBytes: 64 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
	}
}

// SessionHandler is invoked once per connection after the first
// successful token exchange. It runs on the connection's goroutine;
// the engine stays valid until the handler returns and the peer
// disconnects.
type SessionHandler func(ctx context.Context, eng *engine.Engine)

// Server represents the socket session server.
type Server struct {
	cfg      *Config
	store    storage.Store
	logger   logger.Logger
	metrics  *metric.Registry
	limiters *limiterPool
	handler  SessionHandler

	tcpLn   net.Listener
	unixLn  net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a new socket session server.
func New(cfg *Config, store storage.Store, log logger.Logger, metrics *metric.Registry) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.Default()
	}

	return &Server{
		cfg:      cfg,
		store:    store,
		logger:   log,
		metrics:  metrics,
		limiters: newLimiterPool(cfg.RateLimit, cfg.RateBurst),
	}
}

// OnSession registers the handler invoked after each connection's
// token exchange. Must be called before Start.
func (s *Server) OnSession(h SessionHandler) {
	s.handler = h
}

// Start binds the configured listeners and begins accepting
// connections. Listeners are bound synchronously so that Addr() is
// valid when Start returns; accept loops run in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Addr == "" && s.cfg.SocketPath == "" {
		return errors.New("sockserver: no listen address configured")
	}

	if s.cfg.Addr != "" {
		ln, err := net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return err
		}
		s.tcpLn = ln
		s.logger.Info("socket server listening", "transport", "tcp", "addr", ln.Addr().String())
	}

	if s.cfg.SocketPath != "" {
		ln, err := net.Listen("unix", s.cfg.SocketPath)
		if err != nil {
			if s.tcpLn != nil {
				_ = s.tcpLn.Close()
			}
			return err
		}
		s.unixLn = ln
		s.logger.Info("socket server listening", "transport", "unix", "path", s.cfg.SocketPath)
	}

	s.running.Store(true)

	for _, ln := range []net.Listener{s.tcpLn, s.unixLn} {
		if ln == nil {
			continue
		}
		ln := ln
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
				s.logger.Error("socket server accept loop failed", "error", err)
			}
		}()
	}

	return nil
}

// Addr returns the bound TCP address, useful when listening on port 0.
func (s *Server) Addr() string {
	if s.tcpLn == nil {
		return ""
	}
	return s.tcpLn.Addr().String()
}

// Shutdown gracefully shuts down the server: stops accepting, closes
// the listeners, and waits for in-flight connections up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	for _, ln := range []net.Listener{s.tcpLn, s.unixLn} {
		if ln == nil {
			continue
		}
		if err := ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, c)
		}()
	}
}

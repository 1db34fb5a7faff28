// Package api serves the bot's HTTP endpoint: the platform webhook, health
// probes, Prometheus metrics and a status document.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/api/handlers"
	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/plugin"
)

// Executor is the rate-limited request executor.
type Executor interface {
	handlers.Executor
	handlers.QueueDepther
}

// Backend is what the routes serve from.
type Backend struct {
	Version string
	Started time.Time
	Bot     *messaging.BotContext
	Plugins plugin.LoadReport

	// Ready reports whether the bot is serving. Nil means never ready.
	Ready func() bool

	Store    handlers.StorePinger
	Commands handlers.Dispatcher
	Executor Executor
	Sender   handlers.Sender
}

// Server is the HTTP listener.
//
// Start binds the listener and returns once it is accepting connections;
// Stop shuts it down gracefully and is safe to call more than once.
type Server struct {
	server       *http.Server
	config       ServerConfig
	listener     net.Listener
	errCh        chan error
	shutdownOnce sync.Once
}

// NewServer creates a server in a stopped state.
func NewServer(config ServerConfig, b Backend) *Server {
	config.ApplyDefaults()

	return &Server{
		server: &http.Server{
			Addr:         config.Addr(),
			Handler:      NewRouter(config, b),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
		errCh:  make(chan error, 1),
	}
}

// Start binds BindAddress:Port and serves in the background. Bind errors
// are returned; later serve errors are delivered on Err.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
		close(s.errCh)
	}()

	logger.Info("HTTP listener started", "addr", ln.Addr().String())
	logger.Debug("HTTP endpoints available",
		"live", fmt.Sprintf("http://%s/health/live", ln.Addr()),
		"ready", fmt.Sprintf("http://%s/health/ready", ln.Addr()),
		"metrics", fmt.Sprintf("http://%s/metrics", ln.Addr()),
		"status", fmt.Sprintf("http://%s/api/v1/status", ln.Addr()),
	)
	return nil
}

// Err delivers a serve failure and is closed when the server stops.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Stop gracefully shuts the server down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("HTTP listener shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("HTTP listener shutdown error: %w", err)
			logger.Error("HTTP listener shutdown error", logger.Err(err))
		} else {
			logger.Info("HTTP listener stopped gracefully")
		}
	})
	return shutdownErr
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Package monitor provides the read-only HTTP introspection surface
// described in SPEC_FULL.md §4.12: device status, the woven binding
// table, and a live telegram stream over WebSocket. It is off by default
// and never required for the protocol stack to run — the admin CLI and
// any write surface are explicitly out of scope.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/knxhost/internal/binding"
	"github.com/nerrad567/knxhost/internal/bridges/knx"
	"github.com/nerrad567/knxhost/internal/device"
	"github.com/nerrad567/knxhost/internal/infrastructure/config"
)

const gracefulShutdownTimeout = 10 * time.Second

// Logger is the structured logging interface the server depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps holds the dependencies required to construct a Server.
type Deps struct {
	Config  config.MonitorConfig
	Logger  Logger
	Device  *device.Device
	Link    *knx.Link
	Binding *binding.Binding
	Version string
}

// Server is the monitor HTTP server: status, binding-table, and telegram
// WebSocket stream, gated by bearer JWT when Config.AuthRequired is set.
type Server struct {
	cfg       config.MonitorConfig
	logger    Logger
	dev       *device.Device
	link      *knx.Link
	binding   *binding.Binding
	version   string
	startTime time.Time

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New constructs a monitor server. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Device == nil {
		return nil, fmt.Errorf("monitor: device is required")
	}
	if deps.Link == nil {
		return nil, fmt.Errorf("monitor: link is required")
	}
	if deps.Binding == nil {
		return nil, fmt.Errorf("monitor: binding is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Server{
		cfg:       deps.Config,
		logger:    logger,
		dev:       deps.Device,
		link:      deps.Link,
		binding:   deps.Binding,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start builds the router, installs the telegram-streaming tap on the
// Link layer, and begins listening in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.logger)
	go s.hub.Run(srvCtx)
	s.link.AddTap(linkTap{hub: s.hub})

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           router,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitor server error", "error", err)
		}
	}()

	s.logger.Info("monitor server started", "addr", s.cfg.ListenAddr, "auth_required", s.cfg.AuthRequired)
	return nil
}

// Close gracefully shuts down the monitor server.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("monitor: shutting down: %w", err)
	}
	return nil
}

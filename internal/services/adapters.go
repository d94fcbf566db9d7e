package services

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// Component is the lifecycle the worker's building blocks expose.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

// ComponentService adapts a Component to the ManagedService interface.
type ComponentService struct {
	component Component
	name      string
	deps      []string
}

// NewComponentService wraps c under name, started after deps.
func NewComponentService(name string, c Component, deps ...string) *ComponentService {
	return &ComponentService{component: c, name: name, deps: deps}
}

func (c *ComponentService) Name() string {
	return c.name
}

func (c *ComponentService) Start(ctx context.Context) error {
	return c.component.Start(ctx)
}

func (c *ComponentService) Stop(ctx context.Context) error {
	return c.component.Stop(ctx)
}

func (c *ComponentService) Dependencies() []string {
	return c.deps
}

func (c *ComponentService) Health() HealthStatus {
	if c.component.IsRunning() {
		return Healthy()
	}
	return Unhealthy(c.name + " not running")
}

// HTTPServerService runs an http.Server as a ManagedService.
type HTTPServerService struct {
	name    string
	server  *http.Server
	running atomic.Bool
	addr    atomic.Value // string; the bound address once listening
}

// NewHTTPServerService serves handler on addr.
func NewHTTPServerService(name, addr string, handler http.Handler) *HTTPServerService {
	return &HTTPServerService{
		name: name,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (h *HTTPServerService) Name() string {
	return h.name
}

func (h *HTTPServerService) Dependencies() []string {
	return nil
}

// Start binds the listener synchronously so address errors surface here.
func (h *HTTPServerService) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", h.server.Addr)
	if err != nil {
		return err
	}
	h.addr.Store(ln.Addr().String())
	h.running.Store(true)

	go func() {
		defer h.running.Store(false)
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "service", h.name, "error", err)
		}
	}()
	return nil
}

func (h *HTTPServerService) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Addr returns the bound address, empty before Start.
func (h *HTTPServerService) Addr() string {
	if v, ok := h.addr.Load().(string); ok {
		return v
	}
	return ""
}

func (h *HTTPServerService) Health() HealthStatus {
	if h.running.Load() {
		return Healthy()
	}
	return Unhealthy("server not running")
}

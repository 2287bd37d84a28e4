package shutdown

import (
	"context"
	"errors"
	"net/http"
)

// HTTPServerComponent wraps an http.Server for graceful shutdown.
type HTTPServerComponent struct {
	name   string
	server *http.Server
}

// NewHTTPServerComponent creates a new HTTP server shutdown component.
func NewHTTPServerComponent(name string, server *http.Server) *HTTPServerComponent {
	return &HTTPServerComponent{
		name:   name,
		server: server,
	}
}

// Name returns the component name.
func (c *HTTPServerComponent) Name() string {
	return c.name
}

// Shutdown stops accepting new connections and waits for in-flight requests.
// When ctx expires first the remaining connections are closed.
func (c *HTTPServerComponent) Shutdown(ctx context.Context) error {
	err := c.server.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		c.server.Close()
	}
	return err
}

// FuncComponent wraps a shutdown function as a component.
type FuncComponent struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncComponent creates a new function-based shutdown component.
func NewFuncComponent(name string, fn func(ctx context.Context) error) *FuncComponent {
	return &FuncComponent{
		name: name,
		fn:   fn,
	}
}

// Name returns the component name.
func (c *FuncComponent) Name() string {
	return c.name
}

// Shutdown calls the wrapped function.
func (c *FuncComponent) Shutdown(ctx context.Context) error {
	return c.fn(ctx)
}

// GRPCServerShutdowner is the interface for gRPC servers that can be gracefully stopped.
type GRPCServerShutdowner interface {
	GracefulStop()
}

// GRPCServerComponent wraps a gRPC server for graceful shutdown.
type GRPCServerComponent struct {
	name   string
	server GRPCServerShutdowner
}

// NewGRPCServerComponent creates a new gRPC server shutdown component.
func NewGRPCServerComponent(name string, server GRPCServerShutdowner) *GRPCServerComponent {
	return &GRPCServerComponent{
		name:   name,
		server: server,
	}
}

// Name returns the component name.
func (c *GRPCServerComponent) Name() string {
	return c.name
}

// Shutdown gracefully stops the gRPC server. GracefulStop blocks until open
// streams end, so a server that also has Stop is stopped hard on deadline.
func (c *GRPCServerComponent) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if s, ok := c.server.(interface{ Stop() }); ok {
			s.Stop()
		}
		return ctx.Err()
	}
}

// PollerShutdowner is the interface for pollers that stop their loop and
// then drain in-flight fetches.
type PollerShutdowner interface {
	Stop()
	Wait(ctx context.Context) error
}

// PollerComponent wraps a poller for graceful shutdown.
type PollerComponent struct {
	name   string
	poller PollerShutdowner
}

// NewPollerComponent creates a new poller shutdown component.
func NewPollerComponent(name string, poller PollerShutdowner) *PollerComponent {
	return &PollerComponent{
		name:   name,
		poller: poller,
	}
}

// Name returns the component name.
func (c *PollerComponent) Name() string {
	return c.name
}

// Shutdown stops scheduling new fetches and waits for the ones in flight to
// apply their results.
func (c *PollerComponent) Shutdown(ctx context.Context) error {
	c.poller.Stop()
	return c.poller.Wait(ctx)
}

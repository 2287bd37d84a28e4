// Package health provides health check functionality for the dashboard.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the component is operational but with issues.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the component is not operational.
	StatusUnhealthy Status = "unhealthy"
)

// ComponentStatus represents the health status of a single component.
type ComponentStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response represents the health check response.
type Response struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// Version is the dashboard version reported by health checks.
// This should be set at build time using ldflags.
var Version = "dev"

// CheckFunc reports the status of one component.
type CheckFunc func(ctx context.Context) ComponentStatus

// Checker performs health checks for the dashboard.
type Checker struct {
	checks    map[string]CheckFunc
	startTime time.Time
	version   string
	timeout   time.Duration
	mu        sync.RWMutex
}

// NewChecker creates a new health checker.
func NewChecker(version string) *Checker {
	return &Checker{
		checks:    make(map[string]CheckFunc),
		startTime: time.Now(),
		version:   version,
		timeout:   5 * time.Second,
	}
}

// Register adds a named component check, replacing any previous one.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetTimeout sets the timeout for health checks.
func (c *Checker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// Check performs all health checks and returns the aggregated response.
func (c *Checker) Check(ctx context.Context) *Response {
	c.mu.RLock()
	timeout := c.timeout
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()
	sort.Strings(names)

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components := make(map[string]ComponentStatus, len(names))
	for _, name := range names {
		components[name] = checks[name](checkCtx)
	}

	overallStatus := StatusHealthy
	for _, comp := range components {
		if comp.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			break
		}
		if comp.Status == StatusDegraded {
			overallStatus = StatusDegraded
		}
	}

	return &Response{
		Status:     overallStatus,
		Components: components,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
	}
}

// PollerCheck reports the poller healthy while its loop runs.
func PollerCheck(running func() bool) CheckFunc {
	return func(ctx context.Context) ComponentStatus {
		if running == nil || !running() {
			return ComponentStatus{Status: StatusUnhealthy, Message: "poller not running"}
		}
		return ComponentStatus{Status: StatusHealthy, Message: "running"}
	}
}

// UpstreamCheck maps the connection state of the last poll onto a component
// status. The dashboard keeps serving while the upstream is away, so anything
// other than connected is degraded rather than unhealthy.
func UpstreamCheck(snapshot func() state.Snapshot) CheckFunc {
	return func(ctx context.Context) ComponentStatus {
		s := snapshot()
		switch s.Status {
		case state.StatusConnected:
			return ComponentStatus{Status: StatusHealthy, Message: "connected"}
		case state.StatusLoading:
			return ComponentStatus{Status: StatusDegraded, Message: "waiting for first poll"}
		case state.StatusInvalidPayload:
			return ComponentStatus{Status: StatusDegraded, Message: "upstream returned a non-array payload"}
		default:
			msg := "upstream unreachable"
			if s.LastError != "" {
				msg += ": " + s.LastError
			}
			return ComponentStatus{Status: StatusDegraded, Message: msg}
		}
	}
}

// Handler returns an HTTP handler for health checks.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")

		switch response.Status {
		case StatusUnhealthy:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
		}

		json.NewEncoder(w).Encode(response)
	}
}

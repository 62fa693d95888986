package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carbidx/auction-engine/internal/core/ports"
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// ConnectionCounter reports open push-channel subscriptions.
type ConnectionCounter interface {
	Connections() int64
}

// HealthHandler serves the liveness and readiness probes and the admin
// system-health view.
type HealthHandler struct {
	checks map[string]Check
	conns  ConnectionCounter
	clock  ports.Clock
}

func NewHealthHandler(checks map[string]Check, conns ConnectionCounter, clock ports.Clock) *HealthHandler {
	return &HealthHandler{checks: checks, conns: conns, clock: clock}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

type systemHealthResponse struct {
	Status               string                      `json:"status"`
	Dependencies         map[string]dependencyStatus `json:"dependencies"`
	WebsocketConnections int64                       `json:"websocket_connections"`
	Timestamp            time.Time                   `json:"timestamp"`
}

// Liveness handles GET /health. Returns 200 immediately; confirms the process is alive.
//
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Readiness handles GET /health/ready. Pings every configured dependency
// before declaring the service ready.
//
// @Summary      Readiness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  readinessResponse
// @Failure      503  {object}  readinessResponse
// @Router       /health/ready [get]
func (h *HealthHandler) Readiness(c echo.Context) error {
	deps, healthy := h.probe(c.Request().Context())

	status, httpStatus := "ok", http.StatusOK
	if !healthy {
		status, httpStatus = "degraded", http.StatusServiceUnavailable
	}
	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}

// System handles GET /admin/system/health.
//
// @Summary      System health with push-channel load
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  systemHealthResponse
// @Failure      403  {object}  errorResponse
// @Router       /admin/system/health [get]
func (h *HealthHandler) System(c echo.Context) error {
	deps, healthy := h.probe(c.Request().Context())

	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	var conns int64
	if h.conns != nil {
		conns = h.conns.Connections()
	}
	return c.JSON(http.StatusOK, systemHealthResponse{
		Status:               status,
		Dependencies:         deps,
		WebsocketConnections: conns,
		Timestamp:            h.clock.Now(),
	})
}

func (h *HealthHandler) probe(ctx context.Context) (map[string]dependencyStatus, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string]dependencyStatus, len(names))
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			deps[name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		deps[name] = dependencyStatus{Status: "ok"}
	}
	return deps, healthy
}

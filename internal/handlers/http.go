package handlers

import (
	"context"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/harvestlink/harvestlink/internal/api"
)

const (
	serviceVersion     = "1.0.0"
	healthCheckTimeout = 2 * time.Second
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HTTPHandler serves health and metrics endpoints
type HTTPHandler struct {
	checks map[string]HealthCheck
}

// NewHTTPHandler creates a new HTTP handler. A non-nil db is checked on every health probe.
func NewHTTPHandler(db *gorm.DB) *HTTPHandler {
	h := &HTTPHandler{checks: make(map[string]HealthCheck)}
	if db != nil {
		h.AddCheck("database", func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}
	return h
}

// AddCheck registers a dependency probed by GET /health
func (h *HTTPHandler) AddCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// handleHealth answers 200 when every check passes, 503 otherwise
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Version: serviceVersion}
	status := http.StatusOK

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(names))
		}
		if err := h.checks[name](ctx); err != nil {
			log.Printf("Health check: %s unavailable: %v", name, err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	api.RespondJSON(w, status, resp)
}

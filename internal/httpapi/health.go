package httpapi

// Health rendering is grounded on telemetry/health.go's status-by-component
// JSON shape, narrowed from the framework's capability/agent-registry
// concerns to the gateway's three process-singleton dependencies.

import (
	"net/http"
	"time"
)

type livenessResponse struct {
	Status string `json:"status"`
}

type readinessResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

type detailedHealthResponse struct {
	Status      string  `json:"status"`
	Ready       bool    `json:"ready"`
	UptimeSec   float64 `json:"uptime_seconds"`
	Environment string  `json:"environment"`
	Backends    string  `json:"backends"`
}

func (s *Server) registerHealthRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleHealthReady)
	mux.HandleFunc("GET /health/detailed", s.handleHealthDetailed)
}

// handleHealth is a pure liveness probe: the process can answer HTTP at
// all, regardless of backend health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, livenessResponse{Status: "alive"})
}

// handleHealthReady reports 200 only once Ready(true) has been called and
// (when a HealthReporter was wired) the orchestrator's backends are
// reachable.
func (s *Server) handleHealthReady(w http.ResponseWriter, _ *http.Request) {
	ready := s.ready.Load() && (s.reporter == nil || s.reporter.Healthy())
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	state := "ready"
	if !ready {
		state = "not_ready"
	}
	writeJSON(w, status, readinessResponse{Status: state, Ready: ready})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	ready := s.ready.Load() && (s.reporter == nil || s.reporter.Healthy())
	backends := "healthy"
	if !ready {
		backends = "degraded"
	}
	state := "alive"
	if !ready {
		state = "degraded"
	}
	writeJSON(w, http.StatusOK, detailedHealthResponse{
		Status:      state,
		Ready:       ready,
		UptimeSec:   time.Since(s.started).Seconds(),
		Environment: s.cfg.Environment,
		Backends:    backends,
	})
}

package httpapi

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// metricsCollector tracks process-lifetime query counters, grounded on
// telemetry.Registry's atomic-counter shape (Prometheus text
// exposition format, counters kept as plain atomics rather than a full
// client_golang Registry since the gateway owns no custom collectors beyond
// these).
type metricsCollector struct {
	queriesTotal   atomic.Int64
	errorsTotal    atomic.Int64
	totalLatencyNs atomic.Int64
	started        time.Time
}

func newMetricsCollector() *metricsCollector {
	return &metricsCollector{started: time.Now()}
}

func (m *metricsCollector) recordQuery(d time.Duration) {
	m.queriesTotal.Add(1)
	m.totalLatencyNs.Add(d.Nanoseconds())
}

func (m *metricsCollector) recordError() {
	m.errorsTotal.Add(1)
}

type metricsSnapshot struct {
	QueriesTotal     int64   `json:"queries_total"`
	ErrorsTotal      int64   `json:"errors_total"`
	ErrorRate        float64 `json:"error_rate"`
	AvgResponseTime  float64 `json:"avg_response_time_seconds"`
	UptimeSec        float64 `json:"uptime_seconds"`
}

func (m *metricsCollector) snapshot() metricsSnapshot {
	queries := m.queriesTotal.Load()
	errs := m.errorsTotal.Load()
	total := queries + errs

	var errRate, avgLatency float64
	if total > 0 {
		errRate = float64(errs) / float64(total)
	}
	if queries > 0 {
		avgLatency = (time.Duration(m.totalLatencyNs.Load()) / time.Duration(queries)).Seconds()
	}
	return metricsSnapshot{
		QueriesTotal:    queries,
		ErrorsTotal:     errs,
		ErrorRate:       errRate,
		AvgResponseTime: avgLatency,
		UptimeSec:       time.Since(m.started).Seconds(),
	}
}

func (s *Server) registerMetricsRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /metrics", s.handleMetricsJSON)
	mux.HandleFunc("GET /metrics/prometheus", s.handleMetricsPrometheus)
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.snapshot())
}

func (s *Server) handleMetricsPrometheus(w http.ResponseWriter, _ *http.Request) {
	snap := s.metrics.snapshot()
	agentHealthy := 0
	if s.reporter == nil || s.reporter.Healthy() {
		agentHealthy = 1
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP gateway_queries_total Total chat queries served.\n")
	fmt.Fprintf(w, "# TYPE gateway_queries_total counter\n")
	fmt.Fprintf(w, "gateway_queries_total %d\n", snap.QueriesTotal)
	fmt.Fprintf(w, "# HELP gateway_errors_total Total chat queries that errored.\n")
	fmt.Fprintf(w, "# TYPE gateway_errors_total counter\n")
	fmt.Fprintf(w, "gateway_errors_total %d\n", snap.ErrorsTotal)
	fmt.Fprintf(w, "# HELP gateway_error_rate Fraction of requests that errored.\n")
	fmt.Fprintf(w, "# TYPE gateway_error_rate gauge\n")
	fmt.Fprintf(w, "gateway_error_rate %f\n", snap.ErrorRate)
	fmt.Fprintf(w, "# HELP gateway_avg_response_time_seconds Mean chat response latency.\n")
	fmt.Fprintf(w, "# TYPE gateway_avg_response_time_seconds gauge\n")
	fmt.Fprintf(w, "gateway_avg_response_time_seconds %f\n", snap.AvgResponseTime)
	fmt.Fprintf(w, "# HELP gateway_agent_healthy Whether backend agents are reachable.\n")
	fmt.Fprintf(w, "# TYPE gateway_agent_healthy gauge\n")
	fmt.Fprintf(w, "gateway_agent_healthy %d\n", agentHealthy)
}

// Command gateway is the Argo Float Query Gateway's process entry point: it
// loads configuration, wires every component (adapters, LLM client, agents,
// analyzer/refiner, coordinator, orchestrator, router, session store, HTTP
// façade), starts the listener, and shuts everything down on SIGINT/SIGTERM.
// Grounded on the teacher's examples/basic-agent/main.go signal-handling
// shape, generalized from a single framework.Agent to this module's own
// scoped-acquisition discipline (SPEC_FULL.md §9: "no global state beyond
// process-singleton Adapters, Rate Limiter, and Session Store").
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/argofloat/gateway/internal/adapters/graphadapter"
	"github.com/argofloat/gateway/internal/adapters/sqladapter"
	"github.com/argofloat/gateway/internal/adapters/vectoradapter"
	"github.com/argofloat/gateway/internal/agents"
	"github.com/argofloat/gateway/internal/cache"
	"github.com/argofloat/gateway/internal/config"
	"github.com/argofloat/gateway/internal/coordinator"
	"github.com/argofloat/gateway/internal/httpapi"
	"github.com/argofloat/gateway/internal/llm"
	"github.com/argofloat/gateway/internal/logging"
	"github.com/argofloat/gateway/internal/orchestrator"
	"github.com/argofloat/gateway/internal/resilience"
	"github.com/argofloat/gateway/internal/router"
	"github.com/argofloat/gateway/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := setupTracing(cfg)
	if err != nil {
		logger.Warn("tracing disabled", "error", err.Error())
		shutdownTracing = func(context.Context) error { return nil }
	}

	sqlAdapter, err := sqladapter.Open(context.Background(), sqladapter.Config{DSN: cfg.SQLDatabaseURL})
	if err != nil {
		log.Fatalf("sql adapter: %v", err)
	}
	defer sqlAdapter.Close()

	graphAdapter, err := graphadapter.Open(context.Background(), cfg.GraphDatabaseURL, cfg.GraphDatabaseUser, cfg.GraphDatabasePass)
	if err != nil {
		log.Fatalf("graph adapter: %v", err)
	}
	defer graphAdapter.Close(context.Background())

	vectorAdapter, err := vectoradapter.Open(context.Background(), cfg.VectorHost, cfg.VectorPort, cfg.VectorAPIKey, cfg.VectorIndex)
	if err != nil {
		log.Fatalf("vector adapter: %v", err)
	}
	defer vectorAdapter.Close()

	llmClient := llm.NewHTTPClient(
		cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel,
		cfg.CircuitBreakerThreshold, time.Duration(cfg.CircuitBreakerRecoverySeconds)*time.Second,
	)

	breakerFor := func() *resilience.CircuitBreaker {
		return resilience.NewCircuitBreaker(cfg.CircuitBreakerThreshold, time.Duration(cfg.CircuitBreakerRecoverySeconds)*time.Second)
	}

	measurementAgent := agents.NewMeasurementAgent(sqlAdapter, llmClient, breakerFor(), logger)
	metadataAgent := agents.NewMetadataAgent(graphAdapter, llmClient, breakerFor(), logger)
	semanticAgent := agents.NewSemanticAgent(vectorAdapter, breakerFor(), logger)

	synth := coordinator.New(llmClient)
	orch := orchestrator.New(measurementAgent, metadataAgent, semanticAgent, synth, cfg.MaxCycles)

	decisionCache := cache.New(
		time.Duration(cfg.CacheTTLSec)*time.Second,
		cfg.CacheMaxSize,
		time.Duration(cfg.CacheTTLSec)*time.Second,
	)
	defer decisionCache.Close()

	gateRouter := router.New(llmClient, orch, decisionCache)

	sessions := session.New(
		time.Duration(cfg.SessionTimeoutSec)*time.Second,
		cfg.MaxMessagesPerSession,
		time.Duration(cfg.SessionCleanupIntervalSec)*time.Second,
	)
	defer sessions.Close()

	srv := httpapi.NewServer(cfg, gateRouter, sessions, nil, logger)
	srv.Ready(true)

	httpServer := &http.Server{
		Addr:    cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("gateway listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listener stopped", "error", err.Error())
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err.Error())
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err.Error())
	}
}

// setupTracing installs a global TracerProvider, exporting via OTLP-gRPC
// when OTEL_EXPORTER_OTLP_ENDPOINT is set, otherwise to stdout — the two
// exporters named in SPEC_FULL.md §11's domain stack. Returns the
// provider's Shutdown bound as a plain func for deferred use.
func setupTracing(cfg *config.Config) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	var err error

	if cfg.OTLPEndpoint != "" {
		exporter, err = otlptracegrpc.New(context.Background(), otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint), otlptracegrpc.WithInsecure())
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}


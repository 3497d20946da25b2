// Package agents implements the three backend-facing agents of the
// orchestration cycle (Measurement, Metadata, Semantic), grounded on the
// capability-call shape of pkg/orchestration's plan executor: each agent
// takes an Intent and returns a tagged domain.AgentResult, never a bare Go
// error, so the Analyzer can pattern-match on the Kind field uniformly.
package agents

import (
	"context"
	"strings"
	"time"

	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/llm"
	"github.com/argofloat/gateway/internal/logging"
	"github.com/argofloat/gateway/internal/resilience"
)

// SQLQuerier is the capability surface the Measurement Agent depends on;
// implemented by internal/adapters/sqladapter.Adapter.
type SQLQuerier interface {
	Query(ctx context.Context, intent domain.Intent) (*domain.MeasurementResult, error)
	Execute(ctx context.Context, sql string, args ...any) (*domain.MeasurementResult, error)
}

// llmSQLTimeout bounds an LLM-drafted statement's execution, standing in
// for the server-side statement timeout response_agent.py's counterpart
// forces on the generated SQL before running it.
const llmSQLTimeout = 10 * time.Second

// platformListPhrases identifies the "list platform IDs" query family that
// is answered by LLM-drafted SQL rather than the typed query path.
var platformListPhrases = []string{"all float", "float id", "platform number"}

const measurementSQLSystemPrompt = `You translate oceanographic questions into a single read-only SQL statement
against this schema:

  measurements(platform_id text, time timestamptz, lat double precision, lon double precision,
               pressure double precision, temperature double precision, salinity double precision)

Indexes exist on platform_id and time. Return ONLY the SQL statement, no prose, no code fences.
Always include an explicit LIMIT. Select exactly the seven columns platform_id, time, lat, lon,
pressure, temperature, salinity in that order.`

// MeasurementAgent answers parameter/time/space queries against the SQL
// backend. It does not retry internally — refinement is the Orchestrator's
// responsibility (SPEC_FULL.md §4.2).
type MeasurementAgent struct {
	querier SQLQuerier
	llm     llm.Client
	breaker *resilience.CircuitBreaker
	logger  logging.Logger
}

// NewMeasurementAgent wires querier behind a circuit breaker. llmClient may
// be nil, in which case the LLM-drafted-SQL path (SPEC_FULL.md §4.2) is
// disabled and every query is answered by the typed dispatch below.
func NewMeasurementAgent(querier SQLQuerier, llmClient llm.Client, breaker *resilience.CircuitBreaker, logger logging.Logger) *MeasurementAgent {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &MeasurementAgent{querier: querier, llm: llmClient, breaker: breaker, logger: logger}
}

// Run executes the agent for query/intent, returning a tagged result that
// is never a bare error — adapter failures become domain.AgentError values.
func (a *MeasurementAgent) Run(ctx context.Context, query string, intent domain.Intent) domain.AgentResult {
	if !a.breaker.CanExecute() {
		return errorResult(domain.AgentMeasurement, domain.ErrBackendUnavailable, "measurement backend circuit open")
	}

	if a.llm != nil && isPlatformListQuery(query) {
		return a.runLLMSQL(ctx, query)
	}

	if intent.FloatID == "" && intent.SpatialBounds == nil {
		return errorResult(domain.AgentMeasurement, domain.ErrInvalidInput, "MISSING_PARAMS: intent needs a float_id or spatial_bounds")
	}

	result, err := a.querier.Query(ctx, intent)
	if err != nil {
		a.breaker.RecordFailure()
		a.logger.Warn("measurement query failed", "error", err)
		return errorResult(domain.AgentMeasurement, domain.ErrBackendQueryError, err.Error())
	}
	a.breaker.RecordSuccess()
	return domain.AgentResult{Kind: domain.AgentMeasurement, Measurement: result}
}

func (a *MeasurementAgent) runLLMSQL(ctx context.Context, query string) domain.AgentResult {
	sql, err := a.llm.Complete(ctx, measurementSQLSystemPrompt, []llm.Message{{Role: "user", Content: query}}, 0)
	if err != nil {
		a.logger.Warn("measurement sql generation failed", "error", err)
		return errorResult(domain.AgentMeasurement, domain.ErrLLMUnavailable, err.Error())
	}

	execCtx, cancel := context.WithTimeout(ctx, llmSQLTimeout)
	defer cancel()

	result, err := a.querier.Execute(execCtx, sanitizeStatement(sql))
	if err != nil {
		a.breaker.RecordFailure()
		a.logger.Warn("measurement llm-sql execution failed", "error", err)
		return errorResult(domain.AgentMeasurement, domain.ErrBackendQueryError, err.Error())
	}
	a.breaker.RecordSuccess()
	return domain.AgentResult{Kind: domain.AgentMeasurement, Measurement: result}
}

func isPlatformListQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, phrase := range platformListPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// sanitizeStatement strips an LLM reply's markdown code fences, leaving a
// bare statement for the adapter's escape hatch.
func sanitizeStatement(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```sql")
	s = strings.TrimPrefix(s, "```cypher")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func errorResult(kind domain.AgentKind, errKind domain.ErrorKind, msg string) domain.AgentResult {
	return domain.AgentResult{
		Kind: kind,
		Err:  &domain.AgentError{Kind: errKind, Message: msg},
	}
}

package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/llm"
	"github.com/argofloat/gateway/internal/logging"
	"github.com/argofloat/gateway/internal/resilience"
)

// GraphQuerier is the capability surface the Metadata Agent depends on;
// implemented by internal/adapters/graphadapter.Adapter.
type GraphQuerier interface {
	Query(ctx context.Context, intent domain.Intent, regionName string) (*domain.MetadataResult, error)
	RegionHierarchy(ctx context.Context) ([]domain.RegionMetadata, error)
	Execute(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// graphShapedPhrases identifies queries answered by LLM-drafted Cypher
// rather than the typed float/region lookups.
var graphShapedPhrases = []string{"all region", "hierarchy", "float count", "deployment info"}

const metadataCypherSystemPrompt = `You translate oceanographic metadata questions into a single read-only Cypher
statement against this graph:

  (:Float {platform_number, deployed_at, status, institution})-[:LOCATED_IN]->(:Region {name})
  (:Region)-[:PART_OF]->(:Region)

Return ONLY the Cypher statement, no prose, no code fences. Any query that returns a list of
records must include LIMIT 50.`

const metadataListLimit = 50

// MetadataAgent answers float/region metadata queries against the graph
// backend, optionally fetching the region hierarchy when
// flags.metadata_enhanced has been set by the Refiner.
type MetadataAgent struct {
	querier GraphQuerier
	llm     llm.Client
	breaker *resilience.CircuitBreaker
	logger  logging.Logger
}

// NewMetadataAgent wires querier behind a circuit breaker. llmClient may be
// nil, disabling the LLM-drafted-Cypher path (SPEC_FULL.md §4.2).
func NewMetadataAgent(querier GraphQuerier, llmClient llm.Client, breaker *resilience.CircuitBreaker, logger logging.Logger) *MetadataAgent {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &MetadataAgent{querier: querier, llm: llmClient, breaker: breaker, logger: logger}
}

// Run executes the agent for query/intent. regionName is the region name
// resolved by the Router's context extraction, empty when the query named a
// float ID instead of a region.
func (a *MetadataAgent) Run(ctx context.Context, query string, intent domain.Intent, regionName string) domain.AgentResult {
	if !a.breaker.CanExecute() {
		return errorResult(domain.AgentMetadata, domain.ErrBackendUnavailable, "metadata backend circuit open")
	}

	if a.llm != nil && isGraphShapedQuery(query) {
		return a.runLLMCypher(ctx, query)
	}

	result, err := a.querier.Query(ctx, intent, regionName)
	if err != nil {
		a.breaker.RecordFailure()
		a.logger.Warn("metadata query failed", "error", err)
		return errorResult(domain.AgentMetadata, domain.ErrBackendQueryError, err.Error())
	}

	if intent.Flags.MetadataEnhanced {
		regions, err := a.querier.RegionHierarchy(ctx)
		if err != nil {
			a.logger.Warn("region hierarchy fetch failed, continuing without it", "error", err)
		} else {
			result.Regions = regions
		}
	}

	a.breaker.RecordSuccess()
	return domain.AgentResult{Kind: domain.AgentMetadata, Metadata: result}
}

func (a *MetadataAgent) runLLMCypher(ctx context.Context, query string) domain.AgentResult {
	cypher, err := a.llm.Complete(ctx, metadataCypherSystemPrompt, []llm.Message{{Role: "user", Content: query}}, 0)
	if err != nil {
		a.logger.Warn("metadata cypher generation failed", "error", err)
		return errorResult(domain.AgentMetadata, domain.ErrLLMUnavailable, err.Error())
	}

	statement := ensureLimit(sanitizeStatement(cypher), metadataListLimit)
	rows, err := a.querier.Execute(ctx, statement, nil)
	if err != nil {
		a.breaker.RecordFailure()
		a.logger.Warn("metadata llm-cypher execution failed", "error", err)
		return errorResult(domain.AgentMetadata, domain.ErrBackendQueryError, err.Error())
	}
	a.breaker.RecordSuccess()
	return domain.AgentResult{Kind: domain.AgentMetadata, Metadata: metadataResultFromRows(rows)}
}

func isGraphShapedQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, phrase := range graphShapedPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ensureLimit appends a LIMIT clause to cypher when it does not already
// carry one, matching the "mandatory LIMIT 50 for list queries" rule.
func ensureLimit(cypher string, limit int) string {
	if strings.Contains(strings.ToUpper(cypher), "LIMIT") {
		return cypher
	}
	return strings.TrimRight(cypher, "; \n\t") + fmt.Sprintf(" LIMIT %d", limit)
}

// metadataResultFromRows wraps an LLM-Cypher result set as a MetadataResult,
// keeping each row's raw fields available via RegionMetadata.Extra for
// shapes the typed lookups above don't anticipate.
func metadataResultFromRows(rows []map[string]any) *domain.MetadataResult {
	regions := make([]domain.RegionMetadata, 0, len(rows))
	for _, row := range rows {
		regions = append(regions, domain.RegionMetadata{
			Name:         stringField(row, "name", "region"),
			ParentRegion: stringField(row, "parent_region", "parent"),
			FloatCount:   intField(row, "float_count"),
			Extra:        row,
		})
	}
	return &domain.MetadataResult{
		Regions:  regions,
		Summary:  fmt.Sprintf("graph query returned %d rows", len(rows)),
		Count:    len(rows),
		HasCount: true,
	}
}

func stringField(row map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := row[k].(string); ok {
			return s
		}
	}
	return ""
}

func intField(row map[string]any, key string) int {
	switch v := row[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

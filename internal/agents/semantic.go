package agents

import (
	"context"
	"strings"

	"github.com/argofloat/gateway/internal/adapters/vectoradapter"
	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/logging"
	"github.com/argofloat/gateway/internal/resilience"
)

// VectorSearcher is the capability surface the Semantic Agent depends on;
// implemented by internal/adapters/vectoradapter.Adapter.
type VectorSearcher interface {
	Search(ctx context.Context, query string, opts vectoradapter.SearchOptions) (*domain.SemanticResult, error)
}

// SearchOptions is an alias of vectoradapter.SearchOptions, kept so call
// sites in this package read naturally without qualifying the adapter
// import at every use.
type SearchOptions = vectoradapter.SearchOptions

const (
	defaultTopK     = 10
	defaultMinScore = 0.5
	broadenedTopK   = 20
	broadenDelta    = 0.1
)

// SemanticAgent answers free-text similarity queries against the vector
// backend. It passes the query text to the searcher, which computes the
// deterministic embedding (SPEC_FULL.md §9).
type SemanticAgent struct {
	searcher VectorSearcher
	breaker  *resilience.CircuitBreaker
	logger   logging.Logger
}

// NewSemanticAgent wires searcher behind a circuit breaker.
func NewSemanticAgent(searcher VectorSearcher, breaker *resilience.CircuitBreaker, logger logging.Logger) *SemanticAgent {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &SemanticAgent{searcher: searcher, breaker: breaker, logger: logger}
}

// Run executes the agent for query, scoped to regionName when present.
// When intent.Flags.SemanticBroadened is set (via the Refiner's
// broaden_semantic suggestion), the score threshold drops by 0.1 and TopK
// doubles, capped at 20.
func (a *SemanticAgent) Run(ctx context.Context, query string, intent domain.Intent, regionName string) domain.AgentResult {
	if !a.breaker.CanExecute() {
		return errorResult(domain.AgentSemantic, domain.ErrBackendUnavailable, "semantic backend circuit open")
	}

	opts := SearchOptions{TopK: defaultTopK, MinScore: defaultMinScore, Region: regionName}
	if intent.Flags.SemanticBroadened {
		opts.MinScore -= broadenDelta
		if opts.MinScore < 0 {
			opts.MinScore = 0
		}
		opts.TopK *= 2
		if opts.TopK > broadenedTopK {
			opts.TopK = broadenedTopK
		}
	}

	result, err := a.searcher.Search(ctx, strings.TrimSpace(query), opts)
	if err != nil {
		a.breaker.RecordFailure()
		a.logger.Warn("semantic search failed", "error", err)
		return errorResult(domain.AgentSemantic, domain.ErrBackendQueryError, err.Error())
	}
	a.breaker.RecordSuccess()
	return domain.AgentResult{Kind: domain.AgentSemantic, Semantic: result}
}

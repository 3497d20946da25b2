package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/argofloat/gateway/internal/adapters/vectoradapter"
	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/llm"
	"github.com/argofloat/gateway/internal/resilience"
)

type stubSQLQuerier struct {
	result     *domain.MeasurementResult
	err        error
	execSQL    string
	execCalls  int
	queryCalls int
}

func (s *stubSQLQuerier) Query(context.Context, domain.Intent) (*domain.MeasurementResult, error) {
	s.queryCalls++
	return s.result, s.err
}

func (s *stubSQLQuerier) Execute(_ context.Context, sql string, _ ...any) (*domain.MeasurementResult, error) {
	s.execCalls++
	s.execSQL = sql
	return s.result, s.err
}

func TestMeasurementAgentReturnsTaggedSuccess(t *testing.T) {
	agent := NewMeasurementAgent(&stubSQLQuerier{result: &domain.MeasurementResult{Rows: []domain.Measurement{{PlatformID: "1"}}}},
		nil, resilience.NewCircuitBreaker(5, time.Minute), nil)

	result := agent.Run(context.Background(), "temperature near a float", domain.Intent{FloatID: "1"})
	if result.Kind != domain.AgentMeasurement || result.IsError() {
		t.Fatalf("expected successful measurement result, got %+v", result)
	}
	if len(result.Measurement.Rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(result.Measurement.Rows))
	}
}

func TestMeasurementAgentWrapsAdapterErrorAsTaggedError(t *testing.T) {
	agent := NewMeasurementAgent(&stubSQLQuerier{err: errors.New("connection refused")},
		nil, resilience.NewCircuitBreaker(5, time.Minute), nil)

	result := agent.Run(context.Background(), "temperature", domain.Intent{FloatID: "1"})
	if !result.IsError() {
		t.Fatal("expected error result")
	}
	if result.Err.Kind != domain.ErrBackendQueryError {
		t.Errorf("expected ErrBackendQueryError, got %v", result.Err.Kind)
	}
}

func TestMeasurementAgentShortCircuitsWhenBreakerOpen(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(1, time.Hour)
	breaker.RecordFailure()

	stub := &stubSQLQuerier{result: &domain.MeasurementResult{}}
	agent := NewMeasurementAgent(stub, nil, breaker, nil)
	result := agent.Run(context.Background(), "temperature", domain.Intent{FloatID: "1"})
	if !result.IsError() || result.Err.Kind != domain.ErrBackendUnavailable {
		t.Fatalf("expected BACKEND_UNAVAILABLE, got %+v", result)
	}
	if stub.queryCalls+stub.execCalls != 0 {
		t.Errorf("expected adapter never called while breaker open, got %d calls", stub.queryCalls+stub.execCalls)
	}
}

func TestMeasurementAgentRejectsIntentMissingFloatIDAndBounds(t *testing.T) {
	agent := NewMeasurementAgent(&stubSQLQuerier{result: &domain.MeasurementResult{}}, nil, resilience.NewCircuitBreaker(5, time.Minute), nil)

	result := agent.Run(context.Background(), "temperature trends", domain.Intent{})
	if !result.IsError() || result.Err.Kind != domain.ErrInvalidInput {
		t.Fatalf("expected INVALID_INPUT for missing params, got %+v", result)
	}
}

func TestMeasurementAgentDispatchesPlatformListQueriesToLLMSQL(t *testing.T) {
	stub := &stubSQLQuerier{result: &domain.MeasurementResult{Rows: []domain.Measurement{{PlatformID: "42"}}}}
	stubLLM := &llm.Stub{Responses: []string{"```sql\nSELECT platform_id, time, lat, lon, pressure, temperature, salinity FROM measurements LIMIT 50\n```"}}
	agent := NewMeasurementAgent(stub, stubLLM, resilience.NewCircuitBreaker(5, time.Minute), nil)

	result := agent.Run(context.Background(), "list all float IDs", domain.Intent{})
	if result.IsError() {
		t.Fatalf("unexpected error: %+v", result.Err)
	}
	if stub.execCalls != 1 {
		t.Fatalf("expected Execute to be called once, got %d", stub.execCalls)
	}
	if stub.execSQL == "" || stub.execSQL[:3] == "```" {
		t.Errorf("expected sanitized SQL without code fences, got %q", stub.execSQL)
	}
}

type stubVectorSearcher struct {
	captured vectoradapter.SearchOptions
	result   *domain.SemanticResult
}

func (s *stubVectorSearcher) Search(_ context.Context, _ string, opts vectoradapter.SearchOptions) (*domain.SemanticResult, error) {
	s.captured = opts
	return s.result, nil
}

func TestSemanticAgentAppliesBroadenedSearchOptions(t *testing.T) {
	stub := &stubVectorSearcher{result: &domain.SemanticResult{}}
	agent := NewSemanticAgent(stub, resilience.NewCircuitBreaker(5, time.Minute), nil)

	intent := domain.Intent{Flags: domain.IntentFlags{SemanticBroadened: true}}
	agent.Run(context.Background(), "warm water", intent, "")

	if stub.captured.TopK != defaultTopK*2 {
		t.Errorf("expected doubled TopK %d, got %d", defaultTopK*2, stub.captured.TopK)
	}
	if stub.captured.MinScore != defaultMinScore-broadenDelta {
		t.Errorf("expected lowered MinScore %v, got %v", defaultMinScore-broadenDelta, stub.captured.MinScore)
	}
}

func TestSemanticAgentCapsBroadenedTopKAtTwenty(t *testing.T) {
	stub := &stubVectorSearcher{result: &domain.SemanticResult{}}
	agent := NewSemanticAgent(stub, resilience.NewCircuitBreaker(5, time.Minute), nil)

	intent := domain.Intent{Flags: domain.IntentFlags{SemanticBroadened: true}}
	agent.Run(context.Background(), "q", intent, "")
	if stub.captured.TopK > broadenedTopK {
		t.Errorf("expected TopK capped at %d, got %d", broadenedTopK, stub.captured.TopK)
	}
}

type stubGraphQuerier struct {
	result     *domain.MetadataResult
	hierarchy  []domain.RegionMetadata
	execRows   []map[string]any
	execCalls  int
	execCypher string
}

func (s *stubGraphQuerier) Query(context.Context, domain.Intent, string) (*domain.MetadataResult, error) {
	return s.result, nil
}
func (s *stubGraphQuerier) RegionHierarchy(context.Context) ([]domain.RegionMetadata, error) {
	return s.hierarchy, nil
}

func (s *stubGraphQuerier) Execute(_ context.Context, cypher string, _ map[string]any) ([]map[string]any, error) {
	s.execCalls++
	s.execCypher = cypher
	return s.execRows, nil
}

func TestMetadataAgentFetchesHierarchyWhenEnhanced(t *testing.T) {
	stub := &stubGraphQuerier{
		result:    &domain.MetadataResult{},
		hierarchy: []domain.RegionMetadata{{Name: "Arabian Sea"}},
	}
	agent := NewMetadataAgent(stub, nil, resilience.NewCircuitBreaker(5, time.Minute), nil)

	intent := domain.Intent{Flags: domain.IntentFlags{MetadataEnhanced: true}}
	result := agent.Run(context.Background(), "tell me about this float", intent, "Arabian Sea")
	if result.IsError() {
		t.Fatalf("unexpected error: %+v", result.Err)
	}
	if len(result.Metadata.Regions) != 1 {
		t.Errorf("expected region hierarchy to be attached, got %+v", result.Metadata.Regions)
	}
}

func TestMetadataAgentSkipsHierarchyByDefault(t *testing.T) {
	stub := &stubGraphQuerier{result: &domain.MetadataResult{}, hierarchy: []domain.RegionMetadata{{Name: "x"}}}
	agent := NewMetadataAgent(stub, nil, resilience.NewCircuitBreaker(5, time.Minute), nil)

	result := agent.Run(context.Background(), "float status", domain.Intent{}, "")
	if len(result.Metadata.Regions) != 0 {
		t.Error("expected no hierarchy fetch when metadata_enhanced is unset")
	}
}

func TestMetadataAgentDispatchesGraphShapedQueriesToLLMCypher(t *testing.T) {
	stub := &stubGraphQuerier{execRows: []map[string]any{{"region": "Arabian Sea", "float_count": int64(4)}}}
	stubLLM := &llm.Stub{Responses: []string{"```cypher\nMATCH (r:Region) RETURN r.name AS region\n```"}}
	agent := NewMetadataAgent(stub, stubLLM, resilience.NewCircuitBreaker(5, time.Minute), nil)

	result := agent.Run(context.Background(), "show me the region hierarchy", domain.Intent{}, "")
	if result.IsError() {
		t.Fatalf("unexpected error: %+v", result.Err)
	}
	if stub.execCalls != 1 {
		t.Fatalf("expected Execute to be called once, got %d", stub.execCalls)
	}
	if result.Metadata.Count != 1 {
		t.Errorf("expected count 1, got %d", result.Metadata.Count)
	}
	if !strings.Contains(strings.ToUpper(stub.execCypher), "LIMIT") {
		t.Errorf("expected a mandatory LIMIT to be appended, got %q", stub.execCypher)
	}
}

// Package orchestrator runs the cyclic state machine that drives a single
// query from raw text to a synthesized response, grounded directly on
// agent/cyclic_multi_agent.py's CyclicAgentState/StateGraph (parse_intent
// -> execute_agents -> analyze_quality -> should_refine -> {refine_intent,
// synthesize_response}), re-architected per SPEC_FULL.md §4.6/§REDESIGN
// FLAGS as a plain, inspectable state machine instead of a graph-builder
// runtime.
package orchestrator

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/argofloat/gateway/internal/analyzer"
	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/refiner"
	"github.com/argofloat/gateway/internal/vocabulary"
)

var tracer = otel.Tracer("gateway/orchestrator")

// MeasurementRunner is the capability surface the Orchestrator needs from
// the Measurement Agent.
type MeasurementRunner interface {
	Run(ctx context.Context, query string, intent domain.Intent) domain.AgentResult
}

// MetadataRunner is the capability surface the Orchestrator needs from the
// Metadata Agent.
type MetadataRunner interface {
	Run(ctx context.Context, query string, intent domain.Intent, regionName string) domain.AgentResult
}

// SemanticRunner is the capability surface the Orchestrator needs from the
// Semantic Agent.
type SemanticRunner interface {
	Run(ctx context.Context, query string, intent domain.Intent, regionName string) domain.AgentResult
}

// Synthesizer is the capability surface the Orchestrator needs from the
// Coordinator.
type Synthesizer interface {
	Compose(ctx context.Context, query string, results map[domain.AgentKind]domain.AgentResult) (domain.CoordinatorResponse, error)
}

// Orchestrator wires the three agents, the Analyzer, the Refiner and the
// Coordinator into the bounded refinement cycle of SPEC_FULL.md §4.6.
type Orchestrator struct {
	measurement MeasurementRunner
	metadata    MetadataRunner
	semantic    SemanticRunner
	synthesizer Synthesizer
	maxCycles   int
}

// New builds an Orchestrator. maxCycles <= 0 falls back to the spec's
// default of 3.
func New(measurement MeasurementRunner, metadata MetadataRunner, semantic SemanticRunner, synthesizer Synthesizer, maxCycles int) *Orchestrator {
	if maxCycles <= 0 {
		maxCycles = defaultMaxCycles
	}
	return &Orchestrator{
		measurement: measurement,
		metadata:    metadata,
		semantic:    semantic,
		synthesizer: synthesizer,
		maxCycles:   maxCycles,
	}
}

const defaultMaxCycles = 3

// Run drives one query through parse_intent -> execute_agents -> analyze ->
// decide, looping through refine -> execute_agents up to maxCycles times,
// then synthesize. onEvent may be nil; when set, it is called once per
// state transition so a façade can relay real cycle progress (§13 Open
// Question 3). The region name (when the query named one) is resolved by
// parse_intent itself and threaded through to the Metadata/Semantic agents.
func (o *Orchestrator) Run(ctx context.Context, query string, onEvent domain.ProgressFunc) (domain.CoordinatorResponse, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Run")
	defer span.End()

	emit := func(state domain.OrchestratorState, cycle int, detail string) {
		span.AddEvent(string(state), trace.WithAttributes(attribute.Int("cycle_index", cycle)))
		if onEvent != nil {
			onEvent(domain.ProgressEvent{State: state, CycleIndex: cycle, Detail: detail})
		}
	}

	emit(domain.StateParseIntent, 0, "")
	intent, regionName, err := ParseIntent(query)
	if err != nil {
		emit(domain.StateError, 0, err.Error())
		return domain.CoordinatorResponse{}, err
	}

	cycle := domain.CycleState{CycleIndex: 0, Intent: intent}

	for {
		emit(domain.StateExecuteAgents, cycle.CycleIndex, "")
		cycle.ResultsByKind = o.executeAgents(ctx, query, cycle.Intent, regionName)

		emit(domain.StateAnalyze, cycle.CycleIndex, "")
		analysis := analyzer.Analyze(query, cycle.ResultsByKind)
		cycle.Analysis = &analysis

		emit(domain.StateDecide, cycle.CycleIndex, "")
		if !analysis.NeedsRefinement || cycle.CycleIndex >= o.maxCycles {
			break
		}

		emit(domain.StateRefine, cycle.CycleIndex, "")
		cycle.Intent = refiner.Refine(cycle.Intent, analysis.Suggestions)
		cycle.CycleIndex++
	}

	emit(domain.StateSynthesize, cycle.CycleIndex, "")
	response, err := o.synthesizer.Compose(ctx, query, cycle.ResultsByKind)
	if err != nil {
		emit(domain.StateError, cycle.CycleIndex, err.Error())
		return domain.CoordinatorResponse{}, err
	}
	response.CycleCount = cycle.CycleIndex
	for kind := range cycle.ResultsByKind {
		response.AgentsUsed = append(response.AgentsUsed, kind)
	}

	emit(domain.StateDone, cycle.CycleIndex, "")
	return response, nil
}

// executeAgents runs every agent enabled in intent.AgentMask concurrently;
// a fresh AgentResult always overwrites the prior one for that agent kind,
// and one agent's failure never blocks the others (§4.6 invariants).
func (o *Orchestrator) executeAgents(ctx context.Context, query string, intent domain.Intent, regionName string) map[domain.AgentKind]domain.AgentResult {
	results := make(map[domain.AgentKind]domain.AgentResult, intent.AgentMask.PopCount())
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(r domain.AgentResult) {
		mu.Lock()
		results[r.Kind] = r
		mu.Unlock()
	}

	if intent.AgentMask.Has(domain.AgentMeasurement) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(o.measurement.Run(ctx, query, intent))
		}()
	}
	if intent.AgentMask.Has(domain.AgentMetadata) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(o.metadata.Run(ctx, query, intent, regionName))
		}()
	}
	if intent.AgentMask.Has(domain.AgentSemantic) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(o.semantic.Run(ctx, query, intent, regionName))
		}()
	}

	wg.Wait()
	return results
}

var floatIDPattern = regexp.MustCompile(`float (\d+)`)

// voc is the closed vocabulary driving spatial-intent resolution and agent
// activation, loaded from vocabulary's embedded YAML rather than hand-written
// Go maps (SPEC_FULL.md §9: "this is policy, not code"). The five-region
// vocabulary vocabulary.Vocabulary.SessionRegions covers session-context
// tracking, a separate concern with no bounding boxes attached — ParseIntent
// uses only SpatialRegions, which preserves the original's four-region
// bounding-box dict and its iteration order for first-match semantics.
var voc = vocabulary.Default()

// ParseIntent extracts a float ID, a region bounding box (plus its
// title-cased name), and the agent activation mask from query, matching
// parse_intent's regex/keyword rules. A query naming no specific indicator
// activates all three agents.
func ParseIntent(query string) (domain.Intent, string, error) {
	lower := strings.ToLower(query)

	var floatID string
	if m := floatIDPattern.FindStringSubmatch(lower); m != nil {
		floatID = m[1]
	}

	var bounds *domain.SpatialBounds
	var regionName string
	for _, region := range voc.SpatialRegions {
		if strings.Contains(lower, region.Name) {
			bounds = &domain.SpatialBounds{
				MinLat: region.MinLat, MaxLat: region.MaxLat,
				MinLon: region.MinLon, MaxLon: region.MaxLon,
			}
			regionName = titleCase(region.Name)
			break
		}
	}

	needsMeasurement := containsAny(lower, voc.MeasurementKeywords)
	needsMetadata := containsAny(lower, voc.MetadataKeywords)
	needsSemantic := containsAny(lower, voc.SemanticKeywords)
	if !needsMeasurement && !needsMetadata && !needsSemantic {
		needsMeasurement, needsMetadata, needsSemantic = true, true, true
	}

	var mask domain.AgentMask
	if needsMeasurement {
		mask = mask.Set(domain.AgentMeasurement)
	}
	if needsMetadata {
		mask = mask.Set(domain.AgentMetadata)
	}
	if needsSemantic {
		mask = mask.Set(domain.AgentSemantic)
	}

	return domain.Intent{
		FloatID:       floatID,
		SpatialBounds: bounds,
		AgentMask:     mask,
	}, regionName, nil
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// titleCase capitalizes the first letter of each word, matching Python's
// str.title() for the vocabulary's spatial_regions names (all lowercase ASCII
// words, so this needs no locale handling).
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Package analyzer scores a cycle's agent results and recommends bounded
// refinements, grounded directly on SPEC_FULL.md §4.3's formulas. It is pure
// — the same result bundle always yields the same score vector (testable
// property #8) — and never mutates the intent; only the Refiner does that.
package analyzer

import (
	"strings"

	"github.com/argofloat/gateway/internal/domain"
)

const qualityThreshold = 0.7

// keyword families used to decide which agents a query "demanded", for the
// completeness sub-score. Kept as plain data rather than a regex engine —
// SPEC_FULL.md §9 treats this vocabulary as policy, not code.
var demandKeywords = map[domain.AgentKind][]string{
	domain.AgentMeasurement: {"temperature", "salinity", "pressure", "measurement", "profile"},
	domain.AgentMetadata:    {"metadata", "instrument", "parameter", "deployment", "coverage"},
	domain.AgentSemantic:    {"similar", "pattern", "compare", "find", "anomal"},
}

// Analyze scores cycle's results and decides whether another refinement
// cycle is warranted.
func Analyze(query string, results map[domain.AgentKind]domain.AgentResult) domain.Analysis {
	measurementQuality := scoreMeasurement(results[domain.AgentMeasurement])
	metadataQuality := scoreMetadata(results[domain.AgentMetadata])
	semanticQuality := scoreSemantic(results[domain.AgentSemantic])
	completeness := scoreCompleteness(query, results)

	// overall averages only the sub-scores of agents that actually ran, plus
	// completeness, rather than unconditionally dividing by four: a query
	// that activates a single agent must not be structurally capped at 0.5
	// by two sub-scores that are 0 only because those agents were never
	// asked to run.
	sum := completeness
	count := 1
	if _, ok := results[domain.AgentMeasurement]; ok {
		sum += measurementQuality
		count++
	}
	if _, ok := results[domain.AgentMetadata]; ok {
		sum += metadataQuality
		count++
	}
	if _, ok := results[domain.AgentSemantic]; ok {
		sum += semanticQuality
		count++
	}
	overall := sum / float64(count)

	suggestions := suggest(results, measurementQuality, metadataQuality, semanticQuality)

	return domain.Analysis{
		MeasurementQuality: measurementQuality,
		MetadataQuality:    metadataQuality,
		SemanticQuality:    semanticQuality,
		Completeness:       completeness,
		Overall:            overall,
		Suggestions:        suggestions,
		NeedsRefinement:    overall < qualityThreshold || len(suggestions) > 0,
	}
}

func scoreMeasurement(result domain.AgentResult) float64 {
	if result.Measurement == nil || result.IsError() {
		return 0
	}
	m := result.Measurement
	// Summed in tenths so that all four indicators give exactly 1.0.
	var tenths int
	if len(m.Rows) > 0 {
		tenths += 4
	}
	if len(m.Stats) > 0 {
		tenths += 3
	}
	if m.TimeRange != nil {
		tenths += 2
	}
	if m.Bounds != nil {
		tenths++
	}
	return float64(tenths) / 10
}

func scoreMetadata(result domain.AgentResult) float64 {
	if result.Metadata == nil || result.IsError() {
		return 0
	}
	m := result.Metadata
	var score float64
	if m.Float != nil || m.Region != nil || len(m.Floats) > 0 || len(m.Regions) > 0 {
		score += 0.5
	}
	if m.Summary != "" {
		score += 0.3
	}
	if m.HasCount {
		score += 0.2
	}
	return score
}

func scoreSemantic(result domain.AgentResult) float64 {
	if result.Semantic == nil || result.IsError() {
		return 0
	}
	hits := result.Semantic.Hits
	if len(hits) == 0 {
		return 0
	}
	var score float64 = 0.6
	for _, h := range hits {
		if len(h.Metadata) > 0 {
			score += 0.4
			break
		}
	}
	return score
}

func scoreCompleteness(query string, results map[domain.AgentKind]domain.AgentResult) float64 {
	demanded := demandedAgents(query)
	if len(demanded) == 0 {
		return 1
	}
	satisfied := 0
	for _, kind := range demanded {
		if r, ok := results[kind]; ok && !r.IsError() {
			satisfied++
		}
	}
	return float64(satisfied) / float64(len(demanded))
}

func demandedAgents(query string) []domain.AgentKind {
	lower := strings.ToLower(query)
	var demanded []domain.AgentKind
	for _, kind := range []domain.AgentKind{domain.AgentMeasurement, domain.AgentMetadata, domain.AgentSemantic} {
		for _, kw := range demandKeywords[kind] {
			if strings.Contains(lower, kw) {
				demanded = append(demanded, kind)
				break
			}
		}
	}
	return demanded
}

func suggest(results map[domain.AgentKind]domain.AgentResult, measurementQuality, metadataQuality, semanticQuality float64) []domain.Suggestion {
	var suggestions []domain.Suggestion

	if r, ok := results[domain.AgentMeasurement]; ok && measurementQuality < qualityThreshold && !r.IsError() && (r.Measurement == nil || len(r.Measurement.Rows) == 0) {
		suggestions = append(suggestions, domain.SuggestExpandSpatial)
		suggestions = append(suggestions, domain.SuggestExpandTemporal)
	}
	if r, ok := results[domain.AgentSemantic]; ok && semanticQuality < qualityThreshold && !r.IsError() {
		suggestions = append(suggestions, domain.SuggestBroadenSemantic)
	}
	if r, ok := results[domain.AgentMetadata]; ok && metadataQuality < qualityThreshold && !r.IsError() {
		suggestions = append(suggestions, domain.SuggestEnhanceMetadata)
	}

	return suggestions
}

package analyzer

import (
	"testing"

	"github.com/argofloat/gateway/internal/domain"
)

func TestAnalyzeIsPure(t *testing.T) {
	results := map[domain.AgentKind]domain.AgentResult{
		domain.AgentMeasurement: {
			Kind: domain.AgentMeasurement,
			Measurement: &domain.MeasurementResult{
				Rows:      []domain.Measurement{{PlatformID: "1"}},
				Stats:     map[domain.Parameter]domain.Stats{domain.ParamTemperature: {Mean: 1}},
				TimeRange: &domain.TemporalBounds{},
				Bounds:    &domain.SpatialBounds{},
			},
		},
	}
	a1 := Analyze("temperature readings", results)
	a2 := Analyze("temperature readings", results)
	if a1.Overall != a2.Overall || a1.MeasurementQuality != a2.MeasurementQuality ||
		a1.NeedsRefinement != a2.NeedsRefinement || len(a1.Suggestions) != len(a2.Suggestions) {
		t.Errorf("expected identical analysis for identical input, got %+v vs %+v", a1, a2)
	}
}

func TestMeasurementQualityFullScore(t *testing.T) {
	results := map[domain.AgentKind]domain.AgentResult{
		domain.AgentMeasurement: {
			Kind: domain.AgentMeasurement,
			Measurement: &domain.MeasurementResult{
				Rows:      []domain.Measurement{{PlatformID: "1"}},
				Stats:     map[domain.Parameter]domain.Stats{domain.ParamTemperature: {}},
				TimeRange: &domain.TemporalBounds{},
				Bounds:    &domain.SpatialBounds{},
			},
		},
	}
	a := Analyze("temperature", results)
	if a.MeasurementQuality != 1.0 {
		t.Errorf("expected full measurement score 1.0, got %v", a.MeasurementQuality)
	}
}

func TestErroredAgentScoresZero(t *testing.T) {
	results := map[domain.AgentKind]domain.AgentResult{
		domain.AgentMeasurement: {Kind: domain.AgentMeasurement, Err: &domain.AgentError{Kind: domain.ErrBackendUnavailable}},
	}
	a := Analyze("temperature", results)
	if a.MeasurementQuality != 0 {
		t.Errorf("expected 0 for errored agent, got %v", a.MeasurementQuality)
	}
}

func TestNeedsRefinementWhenBelowThreshold(t *testing.T) {
	a := Analyze("temperature", map[domain.AgentKind]domain.AgentResult{})
	if !a.NeedsRefinement {
		t.Error("expected needs_refinement true for empty results")
	}
}

func TestSuggestsExpandSpatialAndTemporalWhenMeasurementEmpty(t *testing.T) {
	results := map[domain.AgentKind]domain.AgentResult{
		domain.AgentMeasurement: {Kind: domain.AgentMeasurement, Measurement: &domain.MeasurementResult{}},
	}
	a := Analyze("temperature", results)
	found := map[domain.Suggestion]bool{}
	for _, s := range a.Suggestions {
		found[s] = true
	}
	if !found[domain.SuggestExpandSpatial] || !found[domain.SuggestExpandTemporal] {
		t.Errorf("expected expand_spatial and expand_temporal suggestions, got %v", a.Suggestions)
	}
}

func TestCompletenessIsOneWhenNoAgentDemanded(t *testing.T) {
	a := Analyze("hello", map[domain.AgentKind]domain.AgentResult{})
	if a.Completeness != 1 {
		t.Errorf("expected completeness 1 for non-demanding query, got %v", a.Completeness)
	}
}

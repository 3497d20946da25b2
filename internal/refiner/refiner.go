// Package refiner applies the Analyzer's suggestions to a copy of the
// current intent, grounded directly on SPEC_FULL.md §4.4. It never mutates
// the intent it is given.
package refiner

import "github.com/argofloat/gateway/internal/domain"

const spatialExpansionDegrees = 2.0
const temporalWidenFactor = 0.5

// Refine applies each suggestion in order to a clone of intent and returns
// the refined copy; the original is left untouched.
func Refine(intent domain.Intent, suggestions []domain.Suggestion) domain.Intent {
	refined := intent.Clone()
	for _, s := range suggestions {
		switch s {
		case domain.SuggestExpandSpatial:
			expandSpatial(&refined)
		case domain.SuggestExpandTemporal:
			expandTemporal(&refined)
		case domain.SuggestBroadenSemantic:
			refined.Flags.SemanticBroadened = true
		case domain.SuggestEnhanceMetadata:
			refined.Flags.MetadataEnhanced = true
		}
	}
	return refined
}

// expandSpatial grows the bounding box by 2 degrees on each side, clamped
// to global lat/lon limits. A nil bounding box is left nil — there is
// nothing to expand without an existing box.
func expandSpatial(intent *domain.Intent) {
	if intent.SpatialBounds == nil {
		return
	}
	b := *intent.SpatialBounds
	b.MinLat = clamp(b.MinLat-spatialExpansionDegrees, domain.GlobalMinLat, domain.GlobalMaxLat)
	b.MaxLat = clamp(b.MaxLat+spatialExpansionDegrees, domain.GlobalMinLat, domain.GlobalMaxLat)
	b.MinLon = clamp(b.MinLon-spatialExpansionDegrees, domain.GlobalMinLon, domain.GlobalMaxLon)
	b.MaxLon = clamp(b.MaxLon+spatialExpansionDegrees, domain.GlobalMinLon, domain.GlobalMaxLon)
	intent.SpatialBounds = &b
}

// expandTemporal widens the temporal window by 50% on each side when a
// temporal bound exists; a no-op otherwise. This is a deliberate departure
// from the original system, which treats expand_temporal as a no-op
// unconditionally — see SPEC_FULL.md §13 Open Question 4.
func expandTemporal(intent *domain.Intent) {
	if intent.TemporalBounds == nil {
		return
	}
	t := *intent.TemporalBounds
	span := t.End.Sub(t.Start)
	pad := span / 2 // widen by 50% of the span on each side == half the span
	t.Start = t.Start.Add(-pad)
	t.End = t.End.Add(pad)
	intent.TemporalBounds = &t
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

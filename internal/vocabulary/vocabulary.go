// Package vocabulary loads the closed vocabulary that drives intent parsing
// and session-context extraction (region names and bounding boxes, tracked
// parameters, keyword families) from YAML rather than hand-written Go maps,
// per SPEC_FULL.md §9's design note that this vocabulary is policy, not
// code. Grounded on the teacher's own use of gopkg.in/yaml.v3 for
// configuration-shaped data.
package vocabulary

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Region is one named spatial bounding box candidate for intent parsing.
type Region struct {
	Name   string  `yaml:"name"`
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// Vocabulary is the full closed vocabulary used across intent parsing and
// session-context extraction.
type Vocabulary struct {
	SpatialRegions      []Region `yaml:"spatial_regions"`
	SessionRegions      []string `yaml:"session_regions"`
	Parameters          []string `yaml:"parameters"`
	MeasurementKeywords []string `yaml:"measurement_keywords"`
	MetadataKeywords    []string `yaml:"metadata_keywords"`
	SemanticKeywords    []string `yaml:"semantic_keywords"`
}

//go:embed vocabulary.yaml
var defaultYAML []byte

// Default returns the vocabulary compiled into the binary. It panics if the
// embedded file fails to parse, which would indicate a build-time defect,
// not a runtime condition callers should handle.
func Default() *Vocabulary {
	v, err := Parse(defaultYAML)
	if err != nil {
		panic("vocabulary: embedded default failed to parse: " + err.Error())
	}
	return v
}

// Parse decodes a vocabulary document, for callers that load an override
// file instead of the compiled-in default.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("vocabulary: parse: %w", err)
	}
	return &v, nil
}

package vocabulary

import "testing"

func TestDefaultLoadsWithoutPanicking(t *testing.T) {
	v := Default()
	if len(v.SpatialRegions) == 0 {
		t.Fatal("expected spatial regions to be populated")
	}
}

func TestDefaultSpatialRegionsMatchExpectedBounds(t *testing.T) {
	v := Default()
	want := map[string]Region{
		"arabian sea":             {Name: "arabian sea", MinLat: 10, MaxLat: 25, MinLon: 55, MaxLon: 75},
		"bay of bengal":           {Name: "bay of bengal", MinLat: 10, MaxLat: 25, MinLon: 80, MaxLon: 95},
		"equatorial indian ocean": {Name: "equatorial indian ocean", MinLat: -5, MaxLat: 5, MinLon: 40, MaxLon: 80},
		"southern indian ocean":   {Name: "southern indian ocean", MinLat: -40, MaxLat: -20, MinLon: 20, MaxLon: 80},
	}
	if len(v.SpatialRegions) != len(want) {
		t.Fatalf("got %d spatial regions, want %d", len(v.SpatialRegions), len(want))
	}
	for _, got := range v.SpatialRegions {
		w, ok := want[got.Name]
		if !ok {
			t.Fatalf("unexpected region %q", got.Name)
		}
		if got != w {
			t.Errorf("region %q: got %+v, want %+v", got.Name, got, w)
		}
	}
}

func TestDefaultKeywordFamiliesArePopulated(t *testing.T) {
	v := Default()
	for name, list := range map[string][]string{
		"session_regions":      v.SessionRegions,
		"parameters":           v.Parameters,
		"measurement_keywords": v.MeasurementKeywords,
		"metadata_keywords":    v.MetadataKeywords,
		"semantic_keywords":    v.SemanticKeywords,
	} {
		if len(list) == 0 {
			t.Errorf("%s: expected at least one entry", name)
		}
	}
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("spatial_regions: [this is not: valid: yaml"))
	if err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

func TestParseRoundTripsAnOverrideDocument(t *testing.T) {
	doc := []byte(`
spatial_regions:
  - name: "test sea"
    min_lat: 1
    max_lat: 2
    min_lon: 3
    max_lon: 4
session_regions: ["test sea"]
parameters: ["chlorophyll"]
measurement_keywords: ["reading"]
metadata_keywords: ["sensor"]
semantic_keywords: ["cluster"]
`)
	v, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(v.SpatialRegions) != 1 || v.SpatialRegions[0].Name != "test sea" {
		t.Fatalf("got %+v", v.SpatialRegions)
	}
	if v.Parameters[0] != "chlorophyll" {
		t.Fatalf("got parameters %v", v.Parameters)
	}
}

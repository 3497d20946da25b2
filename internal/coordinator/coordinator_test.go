package coordinator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/llm"
)

func floatPtr(v float64) *float64 { return &v }

func measurementRows(n int) []domain.Measurement {
	rows := make([]domain.Measurement, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = domain.Measurement{
			PlatformID:  "platform-1",
			Time:        base.Add(time.Duration(i) * time.Hour),
			Lat:         10 + float64(i)*0.01,
			Lon:         55 + float64(i)*0.01,
			Temperature: floatPtr(20 + float64(i)*0.1),
			Pressure:    floatPtr(100 + float64(i)),
		}
	}
	return rows
}

func TestComposeReturnsSampleAndNoteWhenOverThresholdWithoutFullDataRequest(t *testing.T) {
	stub := &llm.Stub{Responses: []string{"narrative"}}
	c := New(stub)
	results := map[domain.AgentKind]domain.AgentResult{
		domain.AgentMeasurement: {
			Kind:        domain.AgentMeasurement,
			Measurement: &domain.MeasurementResult{Rows: measurementRows(150)},
		},
	}

	resp, err := c.Compose(context.Background(), "show me temperature", results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Truncated {
		t.Error("expected truncated response for 150 rows without a full-data request")
	}
	if resp.RowCount != 150 {
		t.Errorf("expected row count 150, got %d", resp.RowCount)
	}
	if !strings.Contains(resp.Narrative, "sample of the first 10 rows") {
		t.Errorf("expected sample note in narrative, got %q", resp.Narrative)
	}
	if len(stub.Captured) != 0 {
		t.Error("expected the LLM not to be called on the oversized-sample path")
	}
}

func TestComposeEmitsFullTableUpToHardCapWhenRequested(t *testing.T) {
	stub := &llm.Stub{Responses: []string{"here is the full data"}}
	c := New(stub)
	results := map[domain.AgentKind]domain.AgentResult{
		domain.AgentMeasurement: {
			Kind:        domain.AgentMeasurement,
			Measurement: &domain.MeasurementResult{Rows: measurementRows(1500)},
		},
	}

	resp, err := c.Compose(context.Background(), "give me all data for this float", results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Truncated {
		t.Error("expected hard-cap truncation flag for 1500 rows")
	}
	if resp.RowCount != 1500 {
		t.Errorf("expected row count 1500, got %d", resp.RowCount)
	}
	rowLines := strings.Count(resp.Narrative, "platform-1")
	if rowLines != 1000 {
		t.Errorf("expected exactly 1000 table rows, got %d", rowLines)
	}
	if len(stub.Captured) != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", len(stub.Captured))
	}
}

func TestComposeCallsLLMForSmallResultSets(t *testing.T) {
	stub := &llm.Stub{Responses: []string{"a calm summary"}}
	c := New(stub)
	results := map[domain.AgentKind]domain.AgentResult{
		domain.AgentMeasurement: {
			Kind:        domain.AgentMeasurement,
			Measurement: &domain.MeasurementResult{Rows: measurementRows(5)},
		},
	}

	resp, err := c.Compose(context.Background(), "temperature near the equator", results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Narrative != "a calm summary" {
		t.Errorf("expected narrative to be the LLM response, got %q", resp.Narrative)
	}
	if resp.Truncated {
		t.Error("did not expect truncation for 5 rows")
	}
}

func TestComposeReturnsErrorWhenAllAgentsErrored(t *testing.T) {
	stub := &llm.Stub{Responses: []string{"unused"}}
	c := New(stub)
	results := map[domain.AgentKind]domain.AgentResult{
		domain.AgentMeasurement: {Kind: domain.AgentMeasurement, Err: &domain.AgentError{Kind: domain.ErrBackendQueryError, Message: "query failed"}},
		domain.AgentSemantic:    {Kind: domain.AgentSemantic, Err: &domain.AgentError{Kind: domain.ErrBackendUnavailable, Message: "vector store down"}},
	}

	_, err := c.Compose(context.Background(), "temperature", results)
	if err == nil {
		t.Fatal("expected an error when every agent errored")
	}
	agentErr, ok := err.(domain.AgentError)
	if !ok {
		t.Fatalf("expected a domain.AgentError, got %T", err)
	}
	if agentErr.Kind != domain.ErrBackendUnavailable {
		t.Errorf("expected the more severe BACKEND_UNAVAILABLE to win, got %s", agentErr.Kind)
	}
	if len(stub.Captured) != 0 {
		t.Error("expected the LLM not to be called when every agent errored")
	}
}

func TestComposeSurfacesPartialSuccessWhenOneAgentSucceeded(t *testing.T) {
	stub := &llm.Stub{Responses: []string{"partial narrative"}}
	c := New(stub)
	results := map[domain.AgentKind]domain.AgentResult{
		domain.AgentMeasurement: {Kind: domain.AgentMeasurement, Measurement: &domain.MeasurementResult{Rows: measurementRows(2)}},
		domain.AgentSemantic:    {Kind: domain.AgentSemantic, Err: &domain.AgentError{Kind: domain.ErrBackendUnavailable, Message: "down"}},
	}

	resp, err := c.Compose(context.Background(), "temperature", results)
	if err != nil {
		t.Fatalf("expected partial success, got error: %v", err)
	}
	if resp.Narrative != "partial narrative" {
		t.Errorf("expected narrative from LLM, got %q", resp.Narrative)
	}
}

func TestBuildVisualizationsEmitsChartsSupportedByAvailableFields(t *testing.T) {
	viz := buildVisualizations(measurementRows(20))
	types := map[domain.ChartType]bool{}
	for _, v := range viz {
		types[v.Type] = true
	}
	for _, want := range []domain.ChartType{
		domain.ChartLine, domain.ChartArea, domain.ChartScatter, domain.ChartMapPoints,
		domain.ChartHeatmap, domain.ChartScatter3D,
	} {
		if !types[want] {
			t.Errorf("expected chart type %s to be present, got %v", want, types)
		}
	}
	// 20 rows exceed barPlatformCap (10), so the bar-chart path runs on the
	// populated platform id.
	if !types[domain.ChartBar] {
		t.Error("expected a bar chart for >10 rows with a populated platform id")
	}
}

func TestBuildVisualizationsReturnsNilWithoutRows(t *testing.T) {
	if viz := buildVisualizations(nil); viz != nil {
		t.Errorf("expected nil visualizations for empty rows, got %v", viz)
	}
}

func TestBuildVisualizationsSkipsComposedWithoutBothMetrics(t *testing.T) {
	rows := []domain.Measurement{{PlatformID: "p", Time: time.Now(), Temperature: floatPtr(20)}}
	viz := buildVisualizations(rows)
	for _, v := range viz {
		if v.Type == domain.ChartComposed {
			t.Error("did not expect a composed chart without both temperature and salinity")
		}
	}
}

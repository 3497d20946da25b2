// Package coordinator synthesizes the final response from a cycle's agent
// results, grounded on backend-chatbot/agents/response_agent.py's
// format_response and _build_visualization_block. It owns the two
// presentation rules from SPEC_FULL.md §4.5 (sample-and-note for oversized
// result sets, hard-capped full table on request) and the partial-success
// rule from §7: narrative synthesis is skipped — and an error returned
// instead — only when every dispatched agent errored.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/llm"
)

const (
	sampleRowCap         = 10
	truncationThreshold  = 100
	hardRowCap           = 1000
	narrativeTemperature = 0.3
)

var fullDataPhrases = []string{
	"all data", "whole data", "complete data", "full data", "all measurements",
}

const systemPrompt = `You are an expert oceanographer presenting data analysis results to users.
Provide a direct, focused answer to the user's question. Use markdown tables for numerical
data, **bold** for emphasis, and ### for section headings. Keep the response concise and
actionable; do not add a generic "Recommendations" or "Further Investigation" section unless
asked. Round measurements to 2-4 decimal places and lat/lon to 4-5, and include units
(degrees C, PSU, dbar) where relevant.`

// Coordinator composes the user-facing narrative and visualization block
// from one cycle's agent results.
type Coordinator struct {
	llm llm.Client
}

// New builds a Coordinator backed by the given LLM client.
func New(client llm.Client) *Coordinator {
	return &Coordinator{llm: client}
}

// Compose synthesizes the response for query given results. It returns the
// most severe agent error, unmodified, when every agent in results errored.
func (c *Coordinator) Compose(ctx context.Context, query string, results map[domain.AgentKind]domain.AgentResult) (domain.CoordinatorResponse, error) {
	if worst, allErrored := mostSevereIfAllErrored(results); allErrored {
		return domain.CoordinatorResponse{}, *worst
	}

	wantsFull := wantsFullData(query)
	rows := leadingRows(results)
	rowCount := len(rows)
	viz := buildVisualizations(rows)

	if rowCount > truncationThreshold && !wantsFull {
		sample := rows[:sampleRowCap]
		narrative := fmt.Sprintf(
			"The query returned %d rows. Here's a sample of the first %d rows:\n\n%s\n\n"+
				"Note: only a sample is shown. Total rows: %d. Ask for \"all data\" to see the complete set.",
			rowCount, sampleRowCap, markdownTable(sample), rowCount)
		return domain.CoordinatorResponse{Narrative: narrative, Visualizations: viz, RowCount: rowCount, Truncated: true}, nil
	}

	narrative, err := c.narrate(ctx, query, results, wantsFull)
	if err != nil {
		return domain.CoordinatorResponse{}, err
	}

	if wantsFull && rowCount > 0 {
		capped := rows
		hitHardCap := rowCount > hardRowCap
		if hitHardCap {
			capped = rows[:hardRowCap]
		}
		note := fmt.Sprintf("\n\nThe query returned %d rows", rowCount)
		if hitHardCap {
			note += fmt.Sprintf(" (showing the first %d)", hardRowCap)
		}
		narrative += note + ":\n\n" + markdownTable(capped)
		return domain.CoordinatorResponse{Narrative: narrative, Visualizations: viz, RowCount: rowCount, Truncated: hitHardCap}, nil
	}

	return domain.CoordinatorResponse{Narrative: narrative, Visualizations: viz, RowCount: rowCount}, nil
}

func (c *Coordinator) narrate(ctx context.Context, query string, results map[domain.AgentKind]domain.AgentResult, wantsFull bool) (string, error) {
	prompt := fmt.Sprintf("Answer this oceanographic query: %q\n\nData from specialized agents:\n%s",
		query, buildContext(results, wantsFull))
	if wantsFull {
		prompt += "\n\nThe user asked for complete data; a full table will be appended separately, so focus on the key findings."
	} else {
		prompt += "\n\nCreate a clear, concise response that directly answers the user's question using the available data."
	}
	return c.llm.Complete(ctx, systemPrompt, []llm.Message{{Role: "user", Content: prompt}}, narrativeTemperature)
}

func wantsFullData(query string) bool {
	lower := strings.ToLower(query)
	for _, phrase := range fullDataPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// leadingRows is the Measurement Agent's rows, the only agent result with
// backend-sized tabular output; the other two agents return bounded
// summaries that never need truncation.
func leadingRows(results map[domain.AgentKind]domain.AgentResult) []domain.Measurement {
	r, ok := results[domain.AgentMeasurement]
	if !ok || r.IsError() || r.Measurement == nil {
		return nil
	}
	return r.Measurement.Rows
}

// severity ranks error kinds from most to least severe, for picking the
// representative error when every demanded agent failed (SPEC_FULL.md §7).
var severity = map[domain.ErrorKind]int{
	domain.ErrCoreNotReady:       6,
	domain.ErrLLMUnavailable:     5,
	domain.ErrBackendUnavailable: 4,
	domain.ErrBackendQueryError:  3,
	domain.ErrAgentTimeout:       2,
	domain.ErrInternal:          1,
}

func mostSevereIfAllErrored(results map[domain.AgentKind]domain.AgentResult) (*domain.AgentError, bool) {
	if len(results) == 0 {
		return nil, false
	}
	var worst *domain.AgentError
	for _, r := range results {
		if !r.IsError() {
			return nil, false
		}
		if worst == nil || severity[r.Err.Kind] > severity[worst.Kind] {
			worst = r.Err
		}
	}
	return worst, true
}

func buildContext(results map[domain.AgentKind]domain.AgentResult, includeFull bool) string {
	var parts []string
	if r, ok := results[domain.AgentMeasurement]; ok {
		parts = append(parts, measurementContext(r, includeFull))
	}
	if r, ok := results[domain.AgentMetadata]; ok {
		parts = append(parts, metadataContext(r))
	}
	if r, ok := results[domain.AgentSemantic]; ok {
		parts = append(parts, semanticContext(r))
	}
	if len(parts) == 0 {
		return "No data available from agents"
	}
	return strings.Join(parts, "\n")
}

func measurementContext(r domain.AgentResult, includeFull bool) string {
	if r.IsError() {
		return fmt.Sprintf("**Measurement Results:** error: %s", r.Err.Message)
	}
	m := r.Measurement
	var b strings.Builder
	fmt.Fprintf(&b, "**Measurement Results:** %d rows", len(m.Rows))
	for param, stats := range m.Stats {
		fmt.Fprintf(&b, "\n- %s: mean=%.4f stddev=%.4f min=%.4f max=%.4f median=%.4f",
			param, stats.Mean, stats.StdDev, stats.Min, stats.Max, stats.Median)
	}
	if m.TimeRange != nil {
		fmt.Fprintf(&b, "\n- time range: %s to %s", m.TimeRange.Start.Format("2006-01-02"), m.TimeRange.End.Format("2006-01-02"))
	}
	n := sampleRowCap
	if includeFull && len(m.Rows) <= truncationThreshold {
		n = len(m.Rows)
	}
	if n > len(m.Rows) {
		n = len(m.Rows)
	}
	for _, row := range m.Rows[:n] {
		fmt.Fprintf(&b, "\n  %s @ %s (%.4f,%.4f)", row.PlatformID, row.Time.Format(time.RFC3339), row.Lat, row.Lon)
	}
	return b.String()
}

func metadataContext(r domain.AgentResult) string {
	if r.IsError() {
		return fmt.Sprintf("**Metadata Results:** error: %s", r.Err.Message)
	}
	m := r.Metadata
	var b strings.Builder
	b.WriteString("**Metadata Results:**")
	if m.Summary != "" {
		fmt.Fprintf(&b, " %s", m.Summary)
	}
	if m.HasCount {
		fmt.Fprintf(&b, " (count=%d)", m.Count)
	}
	if m.Float != nil {
		fmt.Fprintf(&b, "\n- float %s: status=%s region=%s institution=%s", m.Float.PlatformID, m.Float.Status, m.Float.Region, m.Float.Institution)
	}
	if m.Region != nil {
		fmt.Fprintf(&b, "\n- region %s: %d floats", m.Region.Name, m.Region.FloatCount)
	}
	for _, region := range m.Regions {
		fmt.Fprintf(&b, "\n- region %s (parent=%s): %d floats", region.Name, region.ParentRegion, region.FloatCount)
	}
	return b.String()
}

func semanticContext(r domain.AgentResult) string {
	if r.IsError() {
		return fmt.Sprintf("**Semantic Results:** error: %s", r.Err.Message)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Semantic Results:** %d matches", len(r.Semantic.Hits))
	for i, hit := range r.Semantic.Hits {
		if i >= sampleRowCap {
			break
		}
		fmt.Fprintf(&b, "\n- %s score=%.4f", hit.PlatformID, hit.Score)
	}
	return b.String()
}

func markdownTable(rows []domain.Measurement) string {
	headers := []string{"platform_id", "time", "lat", "lon", "pressure", "temperature", "salinity"}
	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("| " + strings.Join(repeat("---", len(headers)), " | ") + " |\n")
	for _, row := range rows {
		cells := []string{
			row.PlatformID,
			row.Time.Format("2006-01-02T15:04:05Z"),
			fmt.Sprintf("%.4f", row.Lat),
			fmt.Sprintf("%.4f", row.Lon),
			floatCell(row.Pressure),
			floatCell(row.Temperature),
			floatCell(row.Salinity),
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.4f", *v)
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

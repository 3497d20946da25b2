package coordinator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/argofloat/gateway/internal/domain"
)

// row caps mirror response_agent.py's _build_visualization_block, which
// grows the cap with how cheap the chart is to render client-side.
const (
	lineRowCap      = 500
	areaRowCap      = 500
	scatterRowCap   = 1000
	composedRowCap  = 300
	mapRowCap       = 2000
	heatmapRowCap   = 5000
	scatter3DRowCap = 3000
	barPlatformCap  = 10
)

// buildVisualizations infers which chart types the leading result set
// supports from the fields Measurement rows actually carry, and emits one
// spec per supported chart. A chart is only emitted when the fields it
// needs are present on at least one row.
func buildVisualizations(rows []domain.Measurement) []domain.Visualization {
	if len(rows) == 0 {
		return nil
	}

	hasTemp := anyNonNil(rows, func(m domain.Measurement) *float64 { return m.Temperature })
	hasSalinity := anyNonNil(rows, func(m domain.Measurement) *float64 { return m.Salinity })
	hasPressure := anyNonNil(rows, func(m domain.Measurement) *float64 { return m.Pressure })

	var viz []domain.Visualization

	if hasTemp {
		viz = append(viz, lineChart(rows, "temp_adjusted", "Temperature", func(m domain.Measurement) *float64 { return m.Temperature }, lineRowCap))
		viz = append(viz, areaChart(rows))
	} else if hasSalinity {
		viz = append(viz, lineChart(rows, "psal_adjusted", "Salinity", func(m domain.Measurement) *float64 { return m.Salinity }, lineRowCap))
	}

	if hasPressure {
		if hasTemp {
			viz = append(viz, scatterChart(rows, "pres_adjusted", "temp_adjusted", "Pressure", "Temperature",
				func(m domain.Measurement) *float64 { return m.Pressure },
				func(m domain.Measurement) *float64 { return m.Temperature }))
		} else if hasSalinity {
			viz = append(viz, scatterChart(rows, "pres_adjusted", "psal_adjusted", "Pressure", "Salinity",
				func(m domain.Measurement) *float64 { return m.Pressure },
				func(m domain.Measurement) *float64 { return m.Salinity }))
		}
	}

	if hasTemp && hasSalinity {
		viz = append(viz, composedChart(rows))
	}

	viz = append(viz, mapPointsChart(rows))

	if hasTemp {
		viz = append(viz, heatmapChart(rows))
	}

	if hasPressure {
		viz = append(viz, scatter3DChart(rows))
	}

	if len(rows) > barPlatformCap {
		if bar := barChart(rows); bar != nil {
			viz = append(viz, *bar)
		}
	}

	return viz
}

func anyNonNil(rows []domain.Measurement, sel func(domain.Measurement) *float64) bool {
	for _, r := range rows {
		if sel(r) != nil {
			return true
		}
	}
	return false
}

func toRowsMap(rows []domain.Measurement, limit int, fields []string, values func(domain.Measurement) map[string]any) []map[string]any {
	if limit > len(rows) {
		limit = len(rows)
	}
	out := make([]map[string]any, 0, limit)
	for _, r := range rows[:limit] {
		out = append(out, values(r))
	}
	return out
}

// lineChart plots field (one of the *_adjusted data keys, matching
// response_agent.py's field naming; the SQL adapter's own columns are
// pressure, temperature and salinity) against time; label is the
// human-readable name used in the title/subtitle only.
func lineChart(rows []domain.Measurement, field, label string, sel func(domain.Measurement) *float64, limit int) domain.Visualization {
	fields := []string{"time", field}
	data := toRowsMap(rows, limit, fields, func(m domain.Measurement) map[string]any {
		return map[string]any{"time": m.Time, field: derefOrNil(sel(m))}
	})
	return domain.Visualization{
		Type:     domain.ChartLine,
		Title:    label + " Over Time",
		Subtitle: fmt.Sprintf("Time series analysis of %s measurements", strings.ToLower(label)),
		Data:     domain.ChartData{Fields: fields, Rows: data},
		Encodings: map[string]string{"x": "time", "y": field},
		Options: map[string]any{
			"tooltip": true, "connectNulls": true, "animation": true,
			"showLegend": true, "showGrid": true, "showAxes": true, "interactive": true,
		},
		Styling: map[string]any{"height": 400},
	}
}

func areaChart(rows []domain.Measurement) domain.Visualization {
	fields := []string{"time", "temp_adjusted"}
	data := toRowsMap(rows, areaRowCap, fields, func(m domain.Measurement) map[string]any {
		return map[string]any{"time": m.Time, "temp_adjusted": derefOrNil(m.Temperature)}
	})
	return domain.Visualization{
		Type:      domain.ChartArea,
		Title:     "Temperature Profile Trend",
		Subtitle:  "Temperature variations over time with gradient fill",
		Data:      domain.ChartData{Fields: fields, Rows: data},
		Encodings: map[string]string{"x": "time", "y": "temp_adjusted"},
		Options:   map[string]any{"tooltip": true, "animation": true, "gradient": true, "showLegend": true},
		Styling:   map[string]any{"height": 400},
	}
}

// scatterChart plots yField against xField; xLabel/yLabel are the
// human-readable names used in the title/subtitle only.
func scatterChart(rows []domain.Measurement, xField, yField, xLabel, yLabel string, xSel, ySel func(domain.Measurement) *float64) domain.Visualization {
	fields := []string{xField, yField}
	data := toRowsMap(rows, scatterRowCap, fields, func(m domain.Measurement) map[string]any {
		return map[string]any{xField: derefOrNil(xSel(m)), yField: derefOrNil(ySel(m))}
	})
	return domain.Visualization{
		Type:      domain.ChartScatter,
		Title:     yLabel + " vs " + xLabel + " Profile",
		Subtitle:  fmt.Sprintf("Depth-pressure relationship analysis for %s", strings.ToLower(yLabel)),
		Data:      domain.ChartData{Fields: fields, Rows: data},
		Encodings: map[string]string{"x": xField, "y": yField},
		Options:   map[string]any{"tooltip": true, "animation": true, "interactive": true},
		Styling:   map[string]any{"height": 400},
	}
}

func composedChart(rows []domain.Measurement) domain.Visualization {
	fields := []string{"time", "temp_adjusted", "psal_adjusted"}
	data := toRowsMap(rows, composedRowCap, fields, func(m domain.Measurement) map[string]any {
		return map[string]any{
			"time": m.Time, "temp_adjusted": derefOrNil(m.Temperature), "psal_adjusted": derefOrNil(m.Salinity),
		}
	})
	return domain.Visualization{
		Type:      domain.ChartComposed,
		Title:     "Multi-Parameter Oceanographic Profile",
		Subtitle:  "Combined view of temperature and salinity over time",
		Data:      domain.ChartData{Fields: fields, Rows: data},
		Encodings: map[string]string{"x": "time", "y1": "temp_adjusted", "y2": "psal_adjusted"},
		Options:   map[string]any{"tooltip": true, "animation": true, "showLegend": true},
		Styling:   map[string]any{"height": 400},
	}
}

func mapPointsChart(rows []domain.Measurement) domain.Visualization {
	fields := []string{"lat", "lon"}
	data := toRowsMap(rows, mapRowCap, fields, func(m domain.Measurement) map[string]any {
		return map[string]any{"lat": m.Lat, "lon": m.Lon}
	})
	return domain.Visualization{
		Type:      domain.ChartMapPoints,
		Title:     "Argo Float Deployment Locations",
		Subtitle:  "Geographic distribution of oceanographic measurement points",
		Data:      domain.ChartData{Fields: fields, Rows: data},
		Encodings: map[string]string{"lat": "lat", "lon": "lon"},
		Options:   map[string]any{"tooltip": true, "interactive": true},
		Styling:   map[string]any{"height": 400},
	}
}

func heatmapChart(rows []domain.Measurement) domain.Visualization {
	fields := []string{"lat", "lon", "temp_adjusted"}
	data := toRowsMap(rows, heatmapRowCap, fields, func(m domain.Measurement) map[string]any {
		return map[string]any{"lat": m.Lat, "lon": m.Lon, "temp_adjusted": derefOrNil(m.Temperature)}
	})
	return domain.Visualization{
		Type:      domain.ChartHeatmap,
		Title:     "Spatial Temperature Distribution",
		Subtitle:  "Heat map showing temperature variations across geographic regions",
		Data:      domain.ChartData{Fields: fields, Rows: data},
		Encodings: map[string]string{"lat": "lat", "lon": "lon", "value": "temp_adjusted"},
		Options:   map[string]any{"tooltip": true, "interactive": true},
		Styling:   map[string]any{"height": 400},
	}
}

func scatter3DChart(rows []domain.Measurement) domain.Visualization {
	fields := []string{"lat", "lon", "pres_adjusted"}
	data := toRowsMap(rows, scatter3DRowCap, fields, func(m domain.Measurement) map[string]any {
		return map[string]any{"lat": m.Lat, "lon": m.Lon, "pres_adjusted": derefOrNil(m.Pressure)}
	})
	return domain.Visualization{
		Type:      domain.ChartScatter3D,
		Title:     "3D Oceanographic Profile",
		Subtitle:  "Interactive 3D visualization of latitude, longitude, and pressure depth",
		Data:      domain.ChartData{Fields: fields, Rows: data},
		Encodings: map[string]string{"x": "lon", "y": "lat", "z": "pres_adjusted"},
		Options:   map[string]any{"tooltip": true, "interactive": true, "animation": true},
		Styling:   map[string]any{"height": 400},
	}
}

// barChart summarizes measurement count per platform, capped at the ten
// most frequent platforms; nil when no platform id is populated on any row.
func barChart(rows []domain.Measurement) *domain.Visualization {
	counts := map[string]int{}
	for _, r := range rows {
		if r.PlatformID == "" {
			continue
		}
		counts[r.PlatformID]++
	}
	if len(counts) == 0 {
		return nil
	}

	type platformCount struct {
		platform string
		count    int
	}
	ordered := make([]platformCount, 0, len(counts))
	for p, c := range counts {
		ordered = append(ordered, platformCount{p, c})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].platform < ordered[j].platform
	})
	if len(ordered) > barPlatformCap {
		ordered = ordered[:barPlatformCap]
	}

	data := make([]map[string]any, 0, len(ordered))
	for _, pc := range ordered {
		data = append(data, map[string]any{"platform": pc.platform, "measurements": pc.count})
	}

	return &domain.Visualization{
		Type:      domain.ChartBar,
		Title:     "Measurement Count by Platform",
		Subtitle:  "Number of measurements per Argo float platform",
		Data:      domain.ChartData{Fields: []string{"platform", "measurements"}, Rows: data},
		Encodings: map[string]string{"x": "platform", "y": "measurements"},
		Options:   map[string]any{"tooltip": true, "animation": true, "showLegend": false},
		Styling:   map[string]any{"height": 300},
	}
}

func derefOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}


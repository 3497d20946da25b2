package sqladapter

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/argofloat/gateway/internal/domain"
)

// buildQuery renders a parameterized SELECT over the profiles table for
// intent's spatial/temporal bounds and float ID, matching the column order
// Adapter.Query's row scan expects.
func buildQuery(intent domain.Intent) (string, []any) {
	var where []string
	var args []any
	argN := 0

	next := func(v any) string {
		argN++
		args = append(args, v)
		return fmt.Sprintf("$%d", argN)
	}

	if intent.FloatID != "" {
		where = append(where, "platform_id = "+next(intent.FloatID))
	}
	if intent.SpatialBounds != nil {
		b := intent.SpatialBounds
		where = append(where,
			fmt.Sprintf("lat BETWEEN %s AND %s", next(b.MinLat), next(b.MaxLat)),
			fmt.Sprintf("lon BETWEEN %s AND %s", next(b.MinLon), next(b.MaxLon)),
		)
	}
	if intent.TemporalBounds != nil {
		t := intent.TemporalBounds
		where = append(where, fmt.Sprintf("observed_at BETWEEN %s AND %s", next(t.Start), next(t.End)))
	}

	query := "SELECT platform_id, observed_at, lat, lon, pressure, temperature, salinity FROM profiles"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY observed_at DESC"

	limit := intent.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(" LIMIT %s", next(limit))

	return query, args
}

// computeStats derives mean/stddev/min/max/median for each requested
// parameter present in rows, matching the Analyzer's expectation that
// Stats is populated whenever rows exist for that parameter. Intent never
// narrows the parameter list today (no query vocabulary selects individual
// parameters), so an empty params falls back to all three — matching
// multi_agent_rag.py, which unconditionally computes temp/psal/pres stats
// whenever rows exist.
func computeStats(rows []domain.Measurement, params []domain.Parameter) map[domain.Parameter]domain.Stats {
	if len(params) == 0 {
		params = []domain.Parameter{domain.ParamTemperature, domain.ParamSalinity, domain.ParamPressure}
	}
	out := make(map[domain.Parameter]domain.Stats)
	for _, p := range params {
		values := extract(rows, p)
		if len(values) == 0 {
			continue
		}
		out[p] = describe(values)
	}
	return out
}

func extract(rows []domain.Measurement, p domain.Parameter) []float64 {
	var values []float64
	for _, r := range rows {
		var v *float64
		switch p {
		case domain.ParamTemperature:
			v = r.Temperature
		case domain.ParamSalinity:
			v = r.Salinity
		case domain.ParamPressure:
			v = r.Pressure
		}
		if v != nil {
			values = append(values, *v)
		}
	}
	return values
}

func describe(values []float64) domain.Stats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return domain.Stats{
		Mean:   mean,
		StdDev: math.Sqrt(variance),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: median(sorted),
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func timeRange(rows []domain.Measurement) *domain.TemporalBounds {
	start, end := rows[0].Time, rows[0].Time
	for _, r := range rows[1:] {
		if r.Time.Before(start) {
			start = r.Time
		}
		if r.Time.After(end) {
			end = r.Time
		}
	}
	return &domain.TemporalBounds{Start: start, End: end}
}

func spatialCoverage(rows []domain.Measurement) *domain.SpatialBounds {
	b := &domain.SpatialBounds{MinLat: rows[0].Lat, MaxLat: rows[0].Lat, MinLon: rows[0].Lon, MaxLon: rows[0].Lon}
	for _, r := range rows[1:] {
		if r.Lat < b.MinLat {
			b.MinLat = r.Lat
		}
		if r.Lat > b.MaxLat {
			b.MaxLat = r.Lat
		}
		if r.Lon < b.MinLon {
			b.MinLon = r.Lon
		}
		if r.Lon > b.MaxLon {
			b.MaxLon = r.Lon
		}
	}
	return b
}

// Package graphadapter implements the Metadata Agent's backend against
// Neo4j, grounded on original_source's neo4j_tool.py (query shapes: float
// metadata, region metadata, region hierarchy) and expressed with
// neo4j-go-driver/v5's ExecuteRead session pattern.
package graphadapter

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/resilience"
)

// Adapter queries float and region metadata from the graph store.
type Adapter struct {
	driver neo4j.DriverWithContext
}

// Open builds a driver against uri, authenticated with user/password, and
// verifies connectivity.
func Open(ctx context.Context, uri, user, password string) (*Adapter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphadapter: new driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graphadapter: verify connectivity: %w", err)
	}
	return &Adapter{driver: driver}, nil
}

// Close releases the driver's connection pool.
func (a *Adapter) Close(ctx context.Context) { a.driver.Close(ctx) }

// Query runs the Metadata Agent's lookup for intent, preferring a direct
// float lookup when a float ID is present, else a region lookup.
func (a *Adapter) Query(ctx context.Context, intent domain.Intent, regionName string) (*domain.MetadataResult, error) {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result := &domain.MetadataResult{}

	if intent.FloatID != "" {
		fm, err := a.floatMetadata(ctx, session, intent.FloatID)
		if err != nil {
			return nil, err
		}
		result.Float = fm
	}
	if regionName != "" {
		rm, err := a.regionMetadata(ctx, session, regionName)
		if err != nil {
			return nil, err
		}
		result.Region = rm
	}
	if result.Float != nil {
		result.Summary = fmt.Sprintf("float %s in %s", result.Float.PlatformID, result.Float.Region)
	} else if result.Region != nil {
		result.Summary = fmt.Sprintf("region %s (%d floats)", result.Region.Name, result.Region.FloatCount)
		result.Count = result.Region.FloatCount
		result.HasCount = true
	}
	return result, nil
}

func (a *Adapter) floatMetadata(ctx context.Context, session neo4j.SessionWithContext, platformID string) (*domain.FloatMetadata, error) {
	const query = `
		MATCH (f:Float {platform_number: $platformID})
		MATCH (f)-[:LOCATED_IN]->(r:Region)
		RETURN f.platform_number AS platform_id, f.deployed_at AS deployed,
		       f.status AS status, r.name AS region, f.institution AS institution`

	var record *neo4j.Record
	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
		var err error
		record, err = neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) (*neo4j.Record, error) {
			cursor, err := tx.Run(ctx, query, map[string]any{"platformID": platformID})
			if err != nil {
				return nil, err
			}
			return cursor.Single(ctx)
		})
		return err
	})
	if err != nil {
		return nil, nil //nolint:nilerr // "no record found" is not an adapter error here
	}

	status, _ := record.Get("status")
	region, _ := record.Get("region")
	institution, _ := record.Get("institution")
	return &domain.FloatMetadata{
		PlatformID:  platformID,
		Status:      stringOrEmpty(status),
		Region:      stringOrEmpty(region),
		Institution: stringOrEmpty(institution),
	}, nil
}

func (a *Adapter) regionMetadata(ctx context.Context, session neo4j.SessionWithContext, regionName string) (*domain.RegionMetadata, error) {
	const query = `
		MATCH (r:Region {name: $regionName})
		OPTIONAL MATCH (r)-[:PART_OF]->(parent:Region)
		OPTIONAL MATCH (f:Float)-[:LOCATED_IN]->(r)
		RETURN r.name AS name, parent.name AS parent_region, count(DISTINCT f) AS float_count`

	var record *neo4j.Record
	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
		var err error
		record, err = neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) (*neo4j.Record, error) {
			cursor, err := tx.Run(ctx, query, map[string]any{"regionName": regionName})
			if err != nil {
				return nil, err
			}
			return cursor.Single(ctx)
		})
		return err
	})
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	parent, _ := record.Get("parent_region")
	count, _ := record.Get("float_count")
	return &domain.RegionMetadata{
		Name:         regionName,
		ParentRegion: stringOrEmpty(parent),
		FloatCount:   int(int64OrZero(count)),
	}, nil
}

// RegionHierarchy fetches the full region tree, used when
// flags.metadata_enhanced is set per the Refiner's enhance_metadata
// suggestion (SPEC_FULL.md §4.4).
func (a *Adapter) RegionHierarchy(ctx context.Context) ([]domain.RegionMetadata, error) {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	const query = `
		MATCH (r:Region)
		OPTIONAL MATCH (r)-[:PART_OF]->(parent:Region)
		OPTIONAL MATCH (f:Float)-[:LOCATED_IN]->(r)
		RETURN r.name AS region, parent.name AS parent, count(DISTINCT f) AS float_count`

	var records []*neo4j.Record
	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
		var err error
		records, err = neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) ([]*neo4j.Record, error) {
			cursor, err := tx.Run(ctx, query, nil)
			if err != nil {
				return nil, err
			}
			return cursor.Collect(ctx)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("graphadapter: region hierarchy: %w", err)
	}

	out := make([]domain.RegionMetadata, 0, len(records))
	for _, record := range records {
		region, _ := record.Get("region")
		parent, _ := record.Get("parent")
		count, _ := record.Get("float_count")
		out = append(out, domain.RegionMetadata{
			Name:         stringOrEmpty(region),
			ParentRegion: stringOrEmpty(parent),
			FloatCount:   int(int64OrZero(count)),
		})
	}
	return out, nil
}

// Execute runs an arbitrary, LLM-drafted Cypher statement and returns each
// record as a plain map keyed by its return alias. This escape hatch backs
// the Metadata Agent's graph-shaped-query path (SPEC_FULL.md §4.2), which
// needs query shapes the typed methods above cannot express.
func (a *Adapter) Execute(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	records, err := neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) ([]*neo4j.Record, error) {
		cursor, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return cursor.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graphadapter: execute: %w", err)
	}

	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for _, key := range record.Keys {
			v, _ := record.Get(key)
			row[key] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func stringOrEmpty(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func int64OrZero(v any) int64 {
	if n, ok := v.(int64); ok {
		return n
	}
	return 0
}

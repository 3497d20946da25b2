// Package vectoradapter implements the Semantic Agent's backend. It is
// store-agnostic at the capability level (SPEC_FULL.md §4.1) and bound here
// to Qdrant, grounded on Tangerg-lynx's qdrant VectorStore (query-points
// construction, scored-point-to-domain conversion) rather than the original
// system's Pinecone store, which the pack does not ship a client for.
package vectoradapter

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/embedding"
	"github.com/argofloat/gateway/internal/resilience"
)

// Adapter runs nearest-neighbor searches over pre-embedded float profile
// summaries.
type Adapter struct {
	client     *qdrant.Client
	collection string
}

// Open connects to a Qdrant instance at host:port and verifies the target
// collection exists.
func Open(ctx context.Context, host string, port int, apiKey, collection string) (*Adapter, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("vectoradapter: new client: %w", err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("vectoradapter: check collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("vectoradapter: collection %q does not exist", collection)
	}

	return &Adapter{client: client, collection: collection}, nil
}

// Close releases the underlying gRPC connection.
func (a *Adapter) Close() error { return a.client.Close() }

// SearchOptions tunes a semantic search, overridden by the Refiner's
// broaden_semantic suggestion (lower MinScore by 0.1, double TopK up to 20).
type SearchOptions struct {
	TopK     int
	MinScore float64
	Region   string
}

// DefaultSearchOptions matches the Semantic Agent's baseline before any
// refinement is applied.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{TopK: 10, MinScore: 0.5}
}

// Search embeds query deterministically and runs a nearest-neighbor lookup,
// optionally filtered by region.
func (a *Adapter) Search(ctx context.Context, query string, opts SearchOptions) (*domain.SemanticResult, error) {
	vector := embedding.Embed(query)
	vec32 := make([]float32, len(vector))
	for i, v := range vector {
		vec32[i] = float32(v)
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: a.collection,
		Query:          qdrant.NewQuery(vec32...),
		Limit:          ptrUint64(uint64(opts.TopK)),
		ScoreThreshold: ptrFloat32(float32(opts.MinScore)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.Region != "" {
		queryPoints.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("region", opts.Region),
			},
		}
	}

	var scored []*qdrant.ScoredPoint
	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
		var err error
		scored, err = a.client.Query(ctx, queryPoints)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("vectoradapter: query: %w", err)
	}

	hits := make([]domain.SemanticHit, 0, len(scored))
	for _, point := range scored {
		hits = append(hits, toHit(point))
	}
	return &domain.SemanticResult{Hits: hits}, nil
}

func toHit(point *qdrant.ScoredPoint) domain.SemanticHit {
	hit := domain.SemanticHit{Score: float64(point.GetScore())}
	payload := point.GetPayload()
	if payload == nil {
		return hit
	}

	metadata := make(map[string]any, len(payload))
	for key, value := range payload {
		metadata[key] = convertValue(value)
	}
	hit.Metadata = metadata
	if platformID, ok := metadata["platform_id"].(string); ok {
		hit.PlatformID = platformID
	}
	return hit
}

func convertValue(value *qdrant.Value) any {
	if value == nil {
		return nil
	}
	switch kind := value.Kind.(type) {
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return nil
	}
}

func ptrUint64(v uint64) *uint64   { return &v }
func ptrFloat32(v float32) *float32 { return &v }

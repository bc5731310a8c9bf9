// Package qdrant answers nearest-neighbour queries from Qdrant collections,
// one collection per entity pool.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/store"
)

const (
	payloadEntityID = "entity_id"
	payloadKind     = "kind"
	payloadLevel    = "level"
)

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant gRPC address (e.g., "https://example.qdrant.io:6334").
	URL string

	// CollectionPrefix is prepended to the per-pool collection names (default: "govcon").
	CollectionPrefix string

	// APIKey is optional API key for authentication.
	APIKey string
}

// Client implements store.Preselector for Qdrant and keeps its collections in sync.
type Client struct {
	client *qdrant.Client
	prefix string
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = "govcon"
	}

	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{client: qdrantClient, prefix: cfg.CollectionPrefix}, nil
}

// parseURL splits the address into host, port and TLS flag. Bare hosts default to https on port 6334.
func parseURL(raw string) (string, int, bool, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}

	return u.Hostname(), port, u.Scheme == "https", nil
}

// Collection returns the collection that holds the pool.
func (c *Client) Collection(pool govcon.Kind) string {
	return c.prefix + "_" + string(pool)
}

// PointID maps a record id onto a stable UUID, since Qdrant only accepts UUIDs or integers.
func PointID(pool govcon.Kind, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(pool)+"/"+id)).String()
}

// Preselect implements store.Preselector. Qdrant scores are cosine
// similarities; they are returned as distances (1 - score).
func (c *Client) Preselect(ctx context.Context, q store.Query) ([]store.Neighbor, error) {
	switch q.Pool {
	case govcon.KindCompany, govcon.KindOpportunity, govcon.KindNAICS:
	default:
		return nil, fmt.Errorf("unsupported pool %q", q.Pool)
	}

	query := &qdrant.QueryPoints{
		CollectionName: c.Collection(q.Pool),
		Query:          qdrant.NewQuery(q.Vector...),
		Filter:         buildFilter(q),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if q.Limit > 0 {
		limit := uint64(q.Limit)
		query.Limit = &limit
	}

	points, err := c.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	neighbors := make([]store.Neighbor, 0, len(points))
	for _, point := range points {
		id := ""
		if v, ok := point.Payload[payloadEntityID]; ok {
			id = v.GetStringValue()
		}
		if id == "" {
			continue
		}
		neighbors = append(neighbors, store.Neighbor{ID: id, Distance: 1 - float64(point.Score)})
	}

	return neighbors, nil
}

// buildFilter excludes the query's own ids and restricts NAICS levels.
func buildFilter(q store.Query) *qdrant.Filter {
	filter := &qdrant.Filter{}

	if len(q.Exclude) > 0 {
		keywords := make([]string, len(q.Exclude))
		copy(keywords, q.Exclude)
		filter.MustNot = append(filter.MustNot, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: payloadEntityID,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keywords{
							Keywords: &qdrant.RepeatedStrings{Strings: keywords},
						},
					},
				},
			},
		})
	}

	if q.Pool == govcon.KindNAICS && len(q.Levels) > 0 {
		levels := make([]int64, len(q.Levels))
		for i, l := range q.Levels {
			levels[i] = int64(l)
		}
		filter.Must = append(filter.Must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: payloadLevel,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Integers{
							Integers: &qdrant.RepeatedIntegers{Integers: levels},
						},
					},
				},
			},
		})
	}

	if len(filter.Must) == 0 && len(filter.MustNot) == 0 {
		return nil
	}
	return filter
}

// EnsureCollection creates the pool collection with cosine distance when missing.
func (c *Client) EnsureCollection(ctx context.Context, pool govcon.Kind, dimension int) error {
	name := c.Collection(pool)

	exists, err := c.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// Point is a vector ready to be indexed.
type Point struct {
	ID     string
	Level  int
	Vector []float32
}

// Upsert writes points into the pool collection. Points without a vector are skipped.
func (c *Client) Upsert(ctx context.Context, pool govcon.Kind, points []Point) error {
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if len(p.Vector) == 0 {
			continue
		}
		payload := map[string]any{
			payloadEntityID: p.ID,
			payloadKind:     string(pool),
		}
		if pool == govcon.KindNAICS {
			payload[payloadLevel] = p.Level
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(pool, p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	if len(structs) == 0 {
		return nil
	}

	wait := true
	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.Collection(pool),
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points into %s: %w", len(structs), c.Collection(pool), err)
	}
	return nil
}

// Close releases the gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

var _ store.Preselector = (*Client)(nil)

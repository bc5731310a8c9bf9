package samgov

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/govcon-matcher/internal/embedding"
	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/store"
	"github.com/spigell/govcon-matcher/internal/store/qdrant"
)

// Searcher finds notices. *Client implements it.
type Searcher interface {
	Search(ctx context.Context, params SearchParams) ([]Notice, error)
}

// Indexer receives the vectors of ingested records. *qdrant.Client implements it.
type Indexer interface {
	Upsert(ctx context.Context, pool govcon.Kind, points []qdrant.Point) error
}

// Stats summarizes an ingestion run.
type Stats struct {
	Fetched int `json:"fetched"`
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
	Indexed int `json:"indexed"`
}

// Ingester stores SAM.gov notices as opportunities with a summary embedding.
type Ingester struct {
	searcher Searcher
	embedder embedding.Embedder
	writer   store.Writer
	indexer  Indexer
	logger   *zap.Logger
}

// NewIngester creates an Ingester. indexer may be nil when the store is its own vector index.
func NewIngester(searcher Searcher, embedder embedding.Embedder, writer store.Writer, indexer Indexer, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		searcher: searcher,
		embedder: embedder,
		writer:   writer,
		indexer:  indexer,
		logger:   logger,
	}
}

// Run fetches the notices and upserts them. The first embedding or store error aborts the run;
// records written before it stay written.
func (i *Ingester) Run(ctx context.Context, params SearchParams) (Stats, error) {
	notices, err := i.searcher.Search(ctx, params)
	if err != nil {
		return Stats{}, fmt.Errorf("search notices: %w", err)
	}

	stats := Stats{Fetched: len(notices)}
	points := make([]qdrant.Point, 0, len(notices))

	for _, n := range notices {
		opp := n.Opportunity()
		if opp.NoticeID == "" || opp.NAICSCode == "" {
			i.logger.Debug("skipping notice", zap.String("notice_id", opp.NoticeID), zap.String("title", opp.Title))
			stats.Skipped++
			continue
		}

		vector, err := i.embedder.Embed(ctx, n.SummaryText(), embedding.Summary)
		if err != nil {
			return stats, fmt.Errorf("embed notice %s: %w", opp.NoticeID, err)
		}
		opp.Embedding = vector

		if err := i.writer.UpsertOpportunity(ctx, opp); err != nil {
			return stats, fmt.Errorf("store notice %s: %w", opp.NoticeID, err)
		}
		stats.Stored++
		points = append(points, qdrant.Point{ID: opp.NoticeID, Vector: vector})
	}

	if i.indexer != nil && len(points) > 0 {
		if err := i.indexer.Upsert(ctx, govcon.KindOpportunity, points); err != nil {
			return stats, fmt.Errorf("index notices: %w", err)
		}
		stats.Indexed = len(points)
	}

	i.logger.Info("ingestion finished",
		zap.Int("fetched", stats.Fetched),
		zap.Int("stored", stats.Stored),
		zap.Int("skipped", stats.Skipped),
		zap.Int("indexed", stats.Indexed),
	)

	return stats, nil
}

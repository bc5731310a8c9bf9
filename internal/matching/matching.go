// Package matching exposes the three operations callers use: joint-venture
// partner search, NAICS classification and entity fit ranking. Each resolves
// its references, preselects a candidate pool through the vector index,
// hydrates the pool from the record store and ranks it with a scoring policy.
package matching

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spigell/govcon-matcher/internal/ai"
	"github.com/spigell/govcon-matcher/internal/embedding"
	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/metrics"
	"github.com/spigell/govcon-matcher/internal/resolver"
	"github.com/spigell/govcon-matcher/internal/store"
)

const (
	// DefaultPreselectLimit is how many neighbours are pulled from the vector index before scoring.
	DefaultPreselectLimit = 30

	DefaultPartnerLimit = 12
	MaxPartnerLimit     = 50
	DefaultFitLimit     = 6
)

var tracer = otel.Tracer("github.com/spigell/govcon-matcher/internal/matching")

// Config tunes the service. Zero values fall back to the defaults.
type Config struct {
	PreselectLimit int `mapstructure:"preselect-limit"`
}

// Service runs the matching operations. It holds no per-request state and is safe for concurrent use.
type Service struct {
	records   store.Records
	ann       store.Preselector
	embedder  embedding.Embedder
	resolver  *resolver.Resolver
	refiner   *ai.Refiner
	preselect int
	logger    *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithRefiner enables RefineNAICS.
func WithRefiner(r *ai.Refiner) Option {
	return func(s *Service) { s.refiner = r }
}

func New(records store.Records, ann store.Preselector, embedder embedding.Embedder, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	preselect := cfg.PreselectLimit
	if preselect <= 0 {
		preselect = DefaultPreselectLimit
	}

	s := &Service{
		records:   records,
		ann:       ann,
		embedder:  embedder,
		resolver:  resolver.New(records),
		preselect: preselect,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver exposes the resolver the service looks references up with.
func (s *Service) Resolver() *resolver.Resolver {
	return s.resolver
}

// begin opens a span for op and returns the function that closes it and records the outcome.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "matching."+op, trace.WithAttributes(attrs...))
	start := time.Now()

	return ctx, func(err error) {
		defer span.End()

		outcome := "ok"
		if failure, ok := govcon.AsFailure(err); ok {
			outcome = "failure"
			metrics.FailuresTotal.WithLabelValues(op, string(failure.Kind)).Inc()
			span.SetAttributes(attribute.String("failure.kind", string(failure.Kind)))
			s.logger.Info("operation returned failure",
				zap.String("operation", op),
				zap.String("kind", string(failure.Kind)),
				zap.String("message", failure.Message),
			)
		} else if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error("operation failed", zap.String("operation", op), zap.Error(err))
		}

		metrics.OperationDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	}
}

func (s *Service) preselectPool(ctx context.Context, q store.Query) ([]store.Neighbor, error) {
	ctx, span := tracer.Start(ctx, "matching.preselect", trace.WithAttributes(
		attribute.String("pool", string(q.Pool)),
		attribute.Int("limit", q.Limit),
	))
	defer span.End()

	neighbors, err := s.ann.Preselect(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("preselect %s pool: %w", q.Pool, err)
	}

	span.SetAttributes(attribute.Int("size", len(neighbors)))
	metrics.PreselectSize.WithLabelValues(string(q.Pool)).Observe(float64(len(neighbors)))
	s.logger.Debug("preselected pool",
		zap.String("pool", string(q.Pool)),
		zap.Int("limit", q.Limit),
		zap.Int("size", len(neighbors)),
	)

	return neighbors, nil
}

// companyPool loads the preselected companies in neighbour order. Ids the store no longer knows are skipped.
func (s *Service) companyPool(ctx context.Context, neighbors []store.Neighbor) ([]pooled[govcon.Company], error) {
	companies, err := s.records.CompaniesByID(ctx, neighborIDs(neighbors))
	if err != nil {
		return nil, fmt.Errorf("load preselected companies: %w", err)
	}
	byID := make(map[string]govcon.Company, len(companies))
	for _, c := range companies {
		byID[c.ID] = c
	}
	return hydrate(neighbors, byID), nil
}

func (s *Service) opportunityPool(ctx context.Context, neighbors []store.Neighbor) ([]pooled[govcon.Opportunity], error) {
	opps, err := s.records.OpportunitiesByID(ctx, neighborIDs(neighbors))
	if err != nil {
		return nil, fmt.Errorf("load preselected opportunities: %w", err)
	}
	byID := make(map[string]govcon.Opportunity, len(opps))
	for _, o := range opps {
		byID[o.NoticeID] = o
	}
	return hydrate(neighbors, byID), nil
}

type pooled[T any] struct {
	record   T
	distance float64
}

func hydrate[T any](neighbors []store.Neighbor, byID map[string]T) []pooled[T] {
	pool := make([]pooled[T], 0, len(neighbors))
	for _, n := range neighbors {
		record, ok := byID[n.ID]
		if !ok {
			continue
		}
		pool = append(pool, pooled[T]{record: record, distance: n.Distance})
	}
	return pool
}

func neighborIDs(neighbors []store.Neighbor) []string {
	ids := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		ids = append(ids, n.ID)
	}
	return ids
}

func missingEmbedding(subject string) error {
	return govcon.MissingPrecondition(fmt.Sprintf("%s has no embedding_summary; cannot run ANN.", subject))
}


// Package ranking orders scored candidates. Candidates pass through an ordered
// list of filter steps, are sorted by score and truncated to the requested size.
package ranking

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Item is a scored candidate.
type Item interface {
	// Key identifies the candidate and breaks score ties.
	Key() string
	Score() float64
	Eligible() bool
}

// Filter represents a single step applied to the scored candidates.
type Filter[T Item] interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, items []T) ([]T, Step, error)
}

// Step describes the result of executing a filter step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Ranking is an ordered set of filter steps.
type Ranking[T Item] struct {
	steps  []Filter[T]
	logger *zap.Logger
}

func New[T Item](steps []Filter[T], logger *zap.Logger) *Ranking[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranking[T]{steps: steps, logger: logger}
}

// DisableByName marks a step with the provided name as disabled while keeping it in the list.
func (r *Ranking[T]) DisableByName(name, reason string) {
	for _, step := range r.steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run applies the enabled steps, sorts the survivors by descending score and then ascending key,
// and keeps at most limit of them. A limit below one keeps everything. The input slice is not modified.
func (r *Ranking[T]) Run(ctx context.Context, items []T, limit int) ([]T, error) {
	for _, step := range r.steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	result := make([]T, len(items))
	copy(result, items)

	for _, step := range r.steps {
		if !step.IsEnabled() {
			r.logger.Debug("ranking step disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, result)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		r.logger.Debug("ranking step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		result = next
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Score() != result[j].Score() {
			return result[i].Score() > result[j].Score()
		}
		return result[i].Key() < result[j].Key()
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Rank scores every pool member with the policy and runs the ranking over the results.
func Rank[C any, T Item](ctx context.Context, r *Ranking[T], pool []C, score func(C) T, limit int) ([]T, error) {
	scored := make([]T, 0, len(pool))
	for _, candidate := range pool {
		scored = append(scored, score(candidate))
	}
	return r.Run(ctx, scored, limit)
}

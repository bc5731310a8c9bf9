package ranking

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"
)

type eligibilityFilter[T Item] struct {
	enabled bool
	logger  *zap.Logger
}

// NewEligibility creates a step that drops candidates that are hard-disqualified.
func NewEligibility[T Item](logger *zap.Logger) Filter[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &eligibilityFilter[T]{enabled: true, logger: logger}
}

func (f *eligibilityFilter[T]) Name() string { return "eligibility" }

func (f *eligibilityFilter[T]) Disable(reason string) {
	f.enabled = false
	f.logger.Debug("eligibility step disabled", zap.String("reason", reason))
}

func (f *eligibilityFilter[T]) IsEnabled() bool { return f.enabled }

func (f *eligibilityFilter[T]) Validate() error { return nil }

func (f *eligibilityFilter[T]) Apply(_ context.Context, items []T) ([]T, Step, error) {
	kept := make([]T, 0, len(items))
	var dropped []string
	for _, item := range items {
		if !item.Eligible() {
			dropped = append(dropped, item.Key())
			continue
		}
		kept = append(kept, item)
	}

	if len(dropped) > 0 {
		f.logger.Debug("excluding ineligible candidates", zap.Strings("excluded", dropped))
	}

	return kept, Step{Initial: len(items), Dropped: len(dropped), Left: len(kept)}, nil
}

type excludeFilter[T Item] struct {
	keys    map[string]struct{}
	enabled bool
}

// NewExclude creates a step that drops candidates with the given keys.
func NewExclude[T Item](keys []string) Filter[T] {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			set[key] = struct{}{}
		}
	}
	return &excludeFilter[T]{keys: set, enabled: true}
}

func (f *excludeFilter[T]) Name() string { return "exclude" }

func (f *excludeFilter[T]) Disable(string) { f.enabled = false }

func (f *excludeFilter[T]) IsEnabled() bool { return f.enabled }

func (f *excludeFilter[T]) Validate() error { return nil }

func (f *excludeFilter[T]) Apply(_ context.Context, items []T) ([]T, Step, error) {
	if len(f.keys) == 0 {
		return items, Step{Initial: len(items), Left: len(items)}, nil
	}

	kept := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := f.keys[item.Key()]; ok {
			continue
		}
		kept = append(kept, item)
	}

	return kept, Step{Initial: len(items), Dropped: len(items) - len(kept), Left: len(kept)}, nil
}

type minScoreFilter[T Item] struct {
	threshold float64
	enabled   bool
}

// NewMinScore creates a step that drops candidates scoring below threshold. A zero threshold disables the step.
func NewMinScore[T Item](threshold float64) Filter[T] {
	return &minScoreFilter[T]{threshold: threshold, enabled: threshold != 0}
}

func (f *minScoreFilter[T]) Name() string { return "minimum_score" }

func (f *minScoreFilter[T]) Disable(string) { f.enabled = false }

func (f *minScoreFilter[T]) IsEnabled() bool { return f.enabled }

func (f *minScoreFilter[T]) Validate() error {
	if f.threshold < 0 || math.IsNaN(f.threshold) {
		return errors.New("minimum score must not be negative")
	}
	return nil
}

func (f *minScoreFilter[T]) Apply(_ context.Context, items []T) ([]T, Step, error) {
	kept := make([]T, 0, len(items))
	for _, item := range items {
		if item.Score() < f.threshold {
			continue
		}
		kept = append(kept, item)
	}

	return kept, Step{Initial: len(items), Dropped: len(items) - len(kept), Left: len(kept)}, nil
}

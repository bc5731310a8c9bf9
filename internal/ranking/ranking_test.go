package ranking

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubItem struct {
	id       string
	score    float64
	eligible bool
}

func (s stubItem) Key() string { return s.id }
func (s stubItem) Score() float64 { return s.score }
func (s stubItem) Eligible() bool { return s.eligible }

func keys(items []stubItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.id)
	}
	return out
}

func TestRunOrdersByScoreThenKey(t *testing.T) {
	t.Parallel()

	pool := []stubItem{
		{id: "c", score: 0.5, eligible: true},
		{id: "a", score: 0.9, eligible: true},
		{id: "d", score: 0.5, eligible: true},
		{id: "b", score: 0.5, eligible: true},
	}
	original := append([]stubItem(nil), pool...)

	got, err := New[stubItem](nil, nil).Run(context.Background(), pool, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(keys(got), want) {
		t.Fatalf("expected %v, got %v", want, keys(got))
	}
	if !reflect.DeepEqual(pool, original) {
		t.Fatalf("pool was mutated: %v", pool)
	}
}

func TestRunWithoutLimitKeepsAll(t *testing.T) {
	t.Parallel()

	pool := []stubItem{{id: "a", score: 0.1}, {id: "b", score: 0.2}}
	got, err := New[stubItem](nil, nil).Run(context.Background(), pool, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"b", "a"}; !reflect.DeepEqual(keys(got), want) {
		t.Fatalf("expected %v, got %v", want, keys(got))
	}
}

func TestRankAppliesSteps(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	steps := []Filter[stubItem]{
		NewEligibility[stubItem](logger),
		NewExclude[stubItem]([]string{"lead", " "}),
		NewMinScore[stubItem](0.3),
	}
	r := New(steps, logger)

	pool := []float64{0.9, 0.2, 0.8, 0.7, 0.95}
	ids := []string{"x", "low", "lead", "ineligible", "y"}
	score := func(i int) stubItem {
		return stubItem{id: ids[i], score: pool[i], eligible: ids[i] != "ineligible"}
	}

	got, err := Rank(context.Background(), r, []int{0, 1, 2, 3, 4}, score, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"y", "x"}; !reflect.DeepEqual(keys(got), want) {
		t.Fatalf("expected %v, got %v", want, keys(got))
	}

	for _, item := range got {
		if !item.Eligible() {
			t.Fatalf("ineligible item %q leaked into results", item.id)
		}
	}

	entries := logs.FilterMessage("ranking step").All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 ranking step entries, got %d", len(entries))
	}
	if dropped := entries[0].ContextMap()["dropped"]; dropped != int64(1) {
		t.Fatalf("expected eligibility step to drop 1, got %v", dropped)
	}
}

func TestDisabledStepIsSkipped(t *testing.T) {
	t.Parallel()

	r := New([]Filter[stubItem]{NewEligibility[stubItem](nil)}, nil)
	r.DisableByName("eligibility", "test")

	got, err := r.Run(context.Background(), []stubItem{{id: "a", eligible: false}}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected disabled step to keep the item, got %v", got)
	}
}

func TestValidationFailure(t *testing.T) {
	t.Parallel()

	r := New([]Filter[stubItem]{NewMinScore[stubItem](-1)}, nil)
	_, err := r.Run(context.Background(), []stubItem{{id: "a"}}, 5)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if errors.Unwrap(err) == nil {
		t.Fatalf("expected wrapped validation error, got %v", err)
	}
}

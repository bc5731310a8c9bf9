// Package scoring implements the explainable fit policies. Every function in
// the package is pure: it reads its inputs and never mutates them.
package scoring

import "math"

// ReasonKind tags a reasoning line so a renderer can colour it.
type ReasonKind string

const (
	ReasonPass ReasonKind = "pass"
	ReasonFail ReasonKind = "fail"
	ReasonWarn ReasonKind = "warn"
	ReasonInfo ReasonKind = "info"
	ReasonWeak ReasonKind = "weak"
	ReasonJV   ReasonKind = "jv"
)

// Reason is one short explanation emitted while a component is scored.
type Reason struct {
	Kind ReasonKind `json:"kind"`
	Text string     `json:"text"`
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

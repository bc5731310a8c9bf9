// Package naics compares industry classification codes between entities.
package naics

import (
	"github.com/spigell/govcon-matcher/internal/govcon"
)

// Gaps returns the required codes that are not held, in the order they were required.
func Gaps(required, held []string) []string {
	have := toSet(held)
	gaps := make([]string, 0)
	for _, code := range govcon.DistinctCodes(required) {
		if _, ok := have[code]; !ok {
			gaps = append(gaps, code)
		}
	}
	return gaps
}

// Filled returns the gaps covered by the candidate codes.
func Filled(gaps, candidate []string) []string {
	have := toSet(candidate)
	filled := make([]string, 0)
	for _, code := range govcon.DistinctCodes(gaps) {
		if _, ok := have[code]; ok {
			filled = append(filled, code)
		}
	}
	return filled
}

// Coverage is the fraction of gaps filled. A candidate cannot fail to cover an empty gap set.
func Coverage(filled, gaps []string) float64 {
	total := len(govcon.DistinctCodes(gaps))
	if total == 0 {
		return 1
	}
	return float64(len(govcon.DistinctCodes(filled))) / float64(total)
}

func toSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range govcon.DistinctCodes(codes) {
		set[code] = struct{}{}
	}
	return set
}

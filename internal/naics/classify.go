package naics

import (
	"sort"
	"strings"

	"github.com/spigell/govcon-matcher/internal/govcon"
)

const (
	// DefaultClassificationLimit is the number of codes returned when the caller does not ask for a count.
	DefaultClassificationLimit = 8

	// MinClassificationLevel and MaxClassificationLevel bound the hierarchy levels offered as classifications.
	MinClassificationLevel = 4
	MaxClassificationLevel = 6
)

// Level returns the hierarchy level of a code, which is its digit count.
func Level(code string) int {
	return len(strings.TrimSpace(code))
}

// SpecificityBonus favours national industries (6 digits) and industries (5 digits) over broader groups.
func SpecificityBonus(code string) float64 {
	switch Level(code) {
	case 6:
		return 0.2
	case 5:
		return 0.1
	default:
		return 0
	}
}

// Candidate is a catalog code with its semantic similarity to a business description.
type Candidate struct {
	Code       govcon.NAICSCode
	Similarity float64
}

// Classification is a ranked industry code suggested for a description.
type Classification struct {
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Level       int     `json:"level"`
	Similarity  float64 `json:"similarity"`
	Bonus       float64 `json:"specificityBonus"`
	Score       float64 `json:"score"`
}

// RankClassifications keeps levels 4 to 6, orders by similarity plus specificity bonus and truncates.
// Equal scores are ordered by code.
func RankClassifications(candidates []Candidate, limit int) []Classification {
	if limit <= 0 {
		limit = DefaultClassificationLimit
	}

	result := make([]Classification, 0, len(candidates))
	for _, c := range candidates {
		level := c.Code.Level
		if level == 0 {
			level = Level(c.Code.Code)
		}
		if level < MinClassificationLevel || level > MaxClassificationLevel {
			continue
		}

		bonus := SpecificityBonus(c.Code.Code)
		result = append(result, Classification{
			Code:        c.Code.Code,
			Title:       c.Code.Title,
			Description: c.Code.Description,
			Level:       level,
			Similarity:  c.Similarity,
			Bonus:       bonus,
			Score:       c.Similarity + bonus,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].Code < result[j].Code
	})

	if len(result) > limit {
		result = result[:limit]
	}

	return result
}

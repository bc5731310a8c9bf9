// Package setaside decides whether a company's certifications satisfy the
// small-business set-aside attached to an opportunity.
package setaside

import (
	"strings"
)

// Status is the outcome of checking a certification list against a required set-aside code.
type Status string

const (
	// Qualified means the company holds a certification the set-aside requires.
	Qualified Status = "qualified"
	// Eligible means the code is not recognized, so nothing can be verified or ruled out.
	Eligible Status = "eligible"
	// Ineligible means the code is recognized and none of its certifications is held.
	Ineligible Status = "ineligible"
	// NotApplicable means the opportunity carries no set-aside.
	NotApplicable Status = "not_applicable"
)

// Score converts a status into its weight in the partner fit score.
func (s Status) Score() float64 {
	switch s {
	case Qualified, NotApplicable:
		return 1
	case Eligible:
		return 0.5
	default:
		return 0
	}
}

// families maps SAM.gov set-aside codes to the certifications that qualify for them.
var families = map[string][]string{
	"SBA": {"8A"},
	"8A":  {"8A"},
	"8AN": {"8A"},

	"WOSB":     {"WOSB", "EDWOSB"},
	"WOSBSS":   {"WOSB", "EDWOSB"},
	"EDWOSB":   {"EDWOSB"},
	"EDWOSBSS": {"EDWOSB"},

	"HZC": {"HZ"},
	"HZS": {"HZ"},

	"SDVOSBC": {"SDVOSB"},
	"SDVOSBS": {"SDVOSB"},

	"VSA": {"VOSB", "SDVOSB"},
	"VSS": {"VOSB", "SDVOSB"},
}

// Resolve reports how the certifications relate to the required set-aside code.
// Unknown codes resolve to Eligible. Certification comparison ignores case.
func Resolve(required string, certifications []string) Status {
	code := normalize(required)
	if code == "" {
		return NotApplicable
	}

	accepted, ok := families[code]
	if !ok {
		return Eligible
	}

	held := make(map[string]struct{}, len(certifications))
	for _, cert := range certifications {
		held[normalize(cert)] = struct{}{}
	}

	for _, cert := range accepted {
		if _, ok := held[cert]; ok {
			return Qualified
		}
	}

	return Ineligible
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

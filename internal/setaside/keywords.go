package setaside

import (
	"strings"
)

// keywords lists certification fragments that satisfy a set-aside in the entity fit check.
var keywords = map[string][]string{
	"SBA": {"SB"},
	"SB":  {"SB"},
	"SBP": {"SB"},

	"SDVOSBC": {"VO", "SDVOSB"},
	"SDVOSBS": {"VO", "SDVOSB"},

	"WOSB":     {"WO", "WOSB"},
	"WOSBSS":   {"WO", "WOSB"},
	"EDWOSB":   {"WO", "EDWOSB"},
	"EDWOSBSS": {"WO", "EDWOSB"},

	"8A":  {"8A"},
	"8AN": {"8A"},

	"HZC": {"HZ", "HUBZONE"},
	"HZS": {"HZ", "HUBZONE"},

	"VSA": {"VO", "VOSB"},
	"VSS": {"VO", "VOSB"},
}

// Keywords returns the certification fragments accepted for the code. An unknown code is its own keyword.
func Keywords(required string) []string {
	code := normalize(required)
	if code == "" {
		return nil
	}
	if k, ok := keywords[code]; ok {
		return k
	}
	return []string{code}
}

// Satisfies reports whether any certification contains any accepted fragment, ignoring case.
// An empty requirement is always satisfied.
func Satisfies(required string, certifications []string) bool {
	accepted := Keywords(required)
	if len(accepted) == 0 {
		return true
	}

	for _, cert := range certifications {
		cert = normalize(cert)
		if cert == "" {
			continue
		}
		for _, k := range accepted {
			if strings.Contains(cert, k) {
				return true
			}
		}
	}

	return false
}

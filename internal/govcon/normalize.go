package govcon

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeText applies NFKC, trims the text and removes control characters other than newlines and tabs.
func NormalizeText(text string) string {
	normed := strings.TrimSpace(norm.NFKC.String(text))
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
}

// FoldKey returns a case-folded, whitespace-collapsed form used for case-insensitive lookups.
func FoldKey(text string) string {
	return strings.Join(strings.Fields(folder.String(NormalizeText(text))), " ")
}

// ContainsFold reports whether fragment occurs in text ignoring case and width differences.
func ContainsFold(text, fragment string) bool {
	fragment = FoldKey(fragment)
	if fragment == "" {
		return false
	}
	return strings.Contains(FoldKey(text), fragment)
}

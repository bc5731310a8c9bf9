// Package report renders matching results as JSON, Markdown or HTML.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/spigell/govcon-matcher/internal/matching"
	"github.com/spigell/govcon-matcher/internal/naics"
	"github.com/spigell/govcon-matcher/internal/scoring"
)

type Format string

const (
	JSON     Format = "json"
	Markdown Format = "markdown"
	HTML     Format = "html"
)

// ParseFormat accepts json, markdown (or md) and html. An empty value means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "markdown", "md":
		return Markdown, nil
	case "html":
		return HTML, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Partners writes a joint-venture partner report.
func Partners(w io.Writer, res matching.PartnersResult, format Format) error {
	return write(w, format, res, fmt.Sprintf("JV partners for %s", res.Lead.Name), func(b *strings.Builder) {
		fmt.Fprintf(b, "# JV partners for %s\n\n", escape(res.Lead.Name))
		fmt.Fprintf(b, "Opportunity **%s** (%s), primary NAICS %s", escape(res.Opportunity.Title), res.Opportunity.NoticeID, orDash(res.Opportunity.NAICSCode))
		if res.Opportunity.SetAsideCode != "" {
			fmt.Fprintf(b, ", set-aside %s", res.Opportunity.SetAsideCode)
		}
		fmt.Fprintf(b, ".\n\nPreselected %d candidates.\n\n", res.PreselectSampleSize)

		if len(res.SuggestedPartners) == 0 {
			b.WriteString("No partners found.\n")
			return
		}

		b.WriteString("| # | Partner | UEI | Fit | Semantic | Coverage | Set-aside | Penalty | Gaps filled |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|---|\n")
		for i, p := range res.SuggestedPartners {
			m := p.Metrics
			fmt.Fprintf(b, "| %d | %s | %s | %.2f | %.2f | %.2f | %s | %.2f | %s |\n",
				i+1, escape(p.Partner.Name), orDash(p.Partner.UEI), m.FitScore,
				m.Breakdown.Semantic, m.Breakdown.Coverage, m.SetAsideStatus,
				m.Breakdown.OverlapPenalty, orDash(strings.Join(m.GapsFilled, ", ")))
		}
	})
}

// Fit writes an entity fit report.
func Fit(w io.Writer, res matching.FitResult, format Format) error {
	title := fmt.Sprintf("Best %s matches for %s", counterpart(res.View), res.Anchor.Label())
	return write(w, format, res, title, func(b *strings.Builder) {
		fmt.Fprintf(b, "# %s\n\n", escape(title))
		fmt.Fprintf(b, "Preselected %d candidates.\n\n", res.PreselectSampleSize)

		if len(res.Matches) == 0 {
			b.WriteString("No eligible matches found.\n")
			return
		}

		for i, m := range res.Matches {
			fmt.Fprintf(b, "## %d. %s (%s): %d/100\n\n", i+1, escape(m.Entity.Label()), m.Entity.ID(), m.Fit.Overall)
			fmt.Fprintf(b, "NAICS %d, set-aside %d, size %d, capability %d.\n\n",
				m.Fit.NAICSScore, m.Fit.SetAsideScore, m.Fit.SizeScore, m.Fit.CapabilityScore)
			for _, r := range m.Fit.Reasoning {
				fmt.Fprintf(b, "- %s %s\n", marker(r.Kind), escape(r.Text))
			}
			b.WriteString("\n")
		}
	})
}

// Classification writes ranked NAICS codes and, when present, the model's selections.
func Classification(w io.Writer, res matching.Refinement, format Format) error {
	var payload any = res
	if res.Summary == "" && res.Selections == nil {
		payload = res.Candidates
	}

	return write(w, format, payload, "NAICS classification", func(b *strings.Builder) {
		b.WriteString("# NAICS classification\n\n")
		if res.Summary != "" {
			fmt.Fprintf(b, "> %s\n\n", escape(res.Summary))
		}

		if len(res.Selections) > 0 {
			b.WriteString("## Selected codes\n\n")
			for _, s := range res.Selections {
				fmt.Fprintf(b, "- **%s** %s: %s\n", s.Code, escape(s.Title), escape(s.Justification))
			}
			b.WriteString("\n## Candidates\n\n")
		}

		writeCandidates(b, res.Candidates)
	})
}

func writeCandidates(b *strings.Builder, candidates []naics.Classification) {
	if len(candidates) == 0 {
		b.WriteString("No candidate codes found.\n")
		return
	}
	b.WriteString("| Code | Title | Level | Similarity | Bonus | Score |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, c := range candidates {
		fmt.Fprintf(b, "| %s | %s | %d | %.3f | %.1f | %.3f |\n", c.Code, escape(c.Title), c.Level, c.Similarity, c.Bonus, c.Score)
	}
}

func write(w io.Writer, format Format, payload any, title string, markdown func(*strings.Builder)) error {
	switch format {
	case JSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case Markdown:
		var b strings.Builder
		markdown(&b)
		_, err := io.WriteString(w, b.String())
		return err
	case HTML:
		var b strings.Builder
		markdown(&b)
		return renderHTML(w, title, b.String())
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func renderHTML(w io.Writer, title, markdown string) error {
	var content bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return fmt.Errorf("markdown convert: %w", err)
	}

	_, err := fmt.Fprintf(w, "<!doctype html><html><head><meta charset='utf-8'><title>%s</title>"+
		"<style>body{font-family:sans-serif;max-width:1000px;margin:0 auto;padding:1rem;}"+
		"table{border-collapse:collapse;width:100%%;}th,td{border:1px solid #a8a29e;padding:0.3rem 0.45rem;text-align:left;}"+
		"thead th{background:#f1f5f9;}</style></head><body>%s</body></html>\n",
		html.EscapeString(title), content.String())
	return err
}

func counterpart(view matching.View) string {
	if view == matching.ViewCompany {
		return "opportunity"
	}
	return "company"
}

func marker(kind scoring.ReasonKind) string {
	switch kind {
	case scoring.ReasonPass:
		return "✓"
	case scoring.ReasonFail:
		return "✗"
	case scoring.ReasonWeak:
		return "~"
	case scoring.ReasonWarn:
		return "!"
	case scoring.ReasonJV:
		return "+"
	default:
		return "•"
	}
}

var markdownEscaper = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

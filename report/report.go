// Package report renders audit summaries of redaction runs to PDF. The
// summary becomes a small Markdown document and is typeset with the builder;
// an HTML front end covers callers with their own templates.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyeonwoo/redactkit/fonts"
	"github.com/hyeonwoo/redactkit/match"
	"github.com/hyeonwoo/redactkit/observability"
)

// Summary describes one redaction run.
type Summary struct {
	DocumentName string
	Mode         string // overlay or flatten
	GeneratedAt  time.Time
	Pages        []PageSummary
}

// PageSummary counts the regions masked on one page by reason.
type PageSummary struct {
	Page    int
	Reasons map[string]int
}

// TotalRegions sums the per-page counts.
func (s Summary) TotalRegions() int {
	total := 0
	for _, p := range s.Pages {
		for _, n := range p.Reasons {
			total += n
		}
	}
	return total
}

// FromMatches aggregates detection results into a summary, counting regions
// per page and reason.
func FromMatches(name, mode string, at time.Time, matches []match.Region) Summary {
	byPage := make(map[int]map[string]int)
	for _, m := range matches {
		if byPage[m.Page] == nil {
			byPage[m.Page] = make(map[string]int)
		}
		byPage[m.Page][string(m.Reason)]++
	}
	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	s := Summary{DocumentName: name, Mode: mode, GeneratedAt: at}
	for _, p := range pages {
		s.Pages = append(s.Pages, PageSummary{Page: p, Reasons: byPage[p]})
	}
	return s
}

// Markdown renders the summary as a Markdown document, the canonical report
// source.
func Markdown(s Summary) string {
	var b strings.Builder
	b.WriteString("# Redaction Report\n\n")
	fmt.Fprintf(&b, "Document: %s\n\n", s.DocumentName)
	fmt.Fprintf(&b, "Mode: %s\n\n", s.Mode)
	if !s.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n\n", s.GeneratedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Regions masked: %d\n\n", s.TotalRegions())

	for _, p := range s.Pages {
		fmt.Fprintf(&b, "## Page %d\n\n", p.Page)
		reasons := make([]string, 0, len(p.Reasons))
		for reason := range p.Reasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(&b, "- %s: %d\n", reason, p.Reasons[reason])
		}
		b.WriteString("\n")
	}
	return b.String()
}

type Config struct {
	// Font is used for all report text when set; reports containing Korean
	// document names need a face that carries Hangul.
	Font   *fonts.TrueTypeFont
	Logger observability.Logger
}

// Renderer typesets reports.
type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &Renderer{cfg: cfg}
}

// RenderSummary produces the PDF report for one run.
func (r *Renderer) RenderSummary(s Summary) ([]byte, error) {
	return r.RenderMarkdown([]byte(Markdown(s)))
}

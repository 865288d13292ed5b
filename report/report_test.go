package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hyeonwoo/redactkit/extractor"
	"github.com/hyeonwoo/redactkit/ir/semantic"
	"github.com/hyeonwoo/redactkit/match"
	"github.com/hyeonwoo/redactkit/parser"
	"github.com/hyeonwoo/redactkit/security"
)

func sampleSummary() Summary {
	return Summary{
		DocumentName: "resume.pdf",
		Mode:         "overlay",
		GeneratedAt:  time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
		Pages: []PageSummary{
			{Page: 1, Reasons: map[string]int{"pattern_match": 2, "nearby_number": 1}},
			{Page: 3, Reasons: map[string]int{"keyword_match": 1}},
		},
	}
}

func TestMarkdownSummary(t *testing.T) {
	md := Markdown(sampleSummary())
	for _, want := range []string{
		"# Redaction Report",
		"Document: resume.pdf",
		"Mode: overlay",
		"Regions masked: 4",
		"## Page 1",
		"- nearby_number: 1",
		"- pattern_match: 2",
		"## Page 3",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestFromMatches(t *testing.T) {
	frag := func(page int, text string) extractor.Fragment {
		return extractor.Fragment{Page: page, Text: text, X: 10, Y: 10, W: 50, H: 10}
	}
	matches := []match.Region{
		{Fragment: frag(3, "급여"), Reason: match.ReasonKeyword},
		{Fragment: frag(1, "Salary: $85,000"), Reason: match.ReasonPattern},
		{Fragment: frag(1, "Pay: $1,000"), Reason: match.ReasonPattern},
		{Fragment: frag(1, "85,000"), Reason: match.ReasonNearby},
	}
	s := FromMatches("resume.pdf", "overlay", time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), matches)
	if s.TotalRegions() != 4 {
		t.Errorf("total = %d", s.TotalRegions())
	}
	if len(s.Pages) != 2 || s.Pages[0].Page != 1 || s.Pages[1].Page != 3 {
		t.Fatalf("pages = %+v", s.Pages)
	}
	if s.Pages[0].Reasons["pattern_match"] != 2 || s.Pages[0].Reasons["nearby_number"] != 1 {
		t.Errorf("page 1 reasons = %v", s.Pages[0].Reasons)
	}
	if s.Pages[1].Reasons["keyword_match"] != 1 {
		t.Errorf("page 3 reasons = %v", s.Pages[1].Reasons)
	}
}

func TestTotalRegions(t *testing.T) {
	if got := sampleSummary().TotalRegions(); got != 4 {
		t.Errorf("total = %d", got)
	}
	if got := (Summary{}).TotalRegions(); got != 0 {
		t.Errorf("empty total = %d", got)
	}
}

func renderedText(t *testing.T, pdf []byte) string {
	t.Helper()
	p := parser.NewDocumentParser(parser.Config{})
	rawDoc, err := p.Parse(context.Background(), bytes.NewReader(pdf))
	if err != nil {
		t.Fatalf("parse report: %v", err)
	}
	doc, err := semantic.Build(context.Background(), rawDoc, security.Limits{})
	if err != nil {
		t.Fatalf("semantic report: %v", err)
	}
	ex := extractor.New(doc, extractor.Config{})
	frags, err := ex.Document(context.Background())
	if err != nil {
		t.Fatalf("extract report: %v", err)
	}
	return extractor.PlainText(frags)
}

func TestRenderSummaryProducesReadablePDF(t *testing.T) {
	pdf, err := NewRenderer(Config{}).RenderSummary(sampleSummary())
	if err != nil {
		t.Fatalf("RenderSummary: %v", err)
	}
	text := renderedText(t, pdf)
	for _, want := range []string{"Redaction Report", "resume.pdf", "pattern_match: 2", "Page 3"} {
		if !strings.Contains(text, want) {
			t.Errorf("report text missing %q:\n%s", want, text)
		}
	}
}

func TestRenderHTML(t *testing.T) {
	src := []byte(`<html><body>
		<h1>Redaction Report</h1>
		<p>Document resume.pdf was masked.</p>
		<ul><li>pattern_match: 2</li><li>nearby_number: 1</li></ul>
	</body></html>`)
	pdf, err := NewRenderer(Config{}).RenderHTML(src)
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	text := renderedText(t, pdf)
	for _, want := range []string{"Redaction Report", "was masked", "nearby_number: 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("report text missing %q:\n%s", want, text)
		}
	}
}

func TestLongReportBreaksPages(t *testing.T) {
	s := Summary{DocumentName: "big.pdf", Mode: "flatten"}
	for i := 1; i <= 60; i++ {
		s.Pages = append(s.Pages, PageSummary{Page: i, Reasons: map[string]int{"pattern_match": 1}})
	}
	pdf, err := NewRenderer(Config{}).RenderSummary(s)
	if err != nil {
		t.Fatalf("RenderSummary: %v", err)
	}

	p := parser.NewDocumentParser(parser.Config{})
	rawDoc, err := p.Parse(context.Background(), bytes.NewReader(pdf))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc, err := semantic.Build(context.Background(), rawDoc, security.Limits{})
	if err != nil {
		t.Fatalf("semantic: %v", err)
	}
	if doc.PageCount() < 2 {
		t.Errorf("page count = %d, want a page break", doc.PageCount())
	}
}

package match

import (
	"context"
	"testing"

	"github.com/hyeonwoo/redactkit/extractor"
)

func frag(text string, page int, x, y float64) extractor.Fragment {
	return extractor.Fragment{Text: text, Page: page, X: x, Y: y, W: 50, H: 12}
}

func find(frags ...extractor.Fragment) []Region {
	return NewMatcher(Config{}).FindMatches(context.Background(), frags)
}

func TestPatternMatchKoreanPhrase(t *testing.T) {
	cases := []string{
		"연봉 3,500만원",
		"희망연봉:4000만원",
		"급여 250만 원",
		"월급 300만원",
	}
	for _, text := range cases {
		got := find(frag(text, 1, 0, 0))
		if len(got) != 1 || got[0].Reason != ReasonPattern {
			t.Errorf("%q -> %+v, want single pattern_match", text, got)
		}
	}
}

func TestPatternMatchBareAmount(t *testing.T) {
	got := find(frag("3,500만원", 1, 0, 0))
	if len(got) != 1 || got[0].Reason != ReasonPattern {
		t.Fatalf("got %+v", got)
	}
}

func TestPatternMatchEnglish(t *testing.T) {
	cases := []string{"Salary: $85,000", "annual pay 85000"}
	for _, text := range cases {
		got := find(frag(text, 1, 0, 0))
		if len(got) != 1 || got[0].Reason != ReasonPattern {
			t.Errorf("%q -> %+v", text, got)
		}
	}
}

func TestNoMatchesIsEmpty(t *testing.T) {
	got := find(
		frag("경력 5년", 1, 0, 0),
		frag("이름: 김철수", 1, 0, 20),
		frag("Seoul, Korea", 1, 0, 40),
	)
	if len(got) != 0 {
		t.Errorf("got %+v, want none", got)
	}
}

func TestKeywordClaimsRowNeighbors(t *testing.T) {
	got := find(
		frag("연봉", 1, 10, 100),
		frag("3,500만원", 1, 200, 101), // same row, far right (table cell)
		frag("비고 없음", 1, 300, 100),   // same row, no digits
		frag("5,000만원", 1, 200, 160), // different row
	)
	if len(got) != 3 {
		t.Fatalf("got %d regions: %+v", len(got), got)
	}
	if got[0].Reason != ReasonKeyword || got[0].Text != "연봉" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Reason != ReasonNearby || got[1].Text != "3,500만원" {
		t.Errorf("second = %+v", got[1])
	}
	// The off-row amount is out of the sweep's reach but still pattern-matches
	// on its own turn.
	if got[2].Reason != ReasonPattern || got[2].Text != "5,000만원" {
		t.Errorf("third = %+v", got[2])
	}
}

// The scan is a single pass: a value claimed by a keyword's row sweep is
// never re-tested by the later pattern rules.
func TestRowClaimWinsOverLaterPattern(t *testing.T) {
	got := find(
		frag("희망 연봉", 1, 10, 100),
		frag("4,000만원", 1, 150, 100),
	)
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[1].Reason != ReasonNearby {
		t.Errorf("amount reason = %q, want nearby_number", got[1].Reason)
	}
}

func TestEachFragmentClaimedOnce(t *testing.T) {
	frags := []extractor.Fragment{
		frag("연봉 3,000만원", 1, 0, 0),
		frag("급여", 1, 0, 30),
		frag("250만원", 1, 100, 31),
	}
	got := find(frags...)
	seen := make(map[string]int)
	for _, r := range got {
		seen[r.Text]++
	}
	for text, n := range seen {
		if n > 1 {
			t.Errorf("%q claimed %d times", text, n)
		}
	}
	if len(got) != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestRowToleranceBoundary(t *testing.T) {
	// Centers 20 apart: inside. 21 apart: outside.
	inside := find(
		frag("연봉", 1, 0, 100),
		frag("3000만원", 1, 100, 120),
	)
	if len(inside) != 2 {
		t.Errorf("at tolerance: %+v", inside)
	}
	outside := find(
		frag("연봉", 1, 0, 100),
		frag("경력", 1, 100, 121),
	)
	if len(outside) != 1 {
		t.Errorf("past tolerance: %+v", outside)
	}
}

func TestRowSweepStaysOnPage(t *testing.T) {
	got := find(
		frag("연봉", 1, 0, 100),
		frag("3000만원", 2, 100, 100), // same row coords, other page
	)
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	// Not swept cross-page; the amount pattern-matches on its own turn.
	if got[0].Reason != ReasonKeyword || got[1].Reason != ReasonPattern {
		t.Errorf("reasons = %q, %q", got[0].Reason, got[1].Reason)
	}
}

func TestNFCNormalization(t *testing.T) {
	// Decomposed jamo for 연봉 followed by an amount.
	decomposed := "연봉 3,500만원"
	got := find(frag(decomposed, 1, 0, 0))
	if len(got) != 1 || got[0].Reason != ReasonPattern {
		t.Errorf("decomposed text not matched: %+v", got)
	}
}

func TestLooksLikeAmount(t *testing.T) {
	yes := []string{"3,500만원", "4000만 원", "250만", "3500", "$85,000", "1.5천만원"}
	for _, s := range yes {
		if !looksLikeAmount(normalize(s)) {
			t.Errorf("looksLikeAmount(%q) = false", s)
		}
	}
	no := []string{"", "비고 없음", "seoul"}
	for _, s := range no {
		if looksLikeAmount(normalize(s)) {
			t.Errorf("looksLikeAmount(%q) = true", s)
		}
	}
}

func TestScriptedRuleClaims(t *testing.T) {
	rule := `fragments
		.map(function(f, i) { return f.text.indexOf("사번") >= 0 ? i : -1 })
		.filter(function(i) { return i >= 0 })`
	m := NewMatcher(Config{Rules: []string{rule}})
	got := m.FindMatches(context.Background(), []extractor.Fragment{
		frag("사번 12345", 1, 0, 0),
		frag("무관한 텍스트", 1, 0, 30),
	})
	if len(got) != 1 || got[0].Reason != ReasonPattern || got[0].Text != "사번 12345" {
		t.Errorf("got %+v", got)
	}
}

func TestScriptedRuleErrorIgnored(t *testing.T) {
	m := NewMatcher(Config{Rules: []string{"throw new Error('bad rule')"}})
	got := m.FindMatches(context.Background(), []extractor.Fragment{
		frag("연봉 3,500만원", 1, 0, 0),
	})
	// Built-in heuristics still ran.
	if len(got) != 1 || got[0].Reason != ReasonPattern {
		t.Errorf("got %+v", got)
	}
}
